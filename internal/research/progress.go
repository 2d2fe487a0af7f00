package research

import "context"

// Progress receives human-readable status messages at major phase
// transitions. Implementations must be fast or internally buffered; the
// loop calls them inline.
type Progress interface {
	Notify(ctx context.Context, message string)
}

// notify forwards to the sink when one is set. A nil sink changes nothing.
func notify(ctx context.Context, p Progress, message string) {
	if p != nil {
		p.Notify(ctx, message)
	}
}
