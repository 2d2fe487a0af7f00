// Package llm wraps LLM providers behind a rate-limited, failure-tolerant
// facade. Transport and provider errors propagate; malformed-but-received
// structured output is absorbed by the recovery chain and never raises.
package llm

import "context"

// Client is the minimal provider interface.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// JSONModeClient is implemented by providers that can natively constrain
// output to JSON. The facade uses it as the first stage of structured
// generation and falls back to prompt-level format instructions otherwise.
type JSONModeClient interface {
	Client
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
