package llm

import (
	"context"

	"deepresearch/internal/logging"
)

// Facade is the engine-facing LLM surface. Every call, whichever phase
// issues it, passes through the single shared rate gate.
type Facade struct {
	client Client
	gate   *RateGate
}

// NewFacade wraps a provider client with the shared rate gate.
func NewFacade(client Client, gate *RateGate) *Facade {
	return &Facade{client: client, gate: gate}
}

// GenerateText awaits the rate gate, then asks the provider for free text.
// Transport and provider errors propagate to the caller.
func (f *Facade) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return "", err
	}
	logging.LLMDebug("generate_text (%d chars prompt)", len(prompt))
	return f.client.Complete(ctx, prompt)
}

// GenerateTextWithSystem is GenerateText with a system prompt.
func (f *Facade) GenerateTextWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return "", err
	}
	return f.client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
}

// completeJSON asks the provider for natively JSON-constrained output.
// supported reports whether the provider has a JSON mode at all.
func (f *Facade) completeJSON(ctx context.Context, prompt string) (raw string, supported bool, err error) {
	jc, ok := f.client.(JSONModeClient)
	if !ok {
		return "", false, nil
	}
	if err := f.gate.Wait(ctx); err != nil {
		return "", true, err
	}
	raw, err = jc.CompleteJSON(ctx, "", prompt)
	return raw, true, err
}
