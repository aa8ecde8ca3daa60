package provider

import "context"

// Fixed replies returned in place of model output when an exchange cannot
// produce one. These are spoken lines, not diagnostics: every failure
// inside the transport collapses to one of them so callers only ever
// handle text.
const (
	MsgNotConfigured  = "AI service not properly configured."
	MsgRequestFailed  = "Error preparing request."
	MsgUnreachable    = "Failed to reach OpenRouter AI."
	MsgServiceError   = "AI service error occurred."
	MsgParseFailed    = "Error processing response."
	MsgNoContent      = "I'm having trouble understanding."
	MsgInternalFailed = "Hmm... I'm lost in thought."
)

// Querier performs one synchronous prompt/reply exchange with a language
// model endpoint. Query always returns a usable reply string; failures are
// absorbed into one of the fixed Msg constants and never surface as errors.
type Querier interface {
	Query(ctx context.Context, prompt string) string
}

// QuerierFunc adapts a plain function to the Querier interface.
type QuerierFunc func(ctx context.Context, prompt string) string

func (f QuerierFunc) Query(ctx context.Context, prompt string) string {
	return f(ctx, prompt)
}
