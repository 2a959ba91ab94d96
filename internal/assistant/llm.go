package assistant

import "context"

// Message is one prompt turn for the completion backend.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is a single chat completion call. JSONMode asks the
// backend to emit a bare JSON object instead of prose.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	JSONMode    bool
}

// CompletionClient is the text-completion collaborator behind classification
// and plan generation. Implementations return an error for transport failures
// and empty responses; the caller decides whether to fall back.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
