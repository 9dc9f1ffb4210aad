package ports

import "context"

// LLMClient is the boundary to the semantic name-matching capability. The
// response is untyped text that is expected, but not guaranteed, to contain a
// JSON object.
type LLMClient interface {
	ChatCompletion(ctx context.Context, prompt string) (string, error)
}
