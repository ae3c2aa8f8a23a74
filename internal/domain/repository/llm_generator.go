package repository

import (
	"context"
)

// LLMGenerator sends one prompt to the text-generation endpoint and returns
// the raw text it produced, unparsed.
type LLMGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
