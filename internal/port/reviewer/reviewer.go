// Package reviewer defines the port for the raw review call.
package reviewer

import "context"

// Caller issues one review prompt and returns the model's free-text answer,
// which is expected (but not guaranteed) to contain one JSON object.
type Caller interface {
	ReviewCall(ctx context.Context, prompt string) (string, error)
}
