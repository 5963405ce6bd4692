// Package interpret submits a batch of frames to a multimodal model and
// returns its textual interpretation.
//
// A request is one instruction prompt followed by every frame in capture
// order. Each batch is sent exactly once; nothing here retries.
//
// Example usage:
//
//	client, _ := interpret.NewGemini(
//	    interpret.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	defer client.Close()
//
//	resp, err := client.Interpret(ctx, &interpret.Request{
//	    Prompt: interpret.DefaultPrompt,
//	    Frames: batch,
//	})
package interpret

import (
	"context"

	"github.com/teslashibe/go-signlens/pkg/frame"
)

// DefaultPrompt is the fixed instruction sent ahead of the frames.
const DefaultPrompt = "The following images are consecutive webcam frames captured about one second apart, oldest first. " +
	"Interpret the hand gestures across the whole sequence as sign language and reply with the word or sentence being signed. " +
	"If no recognizable sign is present, say so in one short sentence."

// Interpreter is implemented by every backend.
type Interpreter interface {
	// Interpret sends one request and returns the model text.
	Interpret(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Request is one interpretation call.
type Request struct {
	// Prompt is the instruction text part.
	Prompt string

	// Frames are sent in slice order after the prompt.
	Frames []frame.Frame
}

// Response from a successful interpretation.
type Response struct {
	// Text is the natural language answer.
	Text string

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Validate rejects requests that must not reach the network.
func (r *Request) Validate() error {
	if r == nil || len(r.Frames) == 0 {
		return ErrEmptyBatch
	}
	return nil
}
