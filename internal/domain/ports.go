package domain

import (
	"context"
	"image"
)

// AgentRequest is the composed body sent to the inference boundary.
// ImageDataA/B carry base64-encoded JPEG frames; ImageDataB is empty in solo
// mode.
type AgentRequest struct {
	Prompt            string            `json:"prompt"`
	ChatHistory       []ChatMessage     `json:"chatHistory"`
	CodeContext       []CodeContextFile `json:"codeContext"`
	ImageDataA        string            `json:"imageDataA"`
	ImageDataB        string            `json:"imageDataB,omitempty"`
	SystemInstruction string            `json:"systemInstruction"`
}

// AgentClient issues one streaming inference request. onChunk is invoked for
// every text fragment as it arrives; Ask returns once the stream ends.
type AgentClient interface {
	Ask(ctx context.Context, req AgentRequest, onChunk func(text string)) error
}

// FrameTap is a draw-only read handle on a live video source. Closing the tap
// never stops the source's own publication.
type FrameTap interface {
	// NextFrame blocks until a renderable frame is available.
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// VideoSource is a live video publication that can hand out duplicate read
// handles.
type VideoSource interface {
	Tap() (FrameTap, error)
}

// FrameCapturer produces a single base64 still-image encoding from a source.
type FrameCapturer interface {
	Capture(ctx context.Context, src VideoSource) (string, error)
}

// RecognitionResult is one speech-to-text result. Interim results carry
// Final=false and are refined by later results for the same utterance.
type RecognitionResult struct {
	Text  string
	Final bool
}

// RecognitionEngine is the platform speech-to-text capability. The returned
// channel is closed when recognition ends, whether by Stop or by the platform.
type RecognitionEngine interface {
	Start(ctx context.Context) (<-chan RecognitionResult, error)
	Stop() error
}
