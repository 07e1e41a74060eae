package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"time"

	"github.com/vibecollab/vibeagent/internal/domain"
)

var ErrNoStream = errors.New("media stream is not available on the source")

const (
	// Short delay between the first renderable frame and the grab, to avoid
	// capturing a partially decoded frame.
	defaultSettleDelay = 100 * time.Millisecond

	// JPEG is generally smaller than PNG for screenshots.
	jpegQuality = 90
)

// StillCapturer produces a single base64 JPEG encoding from a live video
// source. It only ever consumes a duplicate read handle; the source's own
// publication is untouched.
type StillCapturer struct {
	settle time.Duration
}

func NewStillCapturer() *StillCapturer {
	return &StillCapturer{settle: defaultSettleDelay}
}

// Capture taps the source, waits for the first renderable frame plus the
// settle delay, grabs the current frame at native resolution, and encodes it.
// The tap is released before returning, on every path.
func (c *StillCapturer) Capture(ctx context.Context, src domain.VideoSource) (string, error) {
	if src == nil {
		return "", ErrNoStream
	}

	tap, err := src.Tap()
	if err != nil {
		return "", fmt.Errorf("attaching to video source: %w", err)
	}
	defer tap.Close()

	frame, err := tap.NextFrame(ctx)
	if err != nil {
		return "", fmt.Errorf("waiting for renderable frame: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.settle):
	}

	// Prefer the frame current after the settle delay; fall back to the first
	// one if the source has nothing newer.
	if current, err := tap.NextFrame(ctx); err == nil {
		frame = current
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encoding frame: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
