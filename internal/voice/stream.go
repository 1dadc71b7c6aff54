package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"civicvoice/backend/internal/capture"
)

// StreamConfig controls real-time chunked transcription.
type StreamConfig struct {
	SampleRate    int           // default 16000
	Channels      int           // default 1
	ChunkDuration time.Duration // default 5s
	Language      string
	Category      string
}

func (s *StreamConfig) applyDefaults() {
	if s.SampleRate <= 0 {
		s.SampleRate = 16000
	}
	if s.Channels <= 0 {
		s.Channels = 1
	}
	if s.ChunkDuration <= 0 {
		s.ChunkDuration = 5 * time.Second
	}
	if s.Language == "" {
		s.Language = "auto"
	}
}

// Stream transcribes live PCM in fixed-duration chunks and returns the
// concatenated transcript. A chunk that fails to transcribe degrades
// the output instead of aborting the session; only source exhaustion or
// context cancellation ends the stream.
func (c *Client) Stream(ctx context.Context, source io.Reader, cfg StreamConfig) (string, error) {
	cfg.applyDefaults()

	// Millisecond precision keeps sub-second chunk durations from
	// truncating to a zero-length buffer; a chunk is never smaller than
	// one PCM frame.
	chunkBytes := int(int64(cfg.SampleRate*cfg.Channels*2) * cfg.ChunkDuration.Milliseconds() / 1000)
	if frame := cfg.Channels * 2; chunkBytes < frame {
		chunkBytes = frame
	}
	buf := make([]byte, chunkBytes)

	var parts []string
	for chunk := 0; ; chunk++ {
		if ctx.Err() != nil {
			return joinParts(parts), ctx.Err()
		}

		n, readErr := io.ReadFull(source, buf)
		if n > 0 {
			wav := capture.EncodeWAV(buf[:n], cfg.SampleRate, cfg.Channels)
			text, err := c.transcribeChunk(ctx, wav, cfg)
			if err != nil {
				if ctx.Err() != nil {
					return joinParts(parts), ctx.Err()
				}
				c.log.Warn().Err(err).Int("chunk", chunk).
					Msg("chunk transcription failed, continuing")
			} else if text != "" {
				parts = append(parts, text)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				return joinParts(parts), nil
			}
			return joinParts(parts), fmt.Errorf("audio source failed: %w", readErr)
		}
	}
}

func (c *Client) transcribeChunk(ctx context.Context, wav []byte, cfg StreamConfig) (string, error) {
	var reply transcribeResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio", "chunk.wav", "audio/wav", bytes.NewReader(wav)).
		SetMultipartFormData(map[string]string{
			"language": cfg.Language,
			"category": cfg.Category,
			"realTime": "true",
		}).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/api/ai/transcribe")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(resp, apiErr)
	}
	return strings.TrimSpace(reply.Transcription), nil
}

func joinParts(parts []string) string {
	return strings.Join(parts, " ")
}
