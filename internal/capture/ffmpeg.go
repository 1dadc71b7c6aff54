// Package capture records microphone audio for voice complaints by
// streaming PCM from an ffmpeg subprocess. The recorder enforces a
// maximum recording duration and hands back WAV bytes ready for the
// transcription upload.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"civicvoice/backend/internal/config"
)

// Config describes the microphone input. Zero values fall back to
// 16 kHz mono from the default pulse device.
type Config struct {
	SampleRate  int
	Channels    int
	InputFormat string // ffmpeg -f value, e.g. pulse, alsa, avfoundation
	InputDevice string
	MaxDuration time.Duration // recording auto-stops when reached
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.InputDevice == "" {
		c.InputDevice = "default"
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = config.MaxRecordingDuration
	}
}

// Recorder spawns ffmpeg processes for microphone capture. At most one
// session is active per Recorder; starting a new one stops the previous.
type Recorder struct {
	command string

	mu     sync.Mutex
	active *Session
}

// NewRecorder uses the given ffmpeg binary, or "ffmpeg" from PATH when
// empty.
func NewRecorder(command string) *Recorder {
	if command == "" {
		command = "ffmpeg"
	}
	return &Recorder{command: command}
}

// Start launches ffmpeg and returns a session streaming raw s16le PCM.
// ffmpeg crashing within the startup grace period is reported as an
// error instead of an empty stream.
func (r *Recorder) Start(ctx context.Context, cfg Config) (*Session, error) {
	cfg.applyDefaults()

	r.mu.Lock()
	if r.active != nil {
		_ = r.active.Stop()
		r.active = nil
	}
	r.mu.Unlock()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s",
				err, trimmed(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	session := &Session{
		cfg:     cfg,
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		started: time.Now(),
	}
	r.mu.Lock()
	r.active = session
	r.mu.Unlock()
	return session, nil
}

// Record captures until the context is cancelled or the configured
// maximum duration passes, then returns the audio as a WAV file.
func (r *Recorder) Record(ctx context.Context, cfg Config) ([]byte, error) {
	cfg.applyDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.MaxDuration)
	defer cancel()

	session, err := r.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer session.Stop()

	var pcm bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, readErr := session.Read(buf)
		if n > 0 {
			pcm.Write(buf[:n])
			if pcm.Len() > config.MaxAudioBytes {
				return nil, fmt.Errorf("recording exceeds %d bytes", config.MaxAudioBytes)
			}
		}
		if readErr != nil {
			// The pipe closes when ffmpeg exits, including the
			// deadline-driven kill; what was read is the recording.
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err := session.Stop(); err != nil {
		return nil, err
	}
	if pcm.Len() == 0 {
		return nil, errors.New("no audio captured")
	}
	return EncodeWAV(pcm.Bytes(), cfg.SampleRate, cfg.Channels), nil
}

// Session is one running capture. Read returns raw PCM; Stop interrupts
// ffmpeg and drains its exit status.
type Session struct {
	cfg    Config
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error
	started time.Time

	stopOnce sync.Once
	stopErr  error
}

func (s *Session) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Elapsed reports how long the session has been recording.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.started)
}

func (s *Session) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg, escalating to a kill if it ignores the
// signal. A clean exit status is not an error.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = ignoreExitStatus(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = ignoreExitStatus(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})

	return s.stopErr
}

// ignoreExitStatus treats a nonzero ffmpeg exit after an interrupt as a
// normal stop.
func ignoreExitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
