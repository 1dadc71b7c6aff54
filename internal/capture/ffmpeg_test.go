package capture

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700))
	return path
}

func TestStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'audio'\nsleep 2\n")
	recorder := NewRecorder(script)

	session, err := recorder.Start(context.Background(), Config{})
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, _ := session.Read(buf)
	require.Positive(t, n)
	assert.Contains(t, string(buf[:n]), "audio")
	assert.Positive(t, session.Elapsed())

	assert.NoError(t, session.Stop())
	assert.NoError(t, session.Stop(), "stop is idempotent")
}

func TestStartReportsEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	recorder := NewRecorder(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := recorder.Start(ctx, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited before capture started")
	assert.Contains(t, err.Error(), "no such device")
}

func TestRecordStopsAtMaxDurationAndReturnsWAV(t *testing.T) {
	t.Parallel()

	// Emits PCM forever; only MaxDuration ends the recording.
	script := writeScript(t, "mic.sh",
		"#!/usr/bin/env bash\nwhile true; do printf '\\x00\\x01\\x02\\x03'; sleep 0.05; done\n")
	recorder := NewRecorder(script)

	start := time.Now()
	wav, err := recorder.Record(context.Background(), Config{MaxDuration: 600 * time.Millisecond})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Greater(t, len(wav), 44)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	dataLen := binary.LittleEndian.Uint32(wav[40:44])
	assert.Equal(t, int(dataLen), len(wav)-44)
}

func TestRecordFailsWithoutAudio(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "silent.sh", "#!/usr/bin/env bash\nsleep 5\n")
	recorder := NewRecorder(script)

	_, err := recorder.Record(context.Background(), Config{MaxDuration: 400 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio captured")
}

func TestSecondStartStopsFirstSession(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm'\nsleep 5\n")
	recorder := NewRecorder(script)

	first, err := recorder.Start(context.Background(), Config{})
	require.NoError(t, err)
	second, err := recorder.Start(context.Background(), Config{})
	require.NoError(t, err)
	defer second.Stop()

	// The first session's pipe is closed once the second starts.
	buf := make([]byte, 16)
	for {
		_, readErr := first.Read(buf)
		if readErr != nil {
			break
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 32000) // one second of 16 kHz mono s16le
	wav := EncodeWAV(pcm, 16000, 1)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, uint32(16000*2), binary.LittleEndian.Uint32(wav[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]), "bits per sample")
	assert.InDelta(t, 1.0, WAVDuration(wav, 16000, 1), 0.001)
}
