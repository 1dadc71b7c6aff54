package capture

import "encoding/binary"

// EncodeWAV wraps raw s16le PCM in a RIFF/WAVE container so the bytes
// can be uploaded as audio/wav.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const (
		headerSize    = 44
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, headerSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// WAVDuration reports the playback length in seconds of audio produced
// by EncodeWAV.
func WAVDuration(wav []byte, sampleRate, channels int) float64 {
	const headerSize = 44
	if len(wav) <= headerSize {
		return 0
	}
	blockAlign := channels * 2
	if blockAlign == 0 || sampleRate == 0 {
		return 0
	}
	samples := (len(wav) - headerSize) / blockAlign
	return float64(samples) / float64(sampleRate)
}
