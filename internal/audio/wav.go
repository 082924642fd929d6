package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WAV encoding for 16-bit mono PCM, the input format both whisper.cpp and
// the diarization sidecar expect.

const (
	wavHeaderSize  = 44
	bytesPerSample = 2
)

// EncodeWAV writes samples as a complete 16-bit mono PCM WAV stream.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	if err := writeWAVHeader(w, len(samples)*bytesPerSample, sampleRate); err != nil {
		return err
	}
	_, err := w.Write(SamplesToPCM16(samples))
	return err
}

// SamplesToPCM16 converts float32 samples in [-1, 1] to little-endian
// 16-bit PCM bytes, clipping out-of-range values.
func SamplesToPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		v := int16(math.Round(float64(clamp(s)) * math.MaxInt16))
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample:], uint16(v))
	}
	return buf
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

func writeWAVHeader(w io.Writer, dataBytes, sampleRate int) error {
	var header [wavHeaderSize]byte

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataBytes))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(header[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*bytesPerSample))
	binary.LittleEndian.PutUint16(header[32:34], bytesPerSample)
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataBytes))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	return nil
}
