package audio

import (
	"encoding/binary"
	"os"
	"time"

	apperrors "github.com/divyashie/openmeet/internal/errors"
)

// Recorder appends the full session recording to a WAV file on disk. The
// file is the diarization input and the session's durable audio artifact.
// RIFF sizes are patched on Close, so an unclosed file is not a valid WAV.
type Recorder struct {
	f          *os.File
	path       string
	sampleRate int
	samples    int64
	closed     bool
}

// NewRecorder creates the WAV file with a placeholder header.
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.StorageFailed, "create recording %s", path)
	}
	if err := writeWAVHeader(f, 0, sampleRate); err != nil {
		f.Close()
		os.Remove(path)
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "write recording header")
	}
	return &Recorder{f: f, path: path, sampleRate: sampleRate}, nil
}

// Append writes samples to the recording.
func (r *Recorder) Append(samples []float32) error {
	if _, err := r.f.Write(SamplesToPCM16(samples)); err != nil {
		return apperrors.Wrapf(err, apperrors.StorageFailed, "append to recording %s", r.path)
	}
	r.samples += int64(len(samples))
	return nil
}

// Path returns the file path of the recording.
func (r *Recorder) Path() string { return r.path }

// Duration returns the recorded duration so far.
func (r *Recorder) Duration() time.Duration {
	return samplesToDuration(r.samples, r.sampleRate)
}

// Sync patches the RIFF sizes in place and flushes to disk, making the
// file readable as a WAV while recording continues. Used before each
// incremental diarization pass over the growing recording.
func (r *Recorder) Sync() error {
	if err := r.patchSizes(); err != nil {
		return err
	}
	if err := r.f.Sync(); err != nil {
		return apperrors.Wrapf(err, apperrors.StorageFailed, "sync recording %s", r.path)
	}
	return nil
}

// Close patches the RIFF sizes and closes the file, making it a valid WAV.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.patchSizes(); err != nil {
		r.f.Close()
		return err
	}
	if err := r.f.Close(); err != nil {
		return apperrors.Wrapf(err, apperrors.StorageFailed, "close recording %s", r.path)
	}
	return nil
}

func (r *Recorder) patchSizes() error {
	dataBytes := uint32(r.samples * bytesPerSample)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 36+dataBytes)
	if _, err := r.f.WriteAt(buf[:], 4); err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "patch riff size")
	}
	binary.LittleEndian.PutUint32(buf[:], dataBytes)
	if _, err := r.f.WriteAt(buf[:], 40); err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "patch data size")
	}
	return nil
}

// Discard closes and deletes the recording file.
func (r *Recorder) Discard() error {
	if !r.closed {
		r.closed = true
		r.f.Close()
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrapf(err, apperrors.StorageFailed, "remove recording %s", r.path)
	}
	return nil
}
