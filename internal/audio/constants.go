package audio

// Capture tuning constants
const (
	// FramesPerBuffer is the portaudio read size (~64ms at 16kHz).
	FramesPerBuffer = 1024

	// DefaultChunkBuffer is the emit-channel depth before chunks drop.
	DefaultChunkBuffer = 16
)
