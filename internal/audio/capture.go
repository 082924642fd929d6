package audio

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/metrics"
)

// active enforces the single-capturer rule: the microphone is held
// exclusively by one Capturer per process.
var active atomic.Bool

// Capturer owns the live microphone stream and emits fixed-duration
// chunks. The output channel closes when capture ends; a close without a
// prior Stop call means the device was lost.
type Capturer struct {
	sampleRate int
	chunker    *Chunker
	out        chan Chunk

	paused  atomic.Bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool

	stopOnce  sync.Once
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewCapturer creates a capturer emitting chunks of chunkDur with the
// given boundary overlap.
func NewCapturer(sampleRate int, chunkDur, overlap time.Duration) *Capturer {
	return &Capturer{
		sampleRate: sampleRate,
		chunker:    NewChunker(sampleRate, chunkDur, overlap),
		out:        make(chan Chunk, DefaultChunkBuffer),
	}
}

// Output returns the channel of emitted chunks.
func (c *Capturer) Output() <-chan Chunk { return c.out }

// Start opens the default input device and begins emitting chunks.
func (c *Capturer) Start(ctx context.Context) error {
	if !active.CompareAndSwap(false, true) {
		return apperrors.New(apperrors.DeviceUnavailable, "microphone already held by another capturer")
	}

	if err := portaudio.Initialize(); err != nil {
		active.Store(false)
		return apperrors.Wrap(err, apperrors.DeviceUnavailable, "initialize audio host")
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		active.Store(false)
		return apperrors.Wrap(err, apperrors.DeviceUnavailable, "no default input device")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: FramesPerBuffer,
	}

	buf := make([]float32, FramesPerBuffer)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		_ = portaudio.Terminate()
		active.Store(false)
		return apperrors.Wrapf(err, apperrors.DeviceUnavailable, "open stream on %s", dev.Name)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		active.Store(false)
		return apperrors.Wrapf(err, apperrors.DeviceUnavailable, "start stream on %s", dev.Name)
	}

	slog.Info("started audio capture", "device", dev.Name, "sample_rate", c.sampleRate)

	c.stream = stream
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.readLoop(runCtx, buf)

	return nil
}

func (c *Capturer) readLoop(ctx context.Context, buf []float32) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if ctx.Err() == nil {
				// Read failure outside teardown: the device went away.
				slog.Error("audio read failed, device lost", "error", err)
				c.closeOut()
			}
			return
		}

		if c.paused.Load() {
			continue
		}

		for _, chunk := range c.chunker.Push(buf) {
			select {
			case c.out <- chunk:
				metrics.RecordChunk("capture", "ok")
			default:
				slog.Warn("chunk buffer full, dropping chunk", "index", chunk.Index)
				metrics.RecordChunk("capture", "dropped")
			}
		}
	}
}

// Pause suspends chunk emission. Samples read while paused are discarded,
// so chunk offsets keep tracking recorded time rather than wall clock.
func (c *Capturer) Pause() { c.paused.Store(true) }

// Resume continues chunk emission.
func (c *Capturer) Resume() { c.paused.Store(false) }

// Recorded returns the recorded duration emitted so far.
func (c *Capturer) Recorded() time.Duration { return c.chunker.Recorded() }

// Stop halts capture, flushes the partial chunk, and closes the output
// channel.
func (c *Capturer) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()

		if c.stream != nil {
			_ = c.stream.Stop()
			_ = c.stream.Close()
		}

		// readLoop closes the output itself on device loss; the pending
		// samples have nowhere to go then.
		if !c.closed.Load() {
			if chunk, ok := c.chunker.Flush(); ok {
				select {
				case c.out <- chunk:
					metrics.RecordChunk("capture", "ok")
				default:
					metrics.RecordChunk("capture", "dropped")
				}
			}
		}

		c.closeOut()
		_ = portaudio.Terminate()
		active.Store(false)
	})
}

// Stopped reports whether Stop was called, distinguishing a deliberate
// close of the output channel from device loss.
func (c *Capturer) Stopped() bool { return c.stopped.Load() }

func (c *Capturer) closeOut() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.out)
	})
}
