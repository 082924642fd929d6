// Package orchestrator coordinates capture, engines, and storage for one
// recording session at a time
package orchestrator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/divyashie/openmeet/internal/audio"
	"github.com/divyashie/openmeet/internal/config"
	"github.com/divyashie/openmeet/internal/engine"
	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/session"
	"github.com/divyashie/openmeet/internal/store"
	"github.com/divyashie/openmeet/internal/syncx"
)

// CaptureSource is the live audio input for one session. audio.Capturer
// is the production implementation; tests substitute a scripted source.
type CaptureSource interface {
	Start(ctx context.Context) error
	Output() <-chan audio.Chunk
	Pause()
	Resume()
	Stop()
	Stopped() bool
	Recorded() time.Duration
}

// CaptureFactory creates a fresh capture source per session.
type CaptureFactory func() CaptureSource

// EventType identifies a pipeline event.
type EventType string

const (
	EventState      EventType = "state"
	EventUtterances EventType = "utterances"
	EventSummary    EventType = "summary"
)

// Event is a pipeline notification pushed to connected clients.
type Event struct {
	Type       EventType                 `json:"type"`
	Time       time.Time                 `json:"time"`
	SessionID  string                    `json:"session_id"`
	State      session.State             `json:"state,omitempty"`
	Utterances []session.MergedUtterance `json:"utterances,omitempty"`
	Summary    *session.Summary          `json:"summary,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of the active session, safe to read
// from any goroutine.
type Status struct {
	SessionID          string        `json:"session_id,omitempty"`
	State              session.State `json:"state"`
	Recorded           time.Duration `json:"recorded"`
	Paused             bool          `json:"paused,omitempty"`
	Chunks             int           `json:"chunks"`
	Utterances         int           `json:"utterances"`
	DroppedChunks      int           `json:"dropped_chunks,omitempty"`
	FailedDiarizations int           `json:"failed_diarizations,omitempty"`
}

// Manager runs the recording pipeline. A single control goroutine owns
// all session state; external callers interact through commands, the
// status snapshot, and the event channel.
type Manager struct {
	cfg *config.Config

	transcriber engine.Transcriber
	diarizer    engine.Diarizer
	summarizer  engine.Summarizer
	db          *store.Store
	newCapture  CaptureFactory

	commands chan command
	results  chan result
	events   chan Event
	status   *syncx.Guard[Status]

	// sem bounds concurrent transcription workers.
	sem chan struct{}

	done chan struct{}
}

// New creates a manager. Run must be called before commands are accepted.
func New(cfg *config.Config, t engine.Transcriber, d engine.Diarizer, s engine.Summarizer, db *store.Store, newCapture CaptureFactory) *Manager {
	return &Manager{
		cfg:         cfg,
		transcriber: t,
		diarizer:    d,
		summarizer:  s,
		db:          db,
		newCapture:  newCapture,
		commands:    make(chan command, CommandBuffer),
		results:     make(chan result, ResultBuffer),
		events:      make(chan Event, EventBuffer),
		status:      syncx.NewGuard(Status{State: session.StateIdle}),
		sem:         make(chan struct{}, cfg.MaxConcurrentTranscriptions),
		done:        make(chan struct{}),
	}
}

// Events returns the pipeline event channel.
func (m *Manager) Events() <-chan Event { return m.events }

// Status returns the current session snapshot.
func (m *Manager) Status() Status { return m.status.Get() }

// Health probes each engine, keyed by engine name.
func (m *Manager) Health(ctx context.Context) map[string]bool {
	return map[string]bool{
		m.transcriber.Name(): m.transcriber.IsAvailable(ctx),
		m.diarizer.Name():    m.diarizer.IsAvailable(ctx),
		m.summarizer.Name():  m.summarizer.IsAvailable(ctx),
	}
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdDiscard
	cmdPause
	cmdResume
)

type command struct {
	kind  cmdKind
	reply chan cmdReply
}

type cmdReply struct {
	sessionID string
	err       error
}

// StartSession begins a new recording session and returns its ID.
func (m *Manager) StartSession(ctx context.Context) (string, error) {
	r, err := m.send(ctx, cmdStart)
	return r.sessionID, err
}

// StopSession ends recording and starts finalization.
func (m *Manager) StopSession(ctx context.Context) error {
	_, err := m.send(ctx, cmdStop)
	return err
}

// DiscardSession abandons the active recording, deleting its artifacts.
func (m *Manager) DiscardSession(ctx context.Context) error {
	_, err := m.send(ctx, cmdDiscard)
	return err
}

// PauseSession suspends capture without ending the session.
func (m *Manager) PauseSession(ctx context.Context) error {
	_, err := m.send(ctx, cmdPause)
	return err
}

// ResumeSession continues a paused session.
func (m *Manager) ResumeSession(ctx context.Context) error {
	_, err := m.send(ctx, cmdResume)
	return err
}

func (m *Manager) send(ctx context.Context, kind cmdKind) (cmdReply, error) {
	cmd := command{kind: kind, reply: make(chan cmdReply, 1)}
	select {
	case m.commands <- cmd:
	case <-m.done:
		return cmdReply{}, apperrors.New(apperrors.InvalidState, "pipeline not running")
	case <-ctx.Done():
		return cmdReply{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r, r.err
	case <-ctx.Done():
		return cmdReply{}, ctx.Err()
	}
}

func newSessionID() string {
	return uuid.NewString()
}

func (m *Manager) recordingPath(id string) string {
	return filepath.Join(m.cfg.RecordingsDir(), id+".wav")
}
