package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/divyashie/openmeet/internal/audio"
	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/metrics"
	"github.com/divyashie/openmeet/internal/session"
	"github.com/divyashie/openmeet/internal/store"
)

type resultKind int

const (
	resTranscript resultKind = iota
	resDiarize
	resFinalDiarize
	resSummary
)

type result struct {
	gen        int
	kind       resultKind
	chunkIndex int
	segments   []session.TranscriptSegment
	turns      []session.SpeakerTurn
	summary    *session.Summary
	err        error
}

// active is the control goroutine's per-session state. Only the control
// goroutine touches it.
type active struct {
	sess     *session.Session
	capture  CaptureSource
	recorder *audio.Recorder
	ctx      context.Context
	cancel   context.CancelFunc

	chunks       int
	pending      int // in-flight transcriptions
	sinceDiarize int
	diarizing    bool
	paused       bool
	stopping     bool
	drained      bool // capture output closed
	finalizing   bool // final diarization dispatched
}

// Run executes the control loop until ctx is cancelled. All session
// state lives on this goroutine; workers communicate through m.results.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	var a *active
	gen := 0

	for {
		var out <-chan audio.Chunk
		if a != nil && !a.drained {
			out = a.capture.Output()
		}

		select {
		case <-ctx.Done():
			m.shutdown(a)
			return

		case cmd := <-m.commands:
			a, gen = m.handleCommand(ctx, a, gen, cmd)

		case chunk, ok := <-out:
			if !ok {
				a = m.handleCaptureClosed(a, gen)
				continue
			}
			a = m.handleChunk(a, gen, chunk)

		case res := <-m.results:
			if a == nil || res.gen != gen {
				// Late completion from a finished session.
				continue
			}
			a = m.handleResult(a, gen, res)
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, a *active, gen int, cmd command) (*active, int) {
	switch cmd.kind {
	case cmdStart:
		if a != nil {
			cmd.reply <- cmdReply{err: apperrors.New(apperrors.InvalidState, "a session is already active")}
			return a, gen
		}
		next, err := m.startSession(ctx)
		if err != nil {
			cmd.reply <- cmdReply{err: err}
			return nil, gen
		}
		gen++
		m.publishStatus(next)
		m.emit(Event{Type: EventState, SessionID: next.sess.ID, State: session.StateRecording})
		cmd.reply <- cmdReply{sessionID: next.sess.ID}
		return next, gen

	case cmdStop:
		if a == nil || a.sess.State != session.StateRecording {
			cmd.reply <- cmdReply{err: apperrors.New(apperrors.InvalidState, "no recording session to stop")}
			return a, gen
		}
		a.stopping = true
		a.sess.State = session.StateFinalizing
		// Stop flushes the partial chunk into the output channel before
		// closing it; the loop drains what remains.
		a.capture.Stop()
		a.sess.Recorded = a.capture.Recorded()
		m.publishStatus(a)
		m.emit(Event{Type: EventState, SessionID: a.sess.ID, State: session.StateFinalizing})
		cmd.reply <- cmdReply{sessionID: a.sess.ID}
		return a, gen

	case cmdDiscard:
		if a == nil || a.sess.State != session.StateRecording {
			cmd.reply <- cmdReply{err: apperrors.New(apperrors.InvalidState, "no recording session to discard")}
			return a, gen
		}
		m.discard(a)
		cmd.reply <- cmdReply{sessionID: a.sess.ID}
		return nil, gen

	case cmdPause:
		if a == nil || a.sess.State != session.StateRecording || a.stopping {
			cmd.reply <- cmdReply{err: apperrors.New(apperrors.InvalidState, "no recording session to pause")}
			return a, gen
		}
		a.capture.Pause()
		a.paused = true
		m.publishStatus(a)
		cmd.reply <- cmdReply{sessionID: a.sess.ID}
		return a, gen

	case cmdResume:
		if a == nil || !a.paused {
			cmd.reply <- cmdReply{err: apperrors.New(apperrors.InvalidState, "no paused session to resume")}
			return a, gen
		}
		a.capture.Resume()
		a.paused = false
		m.publishStatus(a)
		cmd.reply <- cmdReply{sessionID: a.sess.ID}
		return a, gen
	}

	cmd.reply <- cmdReply{err: apperrors.New(apperrors.Internal, "unknown command")}
	return a, gen
}

func (m *Manager) startSession(ctx context.Context) (*active, error) {
	// A missing binary or model should surface here, not as a dropped
	// chunk ten seconds into a meeting.
	if !m.transcriber.IsAvailable(ctx) {
		return nil, apperrors.Newf(apperrors.EngineUnavailable,
			"transcription engine %s is not available", m.transcriber.Name())
	}
	// The summary only degrades the session, so an unreachable summarizer
	// is worth a warning up front but not a refusal to record.
	if !m.summarizer.IsAvailable(ctx) {
		slog.Warn("summarization engine unavailable at start, summary may fail",
			"engine", m.summarizer.Name())
	}

	id := newSessionID()
	recorder, err := audio.NewRecorder(m.recordingPath(id), m.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	capture := m.newCapture()
	sctx, cancel := context.WithCancel(ctx)
	if err := capture.Start(sctx); err != nil {
		cancel()
		_ = recorder.Discard()
		return nil, err
	}

	sess := session.New(id, time.Now())
	sess.AudioPath = recorder.Path()
	metrics.SessionActive.Set(1)
	slog.Info("session started", "session", id, "recording", recorder.Path())

	return &active{
		sess:     sess,
		capture:  capture,
		recorder: recorder,
		ctx:      sctx,
		cancel:   cancel,
	}, nil
}

func (m *Manager) handleChunk(a *active, gen int, chunk audio.Chunk) *active {
	if err := a.recorder.Append(chunk.Samples); err != nil {
		return m.fail(a, err)
	}

	a.chunks++
	a.sinceDiarize++
	a.sess.Recorded = a.capture.Recorded()

	a.pending++
	m.spawnTranscription(a.ctx, gen, chunk)

	if !a.stopping && !a.diarizing && a.sinceDiarize >= m.cfg.DiarizationStride {
		a.sinceDiarize = 0
		if err := a.recorder.Sync(); err != nil {
			return m.fail(a, err)
		}
		a.diarizing = true
		m.spawnDiarization(a.ctx, gen, a.recorder.Path(), resDiarize)
	}

	m.publishStatus(a)
	return a
}

func (m *Manager) handleCaptureClosed(a *active, gen int) *active {
	a.drained = true
	if a.sess.State == session.StateRecording && !a.capture.Stopped() {
		return m.fail(a, apperrors.New(apperrors.DeviceUnavailable, "audio device lost"))
	}
	a.sess.Recorded = a.capture.Recorded()
	return m.maybeFinalize(a, gen)
}

func (m *Manager) handleResult(a *active, gen int, res result) *active {
	switch res.kind {
	case resTranscript:
		a.pending--
		if res.err != nil {
			// One bad chunk degrades the transcript, not the session.
			a.sess.DroppedChunks++
			metrics.RecordChunk("transcription", "error")
			slog.Warn("chunk transcription failed",
				"session", a.sess.ID, "chunk", res.chunkIndex, "error", res.err)
		} else {
			a.sess.AddSegments(res.segments)
			metrics.RecordChunk("transcription", "ok")
			m.emitUtterances(a)
		}
		m.publishStatus(a)
		return m.maybeFinalize(a, gen)

	case resDiarize:
		a.diarizing = false
		if res.err != nil {
			a.sess.FailedDiarizations++
			slog.Warn("diarization pass failed", "session", a.sess.ID, "error", res.err)
			m.publishStatus(a)
			return m.maybeFinalize(a, gen)
		}
		a.sess.ReplaceTurns(res.turns)
		m.emitUtterances(a)
		m.publishStatus(a)
		return m.maybeFinalize(a, gen)

	case resFinalDiarize:
		if res.err != nil {
			// Fall back to the labels from the last incremental pass.
			a.sess.FailedDiarizations++
			slog.Warn("final diarization failed, keeping previous labels",
				"session", a.sess.ID, "error", res.err)
		} else {
			a.sess.ReplaceTurns(res.turns)
			m.emitUtterances(a)
		}
		m.publishStatus(a)

		transcript := session.FormatTranscript(a.sess.Merged())
		if transcript == "" {
			slog.Info("empty transcript, skipping summary", "session", a.sess.ID)
			return m.complete(a)
		}
		m.spawnSummary(a.ctx, gen, transcript, a.sess.Recorded)
		return a

	case resSummary:
		if res.err != nil {
			a.sess.SummaryFailed = true
			slog.Error("summarization failed", "session", a.sess.ID, "error", res.err)
			m.emit(Event{Type: EventSummary, SessionID: a.sess.ID, Error: res.err.Error()})
		} else {
			a.sess.SetSummary(res.summary)
			m.emit(Event{Type: EventSummary, SessionID: a.sess.ID, Summary: res.summary})
		}
		return m.complete(a)
	}
	return a
}

// maybeFinalize dispatches the final diarization pass once capture has
// drained and every in-flight transcription and incremental diarization
// has settled. Waiting on a.diarizing keeps passes serialized, so a slow
// incremental pass can never land after the final one and replace its
// full-coverage labels.
func (m *Manager) maybeFinalize(a *active, gen int) *active {
	if !a.stopping || !a.drained || a.pending > 0 || a.diarizing || a.finalizing {
		return a
	}
	a.finalizing = true
	if err := a.recorder.Close(); err != nil {
		return m.fail(a, err)
	}
	if a.chunks == 0 {
		// Nothing was recorded; skip the engines entirely.
		return m.complete(a)
	}
	m.spawnDiarization(a.ctx, gen, a.recorder.Path(), resFinalDiarize)
	return a
}

func (m *Manager) complete(a *active) *active {
	a.sess.State = session.StateCompleted
	m.persist(a)
	m.emit(Event{Type: EventState, SessionID: a.sess.ID, State: session.StateCompleted})
	m.publishStatus(a)
	metrics.SessionsTotal.WithLabelValues("completed").Inc()
	metrics.SessionActive.Set(0)
	slog.Info("session completed", "session", a.sess.ID,
		"recorded", a.sess.Recorded, "utterances", len(a.sess.Merged()),
		"dropped_chunks", a.sess.DroppedChunks)
	a.cancel()
	return nil
}

func (m *Manager) fail(a *active, err error) *active {
	a.sess.State = session.StateFailed
	a.cancel()
	if !a.capture.Stopped() {
		a.capture.Stop()
	}
	a.drained = true
	if closeErr := a.recorder.Close(); closeErr != nil {
		slog.Error("closing recording after failure", "session", a.sess.ID, "error", closeErr)
	}
	m.persist(a)
	m.emit(Event{Type: EventState, SessionID: a.sess.ID, State: session.StateFailed, Error: err.Error()})
	m.publishStatus(a)
	metrics.SessionsTotal.WithLabelValues("failed").Inc()
	metrics.SessionActive.Set(0)
	slog.Error("session failed", "session", a.sess.ID, "error", err)
	return nil
}

func (m *Manager) discard(a *active) {
	a.sess.State = session.StateDiscarded
	a.cancel()
	a.capture.Stop()
	a.drained = true
	if err := a.recorder.Discard(); err != nil {
		slog.Error("discarding recording", "session", a.sess.ID, "error", err)
	}
	m.emit(Event{Type: EventState, SessionID: a.sess.ID, State: session.StateDiscarded})
	m.publishStatus(a)
	metrics.SessionsTotal.WithLabelValues("discarded").Inc()
	metrics.SessionActive.Set(0)
	slog.Info("session discarded", "session", a.sess.ID)
}

func (m *Manager) shutdown(a *active) {
	if a == nil {
		return
	}
	slog.Warn("shutting down with active session", "session", a.sess.ID, "state", a.sess.State)
	a.cancel()
	if !a.capture.Stopped() {
		a.capture.Stop()
	}
	if err := a.recorder.Close(); err != nil {
		slog.Error("closing recording during shutdown", "session", a.sess.ID, "error", err)
	}
	m.persist(a)
	metrics.SessionActive.Set(0)
}

func (m *Manager) persist(a *active) {
	rec := &store.Record{
		ID:                 a.sess.ID,
		StartedAt:          a.sess.StartedAt,
		State:              a.sess.State,
		Recorded:           a.sess.Recorded,
		AudioPath:          a.sess.AudioPath,
		Utterances:         a.sess.Merged(),
		Summary:            a.sess.Summary(),
		DroppedChunks:      a.sess.DroppedChunks,
		FailedDiarizations: a.sess.FailedDiarizations,
		SummaryFailed:      a.sess.SummaryFailed,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.db.Save(ctx, rec); err != nil {
		slog.Error("persisting session", "session", a.sess.ID, "error", err)
	}
}

func (m *Manager) spawnTranscription(ctx context.Context, gen int, chunk audio.Chunk) {
	go func() {
		select {
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		case <-ctx.Done():
			m.postResult(result{gen: gen, kind: resTranscript, chunkIndex: chunk.Index, err: ctx.Err()})
			return
		}
		segs, err := m.transcriber.Transcribe(ctx, chunk)
		m.postResult(result{gen: gen, kind: resTranscript, chunkIndex: chunk.Index, segments: segs, err: err})
	}()
}

func (m *Manager) spawnDiarization(ctx context.Context, gen int, path string, kind resultKind) {
	go func() {
		turns, err := m.diarizer.Diarize(ctx, path)
		m.postResult(result{gen: gen, kind: kind, turns: turns, err: err})
	}()
}

func (m *Manager) spawnSummary(ctx context.Context, gen int, transcript string, recorded time.Duration) {
	go func() {
		summary, err := m.summarizer.Summarize(ctx, transcript, recorded)
		m.postResult(result{gen: gen, kind: resSummary, summary: summary, err: err})
	}()
}

func (m *Manager) postResult(res result) {
	select {
	case m.results <- res:
	case <-m.done:
	}
}

func (m *Manager) emitUtterances(a *active) {
	m.emit(Event{Type: EventUtterances, SessionID: a.sess.ID, Utterances: a.sess.Merged()})
}

func (m *Manager) emit(ev Event) {
	ev.Time = time.Now()
	select {
	case m.events <- ev:
	default:
		slog.Warn("event buffer full, dropping event", "type", ev.Type)
	}
}

func (m *Manager) publishStatus(a *active) {
	m.status.Set(Status{
		SessionID:          a.sess.ID,
		State:              a.sess.State,
		Recorded:           a.sess.Recorded,
		Paused:             a.paused,
		Chunks:             a.chunks,
		Utterances:         len(a.sess.Merged()),
		DroppedChunks:      a.sess.DroppedChunks,
		FailedDiarizations: a.sess.FailedDiarizations,
	})
}
