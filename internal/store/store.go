// Package store persists completed sessions to SQLite
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/session"
)

// Record is the persisted form of a finished session: the labeled
// transcript plus summary and degradation counters. Raw segments and
// turns are not kept; the merged utterances are the durable transcript.
type Record struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	State     session.State   `json:"state"`
	Recorded  time.Duration   `json:"recorded"`
	AudioPath string          `json:"audio_path,omitempty"`
	Summary   *session.Summary `json:"summary,omitempty"`

	Utterances []session.MergedUtterance `json:"utterances,omitempty"`

	DroppedChunks      int  `json:"dropped_chunks,omitempty"`
	FailedDiarizations int  `json:"failed_diarizations,omitempty"`
	SummaryFailed      bool `json:"summary_failed,omitempty"`
}

// Store provides durable session storage backed by SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	state TEXT NOT NULL,
	recorded_ms INTEGER NOT NULL,
	audio_path TEXT NOT NULL DEFAULT '',
	summary_text TEXT,
	summary_format TEXT,
	summary_model TEXT,
	summary_source_chars INTEGER,
	summary_created_at INTEGER,
	dropped_chunks INTEGER NOT NULL DEFAULT 0,
	failed_diarizations INTEGER NOT NULL DEFAULT 0,
	summary_failed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS utterances (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL,
	speaker TEXT NOT NULL,
	text TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, idx)
);
`

// Open opens (creating if needed) the database at path with WAL enabled.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "ping database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "apply schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a session record and its utterances in one transaction.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "begin save")
	}
	defer tx.Rollback()

	var (
		sumText, sumFormat, sumModel sql.NullString
		sumChars, sumCreated         sql.NullInt64
	)
	if rec.Summary != nil {
		sumText = sql.NullString{String: rec.Summary.Text, Valid: true}
		sumFormat = sql.NullString{String: rec.Summary.Format, Valid: true}
		sumModel = sql.NullString{String: rec.Summary.Model, Valid: true}
		sumChars = sql.NullInt64{Int64: int64(rec.Summary.SourceChars), Valid: true}
		sumCreated = sql.NullInt64{Int64: rec.Summary.CreatedAt.UnixMilli(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, state, recorded_ms, audio_path,
			summary_text, summary_format, summary_model, summary_source_chars, summary_created_at,
			dropped_chunks, failed_diarizations, summary_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			recorded_ms = excluded.recorded_ms,
			audio_path = excluded.audio_path,
			summary_text = excluded.summary_text,
			summary_format = excluded.summary_format,
			summary_model = excluded.summary_model,
			summary_source_chars = excluded.summary_source_chars,
			summary_created_at = excluded.summary_created_at,
			dropped_chunks = excluded.dropped_chunks,
			failed_diarizations = excluded.failed_diarizations,
			summary_failed = excluded.summary_failed
	`, rec.ID, rec.StartedAt.UnixMilli(), string(rec.State), rec.Recorded.Milliseconds(),
		rec.AudioPath, sumText, sumFormat, sumModel, sumChars, sumCreated,
		rec.DroppedChunks, rec.FailedDiarizations, boolToInt(rec.SummaryFailed))
	if err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "save session")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM utterances WHERE session_id = ?`, rec.ID); err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "clear utterances")
	}
	for i, u := range rec.Utterances {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO utterances (session_id, idx, start_ms, end_ms, speaker, text, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, i, u.Start.Milliseconds(), u.End.Milliseconds(), u.Speaker, u.Text, u.Confidence)
		if err != nil {
			return apperrors.Wrap(err, apperrors.StorageFailed, "save utterance")
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "commit save")
	}
	return nil
}

// Get returns one session with its utterances.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, started_at, state, recorded_ms, audio_path,
			summary_text, summary_format, summary_model, summary_source_chars, summary_created_at,
			dropped_chunks, failed_diarizations, summary_failed
		FROM sessions WHERE id = ?
	`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT start_ms, end_ms, speaker, text, confidence
		FROM utterances WHERE session_id = ? ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "query utterances")
	}
	defer rows.Close()

	for rows.Next() {
		var u session.MergedUtterance
		var startMS, endMS int64
		if err := rows.Scan(&startMS, &endMS, &u.Speaker, &u.Text, &u.Confidence); err != nil {
			return nil, apperrors.Wrap(err, apperrors.StorageFailed, "scan utterance")
		}
		u.Start = time.Duration(startMS) * time.Millisecond
		u.End = time.Duration(endMS) * time.Millisecond
		rec.Utterances = append(rec.Utterances, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "iterate utterances")
	}
	return rec, nil
}

// List returns all sessions newest first, without utterances.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, state, recorded_ms, audio_path,
			summary_text, summary_format, summary_model, summary_source_chars, summary_created_at,
			dropped_chunks, failed_diarizations, summary_failed
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "query sessions")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "iterate sessions")
	}
	return records, nil
}

// Delete removes a session and its utterances.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "delete session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.NotFound, "session %s", id)
	}
	// foreign_keys is a per-connection pragma in SQLite, so do not rely
	// on CASCADE alone.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM utterances WHERE session_id = ?`, id); err != nil {
		return apperrors.Wrap(err, apperrors.StorageFailed, "delete utterances")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSession(row rowScanner) (*Record, error) {
	var (
		rec                          Record
		startedAt, recordedMS        int64
		state                        string
		sumText, sumFormat, sumModel sql.NullString
		sumChars, sumCreated         sql.NullInt64
		summaryFailed                int
	)
	err := row.Scan(&rec.ID, &startedAt, &state, &recordedMS, &rec.AudioPath,
		&sumText, &sumFormat, &sumModel, &sumChars, &sumCreated,
		&rec.DroppedChunks, &rec.FailedDiarizations, &summaryFailed)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.NotFound, "session not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "scan session")
	}

	rec.StartedAt = time.UnixMilli(startedAt)
	rec.State = session.State(state)
	rec.Recorded = time.Duration(recordedMS) * time.Millisecond
	rec.SummaryFailed = summaryFailed != 0
	if sumText.Valid {
		rec.Summary = &session.Summary{
			Text:        sumText.String,
			Format:      sumFormat.String,
			Model:       sumModel.String,
			SourceChars: int(sumChars.Int64),
			CreatedAt:   time.UnixMilli(sumCreated.Int64),
		}
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
