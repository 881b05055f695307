package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/video"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		frames INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		track_id INTEGER,
		class INTEGER NOT NULL,
		team TEXT NOT NULL,
		confidence REAL NOT NULL,
		x1 INTEGER NOT NULL,
		y1 INTEGER NOT NULL,
		x2 INTEGER NOT NULL,
		y2 INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_session_track ON observations(session_id, track_id)`,
}

//Recorder stores every classified observation of a scouting session in a SQLite file
type Recorder struct {
	db        *sql.DB
	sessionID string
}

//TrackSummary counts the team labels a track got over the session. Labels are per frame, the majority is only a report.
type TrackSummary struct {
	TrackID  uint64 `json:"track_id"`
	TeamA    int    `json:"team_a"`
	TeamB    int    `json:"team_b"`
	Majority string `json:"majority"` //"A", "B" or empty on a tie
	FirstSeq uint64 `json:"first_seq"`
	LastSeq  uint64 `json:"last_seq"`
}

//Open opens (or creates) the database at path and starts a new session for source
func Open(ctx context.Context, path string, source string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: unable to open database '%s': %w", path, err)
	}

	//a single connection keeps writes serialized without "database is locked" errors
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("Open: '%s' failed: %w", pragma, err)
		}
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("Open: migration failed: %w", err)
		}
	}

	r := &Recorder{db: db, sessionID: uuid.NewString()}
	if _, err := db.ExecContext(ctx, `INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)`, r.sessionID, source, time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: unable to create session: %w", err)
	}

	return r, nil
}

func (r *Recorder) SessionID() string {
	return r.sessionID
}

//Publish stores all observations of result in a single transaction
func (r *Recorder) Publish(ctx context.Context, result video.FrameResult) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Publish: unable to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations
		(session_id, seq, timestamp, track_id, class, team, confidence, x1, y1, x2, y2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("Publish: unable to prepare statement: %w", err)
	}
	defer stmt.Close()

	timestamp := result.Timestamp.UTC()
	for _, obs := range result.Observations {
		var trackID sql.NullInt64
		if id, ok := obs.Track.Value(); ok {
			trackID = sql.NullInt64{Int64: int64(id), Valid: true}
		}

		if _, err = stmt.ExecContext(ctx, r.sessionID, int64(result.Seq), timestamp, trackID, int(obs.Class), obs.Team.String(), obs.Confidence,
			obs.Box.Min.X, obs.Box.Min.Y, obs.Box.Max.X, obs.Box.Max.Y); err != nil {
			return fmt.Errorf("Publish: unable to insert observation of frame %d: %w", result.Seq, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE sessions SET frames = frames + 1 WHERE id = ?`, r.sessionID); err != nil {
		return fmt.Errorf("Publish: unable to update session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Publish: unable to commit frame %d: %w", result.Seq, err)
	}
	return nil
}

//Frames returns how many frames were published in the current session
func (r *Recorder) Frames(ctx context.Context) (uint64, error) {
	var frames int64
	if err := r.db.QueryRowContext(ctx, `SELECT frames FROM sessions WHERE id = ?`, r.sessionID).Scan(&frames); err != nil {
		return 0, fmt.Errorf("Frames: %w", err)
	}
	return uint64(frames), nil
}

//TrackSummaries returns, ordered by track id, the team votes of every tracked object of the current session.
//Observations with a pending track are not part of any summary.
func (r *Recorder) TrackSummaries(ctx context.Context) ([]TrackSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT track_id,
			SUM(CASE WHEN team = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN team = ? THEN 1 ELSE 0 END),
			MIN(seq), MAX(seq)
		FROM observations
		WHERE session_id = ? AND track_id IS NOT NULL
		GROUP BY track_id
		ORDER BY track_id`, video.TeamA.String(), video.TeamB.String(), r.sessionID)
	if err != nil {
		return nil, fmt.Errorf("TrackSummaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]TrackSummary, 0)
	for rows.Next() {
		var trackID, firstSeq, lastSeq int64
		var summary TrackSummary
		if err := rows.Scan(&trackID, &summary.TeamA, &summary.TeamB, &firstSeq, &lastSeq); err != nil {
			return nil, fmt.Errorf("TrackSummaries: %w", err)
		}

		summary.TrackID, summary.FirstSeq, summary.LastSeq = uint64(trackID), uint64(firstSeq), uint64(lastSeq)
		switch {
		case summary.TeamA > summary.TeamB:
			summary.Majority = video.TeamA.String()
		case summary.TeamB > summary.TeamA:
			summary.Majority = video.TeamB.String()
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TrackSummaries: %w", err)
	}
	return summaries, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
