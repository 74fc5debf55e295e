// Package persistence provides SQLite-based storage of finished episodes.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/pursuit/internal/engine"
)

// ErrEpisodeNotFound is returned when an episode id has no row.
var ErrEpisodeNotFound = errors.New("episode not found")

// DB wraps a SQLite connection for episode persistence.
type DB struct {
	conn *sqlx.DB
}

// Episode is the stored summary of one episode.
type Episode struct {
	ID           string    `db:"id" json:"id"`
	Scenario     string    `db:"scenario" json:"scenario"`
	Steps        int       `db:"steps" json:"steps"`
	Terminal     bool      `db:"terminal" json:"terminal"`
	Captured     bool      `db:"captured" json:"captured"`
	TotalRewards string    `db:"total_rewards_json" json:"-"`
	StartedAt    time.Time `db:"started_at" json:"started_at"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
}

// Rewards decodes the per-agent reward totals.
func (e Episode) Rewards() ([]float64, error) {
	var out []float64
	if e.TotalRewards == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(e.TotalRewards), &out)
	return out, err
}

// StepRecord is one stored tick.
type StepRecord struct {
	EpisodeID string `db:"episode_id" json:"episode_id"`
	Tick      int    `db:"tick" json:"tick"`
	Terminal  bool   `db:"terminal" json:"terminal"`
	Captured  bool   `db:"captured" json:"captured"`
	Result    string `db:"result_json" json:"-"`
}

// Decode returns the stored step result.
func (s StepRecord) Decode() (engine.StepResult, error) {
	var res engine.StepResult
	err := json.Unmarshal([]byte(s.Result), &res)
	return res, err
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		steps INTEGER NOT NULL,
		terminal INTEGER NOT NULL,
		captured INTEGER NOT NULL,
		total_rewards_json TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		episode_id TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
		tick INTEGER NOT NULL,
		terminal INTEGER NOT NULL,
		captured INTEGER NOT NULL,
		result_json TEXT NOT NULL,
		PRIMARY KEY (episode_id, tick)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_started ON episodes(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEpisode writes an episode and all of its steps in one transaction.
func (db *DB) SaveEpisode(scenario string, sum engine.EpisodeSummary) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	totals, err := json.Marshal(sum.TotalRewards)
	if err != nil {
		return fmt.Errorf("encode rewards: %w", err)
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO episodes
		(id, scenario, steps, terminal, captured, total_rewards_json, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID.String(), scenario, sum.Steps, sum.Terminal, sum.Captured,
		string(totals), sum.Started.UTC(), sum.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", sum.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM steps WHERE episode_id = ?", sum.ID.String()); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO steps
		(episode_id, tick, terminal, captured, result_json)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range sum.Results {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode step %d: %w", res.Tick, err)
		}
		if _, err := stmt.Exec(sum.ID.String(), res.Tick, res.Terminal, res.Captured, string(b)); err != nil {
			return fmt.Errorf("insert step %d: %w", res.Tick, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("episode saved", "id", sum.ID, "steps", len(sum.Results))
	return nil
}

// ListEpisodes returns the most recent episodes, newest first.
func (db *DB) ListEpisodes(limit int) ([]Episode, error) {
	var eps []Episode
	err := db.conn.Select(&eps,
		`SELECT id, scenario, steps, terminal, captured, total_rewards_json, started_at, duration_ms
		 FROM episodes ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	return eps, err
}

// GetEpisode returns one episode by id.
func (db *DB) GetEpisode(id string) (Episode, error) {
	var ep Episode
	err := db.conn.Get(&ep,
		`SELECT id, scenario, steps, terminal, captured, total_rewards_json, started_at, duration_ms
		 FROM episodes WHERE id = ?`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ep, fmt.Errorf("%s: %w", id, ErrEpisodeNotFound)
	}
	return ep, err
}

// LoadSteps returns the stored ticks of an episode in order.
func (db *DB) LoadSteps(episodeID string) ([]StepRecord, error) {
	var steps []StepRecord
	err := db.conn.Select(&steps,
		"SELECT episode_id, tick, terminal, captured, result_json FROM steps WHERE episode_id = ? ORDER BY tick",
		episodeID,
	)
	return steps, err
}

// CaptureRate returns the fraction of stored episodes that ended in a capture.
func (db *DB) CaptureRate() (float64, int, error) {
	var row struct {
		Total    int           `db:"total"`
		Captured sql.NullInt64 `db:"captured"`
	}
	err := db.conn.Get(&row, "SELECT COUNT(*) AS total, SUM(captured) AS captured FROM episodes")
	if err != nil || row.Total == 0 {
		return 0, row.Total, err
	}
	return float64(row.Captured.Int64) / float64(row.Total), row.Total, nil
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}
