package sqlite

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"github.com/mohitkumar/flowup/util"
)

var _ persistence.Storage = new(SqliteStorage)

// SqliteStorage is a Storage backed by SQLite through database/sql with the
// pure go "modernc.org/sqlite" driver. Claims are lease columns on the
// enrollment row, granted by a conditional update.
type SqliteStorage struct {
	db          *sql.DB
	stepsEncDec util.EncoderDecoder[[]model.Step]
	attrsEncDec util.EncoderDecoder[map[string]any]
}

func NewSqliteStorage(file string) (*SqliteStorage, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	// claims rely on a single writer observing consistent state
	db.SetMaxOpenConns(1)
	s := &SqliteStorage{
		db:          db,
		stepsEncDec: util.NewJsonEncoderDecoder[[]model.Step](),
		attrsEncDec: util.NewJsonEncoderDecoder[map[string]any](),
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SqliteStorage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sequences (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			initial_delay_days INTEGER NOT NULL,
			active INTEGER NOT NULL,
			trigger_event TEXT,
			steps BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS enrollments (
			id TEXT PRIMARY KEY,
			prospect_id TEXT NOT NULL,
			sequence_id TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step INTEGER NOT NULL,
			next_step_due INTEGER,
			last_step_sent_at INTEGER,
			enrolled_at INTEGER NOT NULL,
			paused_at INTEGER,
			cancelled_at INTEGER,
			completed_at INTEGER,
			failed_attempts INTEGER NOT NULL DEFAULT 0,
			needs_attention INTEGER NOT NULL DEFAULT 0,
			claimed_by TEXT,
			claimed_until INTEGER
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_open_pair
			ON enrollments(prospect_id, sequence_id)
			WHERE status IN ('ACTIVE','PAUSED');
		CREATE INDEX IF NOT EXISTS idx_enrollments_due
			ON enrollments(status, next_step_due);
		CREATE TABLE IF NOT EXISTS prospects (
			id TEXT PRIMARY KEY,
			email TEXT,
			phone TEXT,
			linkedin_url TEXT,
			owner_id TEXT,
			status TEXT NOT NULL,
			last_contact_date INTEGER,
			attributes BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_prospects_status
			ON prospects(status, last_contact_date);
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			prospect_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT,
			subject TEXT,
			scheduled_at INTEGER NOT NULL,
			completed_at INTEGER,
			successful INTEGER NOT NULL,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_interactions_prospect
			ON interactions(prospect_id, scheduled_at);`,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func millis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func (s *SqliteStorage) SaveSequence(seq *model.Sequence) error {
	steps, err := s.stepsEncDec.Encode(seq.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sequences (id, name, initial_delay_days, active, trigger_event, steps)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			initial_delay_days = excluded.initial_delay_days,
			active = excluded.active,
			trigger_event = excluded.trigger_event,
			steps = excluded.steps`,
		seq.Id,
		seq.Name,
		seq.InitialDelayDays,
		boolToInt(seq.Active),
		seq.TriggerEvent,
		steps,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) GetSequence(id string) (*model.Sequence, error) {
	row := s.db.QueryRow(`
		SELECT id, name, initial_delay_days, active, trigger_event, steps
		FROM sequences
		WHERE id = ?`,
		id,
	)
	return s.scanSequence(row)
}

func (s *SqliteStorage) scanSequence(row *sql.Row) (*model.Sequence, error) {
	var seq model.Sequence
	var active int
	var trigger sql.NullString
	var steps []byte
	if err := row.Scan(&seq.Id, &seq.Name, &seq.InitialDelayDays, &active, &trigger, &steps); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundError{Kind: "sequence", Id: seq.Id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	seq.Active = active != 0
	seq.TriggerEvent = trigger.String
	decoded, err := s.stepsEncDec.Decode(steps)
	if err != nil {
		return nil, err
	}
	seq.Steps = *decoded
	return &seq, nil
}

func (s *SqliteStorage) DeleteSequence(id string) error {
	_, err := s.db.Exec(`DELETE FROM sequences WHERE id = ?`, id)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) ListSequencesByTrigger(triggerEvent string) ([]*model.Sequence, error) {
	rows, err := s.db.Query(`
		SELECT id, name, initial_delay_days, active, trigger_event, steps
		FROM sequences
		WHERE trigger_event = ?
		ORDER BY id`,
		triggerEvent,
	)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var result []*model.Sequence
	for rows.Next() {
		var seq model.Sequence
		var active int
		var trigger sql.NullString
		var steps []byte
		if err := rows.Scan(&seq.Id, &seq.Name, &seq.InitialDelayDays, &active, &trigger, &steps); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		seq.Active = active != 0
		seq.TriggerEvent = trigger.String
		decoded, err := s.stepsEncDec.Decode(steps)
		if err != nil {
			return nil, err
		}
		seq.Steps = *decoded
		result = append(result, &seq)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
