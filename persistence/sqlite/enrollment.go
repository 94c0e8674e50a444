package sqlite

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
)

const enrollmentColumns = `id, prospect_id, sequence_id, status, current_step,
	next_step_due, last_step_sent_at, enrolled_at, paused_at, cancelled_at,
	completed_at, failed_attempts, needs_attention, claimed_by, claimed_until`

func (s *SqliteStorage) CreateEnrollment(enrollment *model.Enrollment) error {
	_, err := s.db.Exec(`
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		enrollment.Id,
		enrollment.ProspectId,
		enrollment.SequenceId,
		string(enrollment.Status),
		enrollment.CurrentStep,
		millis(enrollment.NextStepDue),
		millis(enrollment.LastStepSentAt),
		enrollment.EnrolledAt.UnixMilli(),
		millis(enrollment.PausedAt),
		millis(enrollment.CancelledAt),
		millis(enrollment.CompletedAt),
		enrollment.FailedAttempts,
		boolToInt(enrollment.NeedsAttention),
		enrollment.ClaimedBy,
		millis(enrollment.ClaimedUntil),
	)
	if err != nil {
		// the partial unique index on (prospect_id, sequence_id) guards the
		// one-open-enrollment-per-pair invariant
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.DuplicateEnrollmentError{ProspectId: enrollment.ProspectId, SequenceId: enrollment.SequenceId}
		}
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) GetEnrollment(id string) (*model.Enrollment, error) {
	row := s.db.QueryRow(`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`, id)
	enrollment, err := scanEnrollment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundError{Kind: "enrollment", Id: id}
		}
		return nil, err
	}
	return enrollment, nil
}

func scanEnrollment(scan func(dest ...any) error) (*model.Enrollment, error) {
	var e model.Enrollment
	var status string
	var nextStepDue, lastStepSentAt, pausedAt, cancelledAt, completedAt, claimedUntil sql.NullInt64
	var enrolledAt int64
	var needsAttention int
	var claimedBy sql.NullString
	err := scan(
		&e.Id, &e.ProspectId, &e.SequenceId, &status, &e.CurrentStep,
		&nextStepDue, &lastStepSentAt, &enrolledAt, &pausedAt, &cancelledAt,
		&completedAt, &e.FailedAttempts, &needsAttention, &claimedBy, &claimedUntil,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	e.Status = model.EnrollmentStatus(status)
	e.NextStepDue = fromMillis(nextStepDue)
	e.LastStepSentAt = fromMillis(lastStepSentAt)
	e.EnrolledAt = time.UnixMilli(enrolledAt)
	e.PausedAt = fromMillis(pausedAt)
	e.CancelledAt = fromMillis(cancelledAt)
	e.CompletedAt = fromMillis(completedAt)
	e.NeedsAttention = needsAttention != 0
	e.ClaimedBy = claimedBy.String
	e.ClaimedUntil = fromMillis(claimedUntil)
	return &e, nil
}

func (s *SqliteStorage) SaveEnrollment(enrollment *model.Enrollment) error {
	return s.updateEnrollment(s.db, enrollment)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SqliteStorage) updateEnrollment(db execer, enrollment *model.Enrollment) error {
	res, err := db.Exec(`
		UPDATE enrollments SET
			status = ?, current_step = ?, next_step_due = ?, last_step_sent_at = ?,
			paused_at = ?, cancelled_at = ?, completed_at = ?, failed_attempts = ?,
			needs_attention = ?, claimed_by = ?, claimed_until = ?
		WHERE id = ?`,
		string(enrollment.Status),
		enrollment.CurrentStep,
		millis(enrollment.NextStepDue),
		millis(enrollment.LastStepSentAt),
		millis(enrollment.PausedAt),
		millis(enrollment.CancelledAt),
		millis(enrollment.CompletedAt),
		enrollment.FailedAttempts,
		boolToInt(enrollment.NeedsAttention),
		enrollment.ClaimedBy,
		millis(enrollment.ClaimedUntil),
		enrollment.Id,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if affected == 0 {
		return model.NotFoundError{Kind: "enrollment", Id: enrollment.Id}
	}
	return nil
}

func (s *SqliteStorage) FindActiveOrPaused(prospectId string, sequenceId string) (*model.Enrollment, error) {
	row := s.db.QueryRow(`
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE prospect_id = ? AND sequence_id = ? AND status IN ('ACTIVE','PAUSED')`,
		prospectId, sequenceId,
	)
	enrollment, err := scanEnrollment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *SqliteStorage) ListActiveOrPausedByProspect(prospectId string) ([]*model.Enrollment, error) {
	rows, err := s.db.Query(`
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE prospect_id = ? AND status IN ('ACTIVE','PAUSED')`,
		prospectId,
	)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var result []*model.Enrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return result, nil
}

// ClaimDue grants a lease on each due active enrollment through a
// conditional update, so overlapping scan passes can never claim the same
// row twice. Rows whose previous lease expired are claimable again.
func (s *SqliteStorage) ClaimDue(now time.Time, claimTTL time.Duration, owner string, batchSize int) ([]*model.Enrollment, error) {
	limit := batchSize
	if limit <= 0 {
		// sqlite treats a negative LIMIT as no limit
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id FROM enrollments
		WHERE status = 'ACTIVE' AND next_step_due IS NOT NULL AND next_step_due <= ?
			AND (claimed_until IS NULL OR claimed_until <= ?)
		ORDER BY next_step_due
		LIMIT ?`,
		now.UnixMilli(), now.UnixMilli(), limit,
	)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}

	claimedUntil := now.Add(claimTTL)
	var claimed []*model.Enrollment
	for _, id := range ids {
		res, err := s.db.Exec(`
			UPDATE enrollments SET claimed_by = ?, claimed_until = ?
			WHERE id = ? AND status = 'ACTIVE' AND next_step_due <= ?
				AND (claimed_until IS NULL OR claimed_until <= ?)`,
			owner, claimedUntil.UnixMilli(), id, now.UnixMilli(), now.UnixMilli(),
		)
		if err != nil {
			return claimed, persistence.StorageLayerError{Message: err.Error()}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, persistence.StorageLayerError{Message: err.Error()}
		}
		if affected == 0 {
			// lost the claim race, not an error
			continue
		}
		enrollment, err := s.GetEnrollment(id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, enrollment)
	}
	return claimed, nil
}

func (s *SqliteStorage) Finalize(enrollment *model.Enrollment, interaction *model.Interaction) error {
	enrollment.ClaimedBy = ""
	enrollment.ClaimedUntil = nil
	tx, err := s.db.Begin()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	defer tx.Rollback()
	if err := s.updateEnrollment(tx, enrollment); err != nil {
		return err
	}
	if interaction != nil {
		if err := appendInteraction(tx, interaction); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) ReleaseClaim(id string) error {
	res, err := s.db.Exec(`UPDATE enrollments SET claimed_by = '', claimed_until = NULL WHERE id = ?`, id)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if affected == 0 {
		return model.NotFoundError{Kind: "enrollment", Id: id}
	}
	return nil
}

func (s *SqliteStorage) ReclaimExpired(now time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE enrollments SET claimed_by = '', claimed_until = NULL
		WHERE claimed_until IS NOT NULL AND claimed_until <= ?`,
		now.UnixMilli(),
	)
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return int(affected), nil
}
