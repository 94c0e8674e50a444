package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
)

func (s *SqliteStorage) SaveProspect(prospect *model.Prospect) error {
	attrs, err := s.attrsEncDec.Encode(prospect.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO prospects (id, email, phone, linkedin_url, owner_id, status, last_contact_date, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			phone = excluded.phone,
			linkedin_url = excluded.linkedin_url,
			owner_id = excluded.owner_id,
			status = excluded.status,
			last_contact_date = excluded.last_contact_date,
			attributes = excluded.attributes`,
		prospect.Id,
		prospect.Email,
		prospect.Phone,
		prospect.LinkedinUrl,
		prospect.OwnerId,
		string(prospect.Status),
		millis(prospect.LastContactDate),
		attrs,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) GetProspect(id string) (*model.Prospect, error) {
	row := s.db.QueryRow(`
		SELECT id, email, phone, linkedin_url, owner_id, status, last_contact_date, attributes
		FROM prospects
		WHERE id = ?`,
		id,
	)
	prospect, err := s.scanProspect(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundError{Kind: "prospect", Id: id}
		}
		return nil, err
	}
	return prospect, nil
}

func (s *SqliteStorage) scanProspect(scan func(dest ...any) error) (*model.Prospect, error) {
	var p model.Prospect
	var status string
	var lastContact sql.NullInt64
	var attrs []byte
	err := scan(&p.Id, &p.Email, &p.Phone, &p.LinkedinUrl, &p.OwnerId, &status, &lastContact, &attrs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	p.Status = model.ProspectStatus(status)
	p.LastContactDate = fromMillis(lastContact)
	decoded, err := s.attrsEncDec.Decode(attrs)
	if err != nil {
		return nil, err
	}
	p.Attributes = *decoded
	return &p, nil
}

func (s *SqliteStorage) ListNotContactedSince(status model.ProspectStatus, before time.Time) ([]*model.Prospect, error) {
	rows, err := s.db.Query(`
		SELECT id, email, phone, linkedin_url, owner_id, status, last_contact_date, attributes
		FROM prospects
		WHERE status = ? AND (last_contact_date IS NULL OR last_contact_date <= ?)
		ORDER BY id`,
		string(status), before.UnixMilli(),
	)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var result []*model.Prospect
	for rows.Next() {
		prospect, err := s.scanProspect(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, prospect)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return result, nil
}

func (s *SqliteStorage) UpdateLastContact(id string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE prospects SET last_contact_date = ? WHERE id = ?`, at.UnixMilli(), id)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if affected == 0 {
		return model.NotFoundError{Kind: "prospect", Id: id}
	}
	return nil
}

func appendInteraction(db execer, interaction *model.Interaction) error {
	_, err := db.Exec(`
		INSERT INTO interactions (id, prospect_id, type, content, subject, scheduled_at, completed_at, successful, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		interaction.Id,
		interaction.ProspectId,
		string(interaction.Type),
		interaction.Content,
		interaction.Subject,
		interaction.ScheduledAt.UnixMilli(),
		millis(interaction.CompletedAt),
		boolToInt(interaction.Successful),
		interaction.Error,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *SqliteStorage) AppendInteraction(interaction *model.Interaction) error {
	return appendInteraction(s.db, interaction)
}

func (s *SqliteStorage) ListInteractionsByProspect(prospectId string) ([]*model.Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, prospect_id, type, content, subject, scheduled_at, completed_at, successful, error
		FROM interactions
		WHERE prospect_id = ?
		ORDER BY scheduled_at`,
		prospectId,
	)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var result []*model.Interaction
	for rows.Next() {
		var i model.Interaction
		var typ string
		var scheduledAt int64
		var completedAt sql.NullInt64
		var successful int
		if err := rows.Scan(&i.Id, &i.ProspectId, &typ, &i.Content, &i.Subject, &scheduledAt, &completedAt, &successful, &i.Error); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		i.Type = model.Channel(typ)
		i.ScheduledAt = time.UnixMilli(scheduledAt)
		i.CompletedAt = fromMillis(completedAt)
		i.Successful = successful != 0
		result = append(result, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return result, nil
}
