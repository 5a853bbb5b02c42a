package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/model"
)

func (d Datasource) CreateEntry(ctx context.Context, entry model.Entry) (model.Entry, error) {
	checklistJSON, err := json.Marshal(entry.Checklist)
	if err != nil {
		return model.Entry{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal checklist", err)
	}
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return model.Entry{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	entry.EntryID = model.GenerateUUIDWithSuffix("ent")
	entry.Status = model.StatusActive
	entry.CreatedAt = time.Now()
	if entry.StageEnteredAt.IsZero() {
		entry.StageEnteredAt = entry.CreatedAt
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO entries (entry_id, lead_id, pipeline_id, stage_id, status, stage_entered_at,
			days_in_stage, days_overdue, health, stage_note, checklist, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.EntryID, entry.LeadID, entry.PipelineID, entry.StageID, entry.Status, entry.StageEnteredAt,
		entry.DaysInStage, entry.DaysOverdue, nullableHealth(entry.CurrentHealth), nullable(entry.StageNote),
		checklistJSON, metaDataJSON)
	if err != nil {
		return model.Entry{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create entry", err)
	}

	return entry, nil
}

func (d Datasource) GetEntryByID(ctx context.Context, id string) (*model.Entry, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT entry_id, lead_id, pipeline_id, stage_id, status, stage_entered_at,
			linked_appointment_id, linked_appointment_at, days_in_stage, days_overdue, health,
			stage_note, checklist, created_at, archived_at, meta_data
		FROM entries
		WHERE entry_id = $1
	`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Entry not found", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierror.NewAPIError(apierror.ErrTimeout, "Entry read timed out", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve entry", err)
	}
	return entry, nil
}

// UpdateEntryStage is the movement engine's single-row atomic write. It only
// touches the stage pointer and its derived fields; checklist, note and
// metadata are left to their own updates (whole-document merge semantics).
// Last write wins on the stage pointer.
func (d Datasource) UpdateEntryStage(ctx context.Context, entryID, stageID string, enteredAt time.Time, health model.Health) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entries
		SET stage_id = $2, stage_entered_at = $3, days_in_stage = 0, days_overdue = 0, health = $4
		WHERE entry_id = $1 AND status = 'ACTIVE'
	`, entryID, stageID, enteredAt, nullableHealth(health))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apierror.NewAPIError(apierror.ErrTimeout, "Entry stage update timed out", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update entry stage", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update entry stage", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Active entry not found", nil)
	}
	return nil
}

func (d Datasource) UpdateEntryChecklist(ctx context.Context, entryID string, checklist map[string]bool) error {
	checklistJSON, err := json.Marshal(checklist)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal checklist", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entries SET checklist = $2 WHERE entry_id = $1 AND status = 'ACTIVE'
	`, entryID, checklistJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update entry checklist", err)
	}
	return requireRow(result)
}

func (d Datasource) UpdateEntryNote(ctx context.Context, entryID, note string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entries SET stage_note = $2 WHERE entry_id = $1 AND status = 'ACTIVE'
	`, entryID, note)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update entry note", err)
	}
	return requireRow(result)
}

// UpdateEntryHealth refreshes the cached projections. The anchor timestamp
// stays untouched; it is the source of truth these fields derive from.
func (d Datasource) UpdateEntryHealth(ctx context.Context, entryID string, daysInStage, daysOverdue int, health model.Health) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entries SET days_in_stage = $2, days_overdue = $3, health = $4 WHERE entry_id = $1 AND status = 'ACTIVE'
	`, entryID, daysInStage, daysOverdue, nullableHealth(health))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update entry health", err)
	}
	return requireRow(result)
}

func (d Datasource) LinkAppointment(ctx context.Context, entryID, appointmentID string, scheduledFor time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entries SET linked_appointment_id = $2, linked_appointment_at = $3 WHERE entry_id = $1 AND status = 'ACTIVE'
	`, entryID, appointmentID, scheduledFor)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to link appointment", err)
	}
	return requireRow(result)
}

// ArchiveEntry is terminal for the row. A transfer creates a fresh entry in
// the destination pipeline.
func (d Datasource) ArchiveEntry(ctx context.Context, entryID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entries SET status = 'ARCHIVED', archived_at = NOW() WHERE entry_id = $1 AND status = 'ACTIVE'
	`, entryID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to archive entry", err)
	}
	return requireRow(result)
}

func (d Datasource) CountEntriesInStage(ctx context.Context, stageID string) (int, error) {
	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entries WHERE stage_id = $1 AND status = 'ACTIVE'
	`, stageID).Scan(&count)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count entries in stage", err)
	}
	return count, nil
}

func (d Datasource) GetEntriesForPipeline(ctx context.Context, pipelineID string, limit, offset int) ([]*model.Entry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT entry_id, lead_id, pipeline_id, stage_id, status, stage_entered_at,
			linked_appointment_id, linked_appointment_at, days_in_stage, days_overdue, health,
			stage_note, checklist, created_at, archived_at, meta_data
		FROM entries
		WHERE pipeline_id = $1 AND status = 'ACTIVE'
		ORDER BY stage_entered_at ASC
		LIMIT $2 OFFSET $3
	`, pipelineID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve entries", err)
	}
	defer rows.Close()

	entries := []*model.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan entry data", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over entries", err)
	}
	return entries, nil
}

func scanEntry(row rowScanner) (*model.Entry, error) {
	entry := model.Entry{}
	var apptID, health, note sql.NullString
	var apptAt, archivedAt sql.NullTime
	var checklistJSON, metaDataJSON []byte

	err := row.Scan(&entry.EntryID, &entry.LeadID, &entry.PipelineID, &entry.StageID, &entry.Status,
		&entry.StageEnteredAt, &apptID, &apptAt, &entry.DaysInStage, &entry.DaysOverdue, &health,
		&note, &checklistJSON, &entry.CreatedAt, &archivedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	entry.LinkedAppointmentID = apptID.String
	if apptAt.Valid {
		entry.LinkedAppointmentAt = &apptAt.Time
	}
	entry.CurrentHealth = model.Health(health.String)
	entry.StageNote = note.String
	if archivedAt.Valid {
		entry.ArchivedAt = &archivedAt.Time
	}
	if checklistJSON != nil {
		if err := json.Unmarshal(checklistJSON, &entry.Checklist); err != nil {
			return nil, err
		}
	}
	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Active entry not found", nil)
	}
	return nil
}

func nullableHealth(h model.Health) sql.NullString {
	return sql.NullString{String: string(h), Valid: h != ""}
}
