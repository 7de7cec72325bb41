/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/lib/pq"
)

const timelineStageConstraint = "case_timeline_case_stage_key"

// insertTimelineEntry is the only append path of the ledger. A second entry for the same stage
// is rejected by the (case_id, stage) constraint and surfaces as DuplicateTimelineEntry.
func insertTimelineEntry(ctx context.Context, db execer, entry *model.TimelineEntry) error {
	var metaData interface{}
	if len(entry.MetaData) > 0 {
		metaDataJSON, err := json.Marshal(entry.MetaData)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
		}
		metaData = metaDataJSON
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO fraudlens.case_timeline (entry_id, case_id, stage, label, description, completed_at, actor_id, actor_role, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.EntryID, entry.CaseID, entry.Stage, entry.Label, entry.Description, entry.CompletedAt, entry.ActorID, entry.ActorRole, entry.CreatedAt, metaData)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch {
			case pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == timelineStageConstraint:
				return apierror.NewAPIError(apierror.ErrDuplicateTimelineEntry, fmt.Sprintf("Case '%s' already has a '%s' timeline entry", entry.CaseID, entry.Stage), err)
			case pqErr.Code.Name() == "unique_violation":
				return apierror.NewAPIError(apierror.ErrConflict, "Timeline entry with this ID already exists", err)
			case pqErr.Code.Name() == "foreign_key_violation":
				return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Case with ID '%s' not found", entry.CaseID), err)
			default:
				return apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to append timeline entry", err)
	}

	return nil
}

// queryTimeline returns the case's entries in the order they were written.
func queryTimeline(ctx context.Context, q querier, caseID string) ([]model.TimelineEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, case_id, stage, label, description, completed_at, actor_id, actor_role, created_at, meta_data
		FROM fraudlens.case_timeline
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC
	`, caseID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve timeline", err)
	}
	defer rows.Close()

	entries := []model.TimelineEntry{}
	for rows.Next() {
		entry := model.TimelineEntry{}
		var completedAt sql.NullTime
		var metaDataJSON []byte
		err = rows.Scan(&entry.ID, &entry.EntryID, &entry.CaseID, &entry.Stage, &entry.Label, &entry.Description,
			&completedAt, &entry.ActorID, &entry.ActorRole, &entry.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan timeline entry", err)
		}
		if completedAt.Valid {
			at := completedAt.Time
			entry.CompletedAt = &at
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over timeline", err)
	}

	return entries, nil
}

// ApplyTimelineRepair applies a repair plan. The case row is claimed first with the plan's expected version,
// so a plan computed from a stale read is rejected before any entry is touched.
func (d Datasource) ApplyTimelineRepair(ctx context.Context, repair *model.TimelineRepair) (*model.Case, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var step interface{}
	if repair.SetStep != nil {
		step = int(*repair.SetStep)
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE fraudlens.cases
		SET current_step = COALESCE($2::int, current_step), version = version + 1, updated_at = $3
		WHERE case_id = $1 AND version = $4
		RETURNING `+caseColumns,
		repair.CaseID, step, nowUTC(), repair.ExpectedVersion)

	c, err := scanCase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Optimistic locking failure: case '%s' was modified during repair", repair.CaseID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update case", err)
	}

	if len(repair.DeleteEntryIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM fraudlens.case_timeline WHERE case_id = $1 AND entry_id = ANY($2)
		`, repair.CaseID, pq.Array(repair.DeleteEntryIDs))
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to remove duplicate timeline entries", err)
		}
	}

	if repair.Insert != nil {
		if err := insertTimelineEntry(ctx, tx, repair.Insert); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return c, nil
}
