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
	"time"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/lib/pq"
)

// caseColumns is shared by every query that materializes a case so scanCase stays in sync.
const caseColumns = `id, case_id, case_type, description, amount_lost, incident_date, location, contact, evidence,
	form_data, reporter_id, COALESCE(scammer_id, ''), COALESCE(assigned_police, ''), COALESCE(crpc_document_id, ''),
	notifications, last_error, current_step, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func scanCase(row rowScanner) (*model.Case, error) {
	c := model.Case{}
	var locationJSON, contactJSON, evidenceJSON, formDataJSON, notificationsJSON, lastErrorJSON []byte

	err := row.Scan(
		&c.ID, &c.CaseID, &c.CaseType, &c.Description, &c.AmountLost, &c.IncidentDate,
		&locationJSON, &contactJSON, &evidenceJSON, &formDataJSON,
		&c.ReporterID, &c.ScammerID, &c.AssignedPolice, &c.CRPCDocumentID,
		&notificationsJSON, &lastErrorJSON, &c.CurrentStep, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		raw  []byte
		dest interface{}
	}{
		{locationJSON, &c.Location},
		{contactJSON, &c.Contact},
		{evidenceJSON, &c.Evidence},
		{formDataJSON, &c.FormData},
		{notificationsJSON, &c.Notifications},
		{lastErrorJSON, &c.LastError},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal case data", err)
		}
	}
	if c.Evidence == nil {
		c.Evidence = []string{}
	}

	return &c, nil
}

// CreateCase stores a new case together with its initial timeline entry. When the report names a scammer
// with at least one identifier, the scammer is linked or registered in the same transaction.
func (d Datasource) CreateCase(ctx context.Context, c *model.Case, initial *model.TimelineEntry, scammer *model.Scammer) (*model.Case, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if scammer != nil {
		scammer.Normalize()
	}
	if scammer != nil && scammer.HasIdentifier() {
		if err := linkScammer(ctx, tx, scammer, c.CaseID); err != nil {
			return nil, err
		}
		c.ScammerID = scammer.ScammerID
	}

	if c.Evidence == nil {
		c.Evidence = []string{}
	}
	locationJSON, err := json.Marshal(c.Location)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal location", err)
	}
	contactJSON, err := json.Marshal(c.Contact)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal contact", err)
	}
	evidenceJSON, err := json.Marshal(c.Evidence)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal evidence", err)
	}
	formDataJSON, err := json.Marshal(c.FormData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal form data", err)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO fraudlens.cases (case_id, case_type, description, amount_lost, incident_date, location, contact, evidence,
			form_data, reporter_id, scammer_id, current_step, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $13)
		RETURNING id, version
	`, c.CaseID, c.CaseType, c.Description, c.AmountLost.String(), c.IncidentDate, locationJSON, contactJSON, evidenceJSON,
		formDataJSON, c.ReporterID, c.ScammerID, c.CurrentStep, c.CreatedAt)

	if err := row.Scan(&c.ID, &c.Version); err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Case with this ID already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create case", err)
	}
	c.UpdatedAt = c.CreatedAt

	if err := insertTimelineEntry(ctx, tx, initial); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return c, nil
}

func (d Datasource) GetCaseByID(ctx context.Context, caseID string) (*model.Case, error) {
	return getCase(ctx, d.Conn, caseID)
}

func getCase(ctx context.Context, q querier, caseID string) (*model.Case, error) {
	row := q.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM fraudlens.cases WHERE case_id = $1`, caseID)

	c, err := scanCase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Case with ID '%s' not found", caseID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve case", err)
	}

	return c, nil
}

// GetCaseStatus reads a case and its timeline from one REPEATABLE READ snapshot, so a transition
// committed concurrently is seen either in full or not at all.
func (d Datasource) GetCaseStatus(ctx context.Context, caseID string) (*model.CaseStatus, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	c, err := getCase(ctx, tx, caseID)
	if err != nil {
		return nil, err
	}
	entries, err := queryTimeline(ctx, tx, caseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return &model.CaseStatus{Case: *c, Timeline: entries}, nil
}

func (d Datasource) GetAllCases(ctx context.Context, limit, offset int) ([]model.Case, error) {
	return d.queryCases(ctx, `SELECT `+caseColumns+` FROM fraudlens.cases
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (d Datasource) GetCasesByReporter(ctx context.Context, reporterID string, limit, offset int) ([]model.Case, error) {
	return d.queryCases(ctx, `SELECT `+caseColumns+` FROM fraudlens.cases WHERE reporter_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, reporterID, limit, offset)
}

func (d Datasource) GetCasesByOfficer(ctx context.Context, officerID string, limit, offset int) ([]model.Case, error) {
	return d.queryCases(ctx, `SELECT `+caseColumns+` FROM fraudlens.cases WHERE assigned_police = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, officerID, limit, offset)
}

func (d Datasource) queryCases(ctx context.Context, query string, args ...interface{}) ([]model.Case, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve cases", err)
	}
	defer rows.Close()

	cases := []model.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan case data", err)
		}
		cases = append(cases, *c)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over cases", err)
	}

	return cases, nil
}

// GetCaseIDsPaginated returns case IDs oldest first, used by the bulk repair command.
func (d Datasource) GetCaseIDsPaginated(ctx context.Context, limit, offset int) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT case_id FROM fraudlens.cases
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve case IDs", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan case ID", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over case IDs", err)
	}

	return ids, nil
}

// ApplyStageTransition commits a forward move in a single transaction. The update only matches while the case
// is still at FromStep with ExpectedVersion, so a concurrent writer turns this call into a conflict.
func (d Datasource) ApplyStageTransition(ctx context.Context, t *model.StageTransition) (*model.Case, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	documentID := ""
	if t.Document != nil {
		if err := insertCRPCDocument(ctx, tx, t.Document); err != nil {
			return nil, err
		}
		documentID = t.Document.DocumentID
	}

	var notifications interface{}
	if len(t.Notifications) > 0 {
		notificationsJSON, err := json.Marshal(t.Notifications)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal notifications", err)
		}
		notifications = notificationsJSON
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE fraudlens.cases
		SET current_step = $2,
			version = version + 1,
			last_error = NULL,
			assigned_police = COALESCE(NULLIF($3, ''), assigned_police),
			crpc_document_id = COALESCE(NULLIF($4, ''), crpc_document_id),
			notifications = COALESCE($5::jsonb, notifications),
			updated_at = $6
		WHERE case_id = $1 AND current_step = $7 AND version = $8
		RETURNING `+caseColumns,
		t.CaseID, t.ToStep, t.AssignedPolice, documentID, notifications, t.Entry.CreatedAt, t.FromStep, t.ExpectedVersion)

	c, err := scanCase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Optimistic locking failure: case '%s' was modified by another request", t.CaseID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update case", err)
	}

	if len(t.Notifications) > 0 && c.CRPCDocumentID != "" {
		if err := updateCRPCRecipients(ctx, tx, c.CRPCDocumentID, t.Notifications); err != nil {
			return nil, err
		}
	}

	if err := insertTimelineEntry(ctx, tx, &t.Entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return c, nil
}

// RecordStageFailure stores the last side-effect failure on the case. The step and version are untouched.
func (d Datasource) RecordStageFailure(ctx context.Context, caseID string, failure model.StageError) error {
	failureJSON, err := json.Marshal(failure)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal stage error", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE fraudlens.cases SET last_error = $2, updated_at = $3 WHERE case_id = $1
	`, caseID, failureJSON, failure.At)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record stage failure", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Case with ID '%s' not found", caseID), nil)
	}

	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
