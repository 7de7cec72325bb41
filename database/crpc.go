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

const crpcColumns = `id, document_id, document_number, case_id, generated_by, recipients, COALESCE(artifact_ref, ''), generated_at`

func scanCRPCDocument(row rowScanner) (*model.CRPCDocument, error) {
	doc := model.CRPCDocument{}
	var recipientsJSON []byte
	err := row.Scan(&doc.ID, &doc.DocumentID, &doc.DocumentNumber, &doc.CaseID, &doc.GeneratedBy, &recipientsJSON, &doc.ArtifactRef, &doc.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if len(recipientsJSON) > 0 {
		if err := json.Unmarshal(recipientsJSON, &doc.Recipients); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal recipients", err)
		}
	}
	return &doc, nil
}

func insertCRPCDocument(ctx context.Context, tx *sql.Tx, doc *model.CRPCDocument) error {
	recipientsJSON, err := json.Marshal(doc.Recipients)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal recipients", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fraudlens.crpc_documents (document_id, document_number, case_id, generated_by, recipients, artifact_ref, generated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, doc.DocumentID, doc.DocumentNumber, doc.CaseID, doc.GeneratedBy, recipientsJSON, doc.ArtifactRef, doc.GeneratedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Document with this ID or number already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record document", err)
	}

	return nil
}

// updateCRPCRecipients copies the delivery outcome of each category onto the notice's recipient list.
func updateCRPCRecipients(ctx context.Context, tx *sql.Tx, documentID string, deliveries map[string]model.Delivery) error {
	recipients := make(map[string]model.Recipient, len(deliveries))
	for category, delivery := range deliveries {
		recipients[category] = model.Recipient{Address: delivery.Address, Status: delivery.Status}
	}

	recipientsJSON, err := json.Marshal(recipients)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal recipients", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE fraudlens.crpc_documents SET recipients = $2 WHERE document_id = $1`, documentID, recipientsJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update document recipients", err)
	}

	return nil
}

func (d Datasource) GetCRPCDocument(ctx context.Context, documentID string) (*model.CRPCDocument, error) {
	row := d.Conn.QueryRowContext(ctx, `SELECT `+crpcColumns+` FROM fraudlens.crpc_documents WHERE document_id = $1`, documentID)

	doc, err := scanCRPCDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Document with ID '%s' not found", documentID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve document", err)
	}

	return doc, nil
}

func (d Datasource) GetCRPCDocumentsByCase(ctx context.Context, caseID string) ([]model.CRPCDocument, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+crpcColumns+` FROM fraudlens.crpc_documents WHERE case_id = $1 ORDER BY generated_at DESC, id DESC
	`, caseID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve documents", err)
	}
	defer rows.Close()

	docs := []model.CRPCDocument{}
	for rows.Next() {
		doc, err := scanCRPCDocument(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan document", err)
		}
		docs = append(docs, *doc)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over documents", err)
	}

	return docs, nil
}
