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
	"fmt"
	"sort"
	"time"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/lib/pq"
)

const scammerColumns = `id, scammer_id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), COALESCE(upi_id, ''),
	COALESCE(bank_account, ''), case_count, case_ids, created_at, updated_at`

func scanScammer(row rowScanner) (*model.Scammer, error) {
	s := model.Scammer{}
	err := row.Scan(&s.ID, &s.ScammerID, &s.Name, &s.Phone, &s.Email, &s.UPIID, &s.BankAccount,
		&s.CaseCount, pq.Array(&s.CaseIDs), &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// identifierLockKeys returns one advisory lock key per identifier s carries, sorted so every
// transaction acquires them in the same order.
func identifierLockKeys(s *model.Scammer) []string {
	var keys []string
	for field, value := range map[string]string{
		"phone":        s.Phone,
		"email":        s.Email,
		"upi_id":       s.UPIID,
		"bank_account": s.BankAccount,
	} {
		if value != "" {
			keys = append(keys, "scammer:"+field+":"+value)
		}
	}
	sort.Strings(keys)
	return keys
}

// linkScammer attaches caseID to the registry entry sharing any identifier with s, or registers s.
// s must already be normalized. A transaction-scoped advisory lock is taken on every identifier
// before the lookup, so two reports naming the same new identifier cannot both insert.
// On return s holds the stored record.
func linkScammer(ctx context.Context, tx *sql.Tx, s *model.Scammer, caseID string) error {
	now := time.Now().UTC()

	for _, key := range identifierLockKeys(s) {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock scammer identifier", err)
		}
	}

	row := tx.QueryRowContext(ctx, `
		SELECT scammer_id FROM fraudlens.scammers
		WHERE phone = NULLIF($1, '') OR email = NULLIF($2, '') OR upi_id = NULLIF($3, '') OR bank_account = NULLIF($4, '')
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE
	`, s.Phone, s.Email, s.UPIID, s.BankAccount)

	var existingID string
	err := row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		s.ScammerID = model.GenerateUUIDWithSuffix("scm")
		row = tx.QueryRowContext(ctx, `
			INSERT INTO fraudlens.scammers (scammer_id, name, phone, email, upi_id, bank_account, case_count, case_ids, created_at, updated_at)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), 1, $7, $8, $8)
			RETURNING `+scammerColumns,
			s.ScammerID, s.Name, s.Phone, s.Email, s.UPIID, s.BankAccount, pq.Array([]string{caseID}), now)
	case err != nil:
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to look up scammer", err)
	default:
		row = tx.QueryRowContext(ctx, `
			UPDATE fraudlens.scammers
			SET case_count = case_count + 1,
				case_ids = array_append(case_ids, $2),
				name = COALESCE(name, NULLIF($3, '')),
				phone = COALESCE(phone, NULLIF($4, '')),
				email = COALESCE(email, NULLIF($5, '')),
				upi_id = COALESCE(upi_id, NULLIF($6, '')),
				bank_account = COALESCE(bank_account, NULLIF($7, '')),
				updated_at = $8
			WHERE scammer_id = $1
			RETURNING `+scammerColumns,
			existingID, caseID, s.Name, s.Phone, s.Email, s.UPIID, s.BankAccount, now)
	}

	stored, err := scanScammer(row)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to link scammer", err)
	}
	*s = *stored

	return nil
}

func (d Datasource) GetScammerByID(ctx context.Context, scammerID string) (*model.Scammer, error) {
	row := d.Conn.QueryRowContext(ctx, `SELECT `+scammerColumns+` FROM fraudlens.scammers WHERE scammer_id = $1`, scammerID)

	s, err := scanScammer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Scammer with ID '%s' not found", scammerID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve scammer", err)
	}

	return s, nil
}
