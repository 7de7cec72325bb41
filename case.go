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

package caseflow

import (
	"context"
	"fmt"
	"time"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func unauthorized(reason string) error {
	return apierror.NewAPIError(apierror.ErrUnauthorized, fmt.Sprintf("Action not permitted: %s", reason), nil)
}

// SubmitCase files a new report at step 1. The case, its first timeline entry and the
// optional scammer link are written in one transaction.
func (cf *CaseFlow) SubmitCase(ctx context.Context, c *model.Case, scammer *model.Scammer, actor model.Actor) (*model.CaseStatus, error) {
	ctx, span := tracer.Start(ctx, "Submitting case")
	defer span.End()

	if decision := AuthorizeSubmit(actor); !decision.Allowed {
		return nil, unauthorized(decision.Reason)
	}
	if c == nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Case is required", nil)
	}

	now := cf.now().UTC()
	c.CaseID = model.GenerateCaseID(now)
	c.ReporterID = actor.ID
	c.CurrentStep = model.StepSubmitted
	c.AssignedPolice = ""
	c.CRPCDocumentID = ""
	c.Notifications = nil
	c.LastError = nil
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Evidence == nil {
		c.Evidence = []string{}
	}

	initial := model.NewTimelineEntry(c.CaseID, model.StepSubmitted, "", actor, now)

	created, err := cf.datasource.CreateCase(ctx, c, &initial, scammer)
	if err != nil {
		return nil, logAndRecordError(span, "create case error", err)
	}

	logrus.WithFields(logrus.Fields{
		"case_id":     created.CaseID,
		"case_type":   created.CaseType,
		"reporter_id": created.ReporterID,
	}).Info("case submitted")

	status := &model.CaseStatus{Case: *created, Timeline: []model.TimelineEntry{initial}}
	cf.postCaseEvent(ctx, EventCaseSubmitted, status)
	return status, nil
}

// viewableCase loads a case and checks the actor may read it. Cases the actor may not see
// are reported as unauthorized, missing ones as not found.
func (cf *CaseFlow) viewableCase(ctx context.Context, caseID string, actor model.Actor) (*model.Case, error) {
	c, err := cf.datasource.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, c) {
		return nil, unauthorized(fmt.Sprintf("case '%s' is not visible to %s", caseID, actor.Role))
	}
	return c, nil
}

// loadStatus reads the case projection, trying the cache before the database.
func (cf *CaseFlow) loadStatus(ctx context.Context, caseID string) (*model.CaseStatus, error) {
	if cf.cache != nil {
		var cached model.CaseStatus
		found, err := cf.cache.Get(ctx, statusKey(caseID), &cached)
		if err != nil {
			logrus.WithField("case_id", caseID).WithError(err).Warn("failed to read cached case status")
		}
		if found {
			return &cached, nil
		}
	}

	status, err := cf.datasource.GetCaseStatus(ctx, caseID)
	if err != nil {
		return nil, err
	}

	// A writer may have committed and refreshed the key since the snapshot was taken.
	if cf.cache != nil {
		if err := cf.cache.SetIfAbsent(ctx, statusKey(caseID), status, cf.statusTTL); err != nil {
			logrus.WithField("case_id", caseID).WithError(err).Warn("failed to cache case status")
		}
	}
	return status, nil
}

// GetCaseStatus returns the case and its ordered timeline if the actor may view it.
func (cf *CaseFlow) GetCaseStatus(ctx context.Context, caseID string, actor model.Actor) (*model.CaseStatus, error) {
	ctx, span := tracer.Start(ctx, "Fetching case status")
	defer span.End()

	status, err := cf.loadStatus(ctx, caseID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !CanView(actor, &status.Case) {
		return nil, unauthorized(fmt.Sprintf("case '%s' is not visible to %s", caseID, actor.Role))
	}
	return status, nil
}

// ListCases returns every case, newest first. Only admins may list all cases.
func (cf *CaseFlow) ListCases(ctx context.Context, actor model.Actor, limit, offset int) ([]model.Case, error) {
	if actor.Role != model.RoleAdmin {
		return nil, unauthorized(ReasonWrongRole)
	}
	limit, offset = normalizePage(limit, offset)
	return cf.datasource.GetAllCases(ctx, limit, offset)
}

// MyCases returns the cases the reporting user filed.
func (cf *CaseFlow) MyCases(ctx context.Context, actor model.Actor, limit, offset int) ([]model.Case, error) {
	if actor.Role != model.RoleUser || actor.ID == "" {
		return nil, unauthorized(ReasonWrongRole)
	}
	limit, offset = normalizePage(limit, offset)
	return cf.datasource.GetCasesByReporter(ctx, actor.ID, limit, offset)
}

// AssignedCases returns the cases assigned to the calling officer.
func (cf *CaseFlow) AssignedCases(ctx context.Context, actor model.Actor, limit, offset int) ([]model.Case, error) {
	if actor.Role != model.RolePolice || actor.ID == "" {
		return nil, unauthorized(ReasonWrongRole)
	}
	limit, offset = normalizePage(limit, offset)
	return cf.datasource.GetCasesByOfficer(ctx, actor.ID, limit, offset)
}

// GetScammer returns a scammer record. Only admins and police may browse the registry.
func (cf *CaseFlow) GetScammer(ctx context.Context, scammerID string, actor model.Actor) (*model.Scammer, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RolePolice {
		return nil, unauthorized(ReasonWrongRole)
	}
	return cf.datasource.GetScammerByID(ctx, scammerID)
}

func stageFailure(step model.Step, err error, at time.Time) model.StageError {
	return model.StageError{Step: step, Message: err.Error(), At: at}
}
