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
	"strings"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AdvanceParams carries the stage-specific input of a transition.
type AdvanceParams struct {
	OfficerID string
	Remarks   string
}

// ForceAdvanceParams carries the audit input of a manual override.
type ForceAdvanceParams struct {
	Justification string
	OfficerID     string
}

// stageEffect is what a stage's side effect produced before the transition commits.
type stageEffect struct {
	document      *model.CRPCDocument
	notifications map[string]model.Delivery
}

// Advance moves a case exactly one step forward to target.
//
// Every check runs before any side effect. The redis lock is held from the first read
// until the commit, and the versioned update rejects anything that slipped past it.
func (cf *CaseFlow) Advance(ctx context.Context, caseID string, target model.Step, actor model.Actor, params AdvanceParams) (*model.CaseStatus, error) {
	ctx, span := tracer.Start(ctx, "Advancing case")
	defer span.End()

	if !target.Valid() || target == model.FirstStep {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition, fmt.Sprintf("Step %d is not a step a case can advance to", target), nil)
	}

	locker, err := cf.acquireCaseLock(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer releaseCaseLock(ctx, locker)

	c, err := cf.datasource.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if target != c.CurrentStep+1 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Case '%s' is at %s and cannot move to %s", caseID, c.CurrentStep, target), nil)
	}

	if decision := Authorize(actor, c, target); !decision.Allowed {
		return nil, unauthorized(decision.Reason)
	}

	officerID := strings.TrimSpace(params.OfficerID)
	if target == model.StepAssignedToPolice && officerID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "An officer must be named to assign a case to police", nil)
	}

	effect, err := cf.runStageEffect(ctx, c, target, actor)
	if err != nil {
		failure := stageFailure(target, err, cf.now().UTC())
		failure.Notifications = effect.notifications
		if recErr := cf.datasource.RecordStageFailure(ctx, caseID, failure); recErr != nil {
			logrus.WithField("case_id", caseID).WithError(recErr).Error("failed to record stage failure")
		}
		cf.syncStatus(ctx, caseID)
		cf.postCaseEvent(ctx, EventCaseStageFailed, map[string]interface{}{
			"case_id": caseID,
			"step":    target,
			"stage":   target.Slug(),
			"error":   failure.Message,
		})
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrSideEffectFailure,
			fmt.Sprintf("Could not complete %s for case '%s'", target.Label(), caseID),
			pkgerrors.Wrapf(err, "%s side effect", target))
	}

	// The side effect may have taken most of the lock's lifetime.
	if err := locker.ExtendLock(ctx, cf.lockTTL); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Lost the lock on case '%s'", caseID), err)
	}

	entry := model.NewTimelineEntry(caseID, target, strings.TrimSpace(params.Remarks), actor, cf.now().UTC())
	transition := &model.StageTransition{
		CaseID:          caseID,
		FromStep:        c.CurrentStep,
		ToStep:          target,
		ExpectedVersion: c.Version,
		Entry:           entry,
		Document:        effect.document,
		Notifications:   effect.notifications,
	}
	if target == model.StepAssignedToPolice {
		transition.AssignedPolice = officerID
		entry.MetaData = map[string]interface{}{"officer_id": officerID}
		transition.Entry = entry
	}

	if _, err := cf.datasource.ApplyStageTransition(ctx, transition); err != nil {
		return nil, logAndRecordError(span, "apply stage transition error", err)
	}

	logrus.WithFields(logrus.Fields{
		"case_id":    caseID,
		"from_step":  c.CurrentStep,
		"to_step":    target,
		"actor_id":   actor.ID,
		"actor_role": actor.Role,
	}).Info("case advanced")

	return cf.afterTransition(ctx, caseID, EventCaseAdvanced)
}

// runStageEffect invokes the collaborator a stage depends on.
func (cf *CaseFlow) runStageEffect(ctx context.Context, c *model.Case, target model.Step, actor model.Actor) (stageEffect, error) {
	switch target {
	case model.StepCRPCGenerated:
		if cf.generator == nil {
			return stageEffect{}, fmt.Errorf("no document generator configured")
		}
		doc, err := cf.generator.Generate(ctx, c, actor)
		if err != nil {
			return stageEffect{}, err
		}
		if doc == nil || doc.DocumentID == "" {
			return stageEffect{}, fmt.Errorf("document generator returned no document id")
		}
		doc.CaseID = c.CaseID
		return stageEffect{document: doc}, nil
	case model.StepEmailsSent:
		if cf.notifier == nil {
			return stageEffect{}, ErrRelayNotConfigured
		}
		var doc *model.CRPCDocument
		if c.CRPCDocumentID != "" {
			found, err := cf.datasource.GetCRPCDocument(ctx, c.CRPCDocumentID)
			if err != nil {
				return stageEffect{}, err
			}
			doc = found
		}
		// Deliveries are returned on failure too, so the attempt per category is kept.
		deliveries, err := cf.notifier.Notify(ctx, c, doc)
		return stageEffect{notifications: deliveries}, err
	}
	return stageEffect{}, nil
}

// afterTransition reads back the committed projection, caches it and announces it.
func (cf *CaseFlow) afterTransition(ctx context.Context, caseID string, event string) (*model.CaseStatus, error) {
	status, err := cf.refreshStatus(ctx, caseID)
	if err != nil {
		return nil, err
	}
	cf.postCaseEvent(ctx, event, status)
	return status, nil
}

// ForceAdvance is the audited manual override: an admin moves a case forward past any
// number of steps without running their side effects.
func (cf *CaseFlow) ForceAdvance(ctx context.Context, caseID string, target model.Step, actor model.Actor, params ForceAdvanceParams) (*model.CaseStatus, error) {
	ctx, span := tracer.Start(ctx, "Force advancing case")
	defer span.End()

	if actor.Role != model.RoleAdmin {
		return nil, unauthorized(ReasonWrongRole)
	}
	justification := strings.TrimSpace(params.Justification)
	if justification == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "A justification is required to override the case flow", nil)
	}
	if !target.Valid() || target == model.FirstStep {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition, fmt.Sprintf("Step %d is not a step a case can advance to", target), nil)
	}

	locker, err := cf.acquireCaseLock(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer releaseCaseLock(ctx, locker)

	c, err := cf.datasource.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if target <= c.CurrentStep {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Case '%s' is already at %s", caseID, c.CurrentStep), nil)
	}

	// Skipping past the assignment step still leaves the case with an officer.
	officerID := strings.TrimSpace(params.OfficerID)
	if target >= model.StepAssignedToPolice && c.AssignedPolice == "" && officerID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("Case '%s' has no assigned officer; one must be named to move it to %s", caseID, target), nil)
	}

	skipped := make([]string, 0, int(target-c.CurrentStep)-1)
	for s := c.CurrentStep + 1; s < target; s++ {
		skipped = append(skipped, s.Slug())
	}

	entry := model.NewTimelineEntry(caseID, target, "", actor, cf.now().UTC())
	entry.MetaData = map[string]interface{}{
		"forced":        true,
		"justification": justification,
		"from_step":     int(c.CurrentStep),
		"skipped_steps": skipped,
	}

	transition := &model.StageTransition{
		CaseID:          caseID,
		FromStep:        c.CurrentStep,
		ToStep:          target,
		ExpectedVersion: c.Version,
		Entry:           entry,
	}
	if officerID != "" {
		transition.AssignedPolice = officerID
		entry.MetaData["officer_id"] = officerID
	}

	if _, err := cf.datasource.ApplyStageTransition(ctx, transition); err != nil {
		return nil, logAndRecordError(span, "apply forced transition error", err)
	}

	logrus.WithFields(logrus.Fields{
		"case_id":       caseID,
		"from_step":     c.CurrentStep,
		"to_step":       target,
		"actor_id":      actor.ID,
		"justification": justification,
		"skipped_steps": skipped,
	}).Warn("case force advanced")

	return cf.afterTransition(ctx, caseID, EventCaseOverridden)
}
