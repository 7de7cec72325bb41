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
	"errors"
	"fmt"
	"sort"

	"github.com/fraudlens/caseflow/internal/apierror"
	redlock "github.com/fraudlens/caseflow/internal/lock"
	"github.com/fraudlens/caseflow/model"
	"github.com/sirupsen/logrus"
)

// ListTimeline returns a case's timeline in creation order if the actor may view the case.
func (cf *CaseFlow) ListTimeline(ctx context.Context, caseID string, actor model.Actor) ([]model.TimelineEntry, error) {
	status, err := cf.GetCaseStatus(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}
	return status.Timeline, nil
}

// planRepair computes the repair for one case from its stored state. It keeps the earliest
// entry of every stage, synthesizes the submission entry of an empty ledger and realigns the
// step with the latest surviving stage.
func planRepair(c *model.Case, entries []model.TimelineEntry) (model.TimelineRepair, model.RepairReport) {
	repair := model.TimelineRepair{CaseID: c.CaseID, ExpectedVersion: c.Version}
	report := model.RepairReport{CaseID: c.CaseID, PreviousStep: c.CurrentStep, CurrentStep: c.CurrentStep}

	ordered := make([]model.TimelineEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	seen := make(map[string]bool, len(ordered))
	latest := model.Step(0)
	for _, entry := range ordered {
		if seen[entry.Stage] {
			repair.DeleteEntryIDs = append(repair.DeleteEntryIDs, entry.EntryID)
			continue
		}
		seen[entry.Stage] = true
		if step, ok := model.StepFromSlug(entry.Stage); ok && step > latest {
			latest = step
		}
	}
	report.DuplicatesRemoved = len(repair.DeleteEntryIDs)
	report.RemovedEntryIDs = repair.DeleteEntryIDs

	if len(seen) == 0 {
		initial := model.NewTimelineEntry(c.CaseID, model.StepSubmitted, "",
			model.Actor{ID: c.ReporterID, Role: model.RoleUser}, c.CreatedAt)
		initial.MetaData = map[string]interface{}{"synthesized": true}
		repair.Insert = &initial
		report.SynthesizedInitial = true
		latest = model.StepSubmitted
	}

	if latest.Valid() && latest != c.CurrentStep {
		step := latest
		repair.SetStep = &step
		report.CurrentStep = latest
		report.StepCorrected = true
	}

	return repair, report
}

// RepairTimeline collapses duplicate timeline entries and realigns the case step with its
// ledger. Running it on an already consistent case changes nothing.
func (cf *CaseFlow) RepairTimeline(ctx context.Context, caseID string, actor model.Actor) (*model.RepairReport, error) {
	ctx, span := tracer.Start(ctx, "Repairing case timeline")
	defer span.End()

	if actor.Role != model.RoleAdmin {
		return nil, unauthorized(ReasonWrongRole)
	}

	locker := redlock.NewCaseLocker(cf.redis, caseID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, cf.lockTTL, cf.repairWait); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Case '%s' is being updated by another request", caseID), err)
	}
	defer releaseCaseLock(ctx, locker)

	status, err := cf.datasource.GetCaseStatus(ctx, caseID)
	if err != nil {
		return nil, err
	}

	repair, report := planRepair(&status.Case, status.Timeline)
	if !report.Changed() {
		return &report, nil
	}

	if _, err := cf.datasource.ApplyTimelineRepair(ctx, &repair); err != nil {
		return nil, logAndRecordError(span, "apply timeline repair error", err)
	}
	cf.syncStatus(ctx, caseID)

	logrus.WithFields(logrus.Fields{
		"case_id":             caseID,
		"duplicates_removed":  report.DuplicatesRemoved,
		"synthesized_initial": report.SynthesizedInitial,
		"previous_step":       report.PreviousStep,
		"current_step":        report.CurrentStep,
		"actor_id":            actor.ID,
	}).Warn("case timeline repaired")

	cf.postCaseEvent(ctx, EventCaseRepaired, report)
	return &report, nil
}

// RepairAll walks every case in creation order and repairs each one, continuing past
// failures. It returns the reports of cases that changed.
func (cf *CaseFlow) RepairAll(ctx context.Context, actor model.Actor, batchSize int) ([]model.RepairReport, error) {
	if batchSize <= 0 {
		batchSize = maxListLimit
	}

	var changed []model.RepairReport
	var failures int
	for offset := 0; ; offset += batchSize {
		ids, err := cf.datasource.GetCaseIDsPaginated(ctx, batchSize, offset)
		if err != nil {
			return changed, err
		}
		for _, id := range ids {
			report, err := cf.RepairTimeline(ctx, id, actor)
			if err != nil {
				if ctx.Err() != nil {
					return changed, ctx.Err()
				}
				failures++
				logrus.WithField("case_id", id).WithError(err).Error("failed to repair case timeline")
				continue
			}
			if report.Changed() {
				changed = append(changed, *report)
			}
		}
		if len(ids) < batchSize {
			break
		}
	}

	if failures > 0 {
		return changed, fmt.Errorf("%d case(s) could not be repaired", failures)
	}
	return changed, nil
}
