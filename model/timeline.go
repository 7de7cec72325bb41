package model

import (
	"time"

	"github.com/wacul/ptr"
)

type TimelineEntry struct {
	ID          int64                  `json:"-"`
	EntryID     string                 `json:"entry_id"`
	CaseID      string                 `json:"case_id"`
	Stage       string                 `json:"stage"`
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	CompletedAt *time.Time             `json:"completed_at"`
	ActorID     string                 `json:"actor_id"`
	ActorRole   Role                   `json:"actor_role"`
	CreatedAt   time.Time              `json:"created_at"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// NewTimelineEntry builds the completed entry for a case entering step.
func NewTimelineEntry(caseID string, step Step, description string, actor Actor, at time.Time) TimelineEntry {
	stage := step.Stage()
	if description == "" {
		description = stage.Description
	}
	return TimelineEntry{
		EntryID:     GenerateUUIDWithSuffix("tle"),
		CaseID:      caseID,
		Stage:       stage.Slug,
		Label:       stage.Label,
		Description: description,
		CompletedAt: ptr.Time(at),
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		CreatedAt:   at,
	}
}

// RepairReport describes what a timeline repair changed.
type RepairReport struct {
	CaseID             string   `json:"case_id"`
	DuplicatesRemoved  int      `json:"duplicates_removed"`
	RemovedEntryIDs    []string `json:"removed_entry_ids,omitempty"`
	SynthesizedInitial bool     `json:"synthesized_initial"`
	PreviousStep       Step     `json:"previous_step"`
	CurrentStep        Step     `json:"current_step"`
	StepCorrected      bool     `json:"step_corrected"`
}

// Changed reports whether the repair modified anything.
func (r RepairReport) Changed() bool {
	return r.DuplicatesRemoved > 0 || r.SynthesizedInitial || r.StepCorrected
}

// TimelineRepair is a repair plan applied atomically against the case version it was computed from.
type TimelineRepair struct {
	CaseID          string
	ExpectedVersion int64
	DeleteEntryIDs  []string
	Insert          *TimelineEntry
	SetStep         *Step
}

// StageTransition moves a case from FromStep to ToStep together with its timeline entry
// and whatever the stage's side effect produced.
type StageTransition struct {
	CaseID          string
	FromStep        Step
	ToStep          Step
	ExpectedVersion int64
	Entry           TimelineEntry
	AssignedPolice  string
	Document        *CRPCDocument
	Notifications   map[string]Delivery
}
