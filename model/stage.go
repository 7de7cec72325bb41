package model

import "fmt"

// Step is a position in the nine-stage case lifecycle. The zero value is not a valid step.
type Step int

const (
	StepSubmitted Step = iota + 1
	StepVerified
	StepCRPCGenerated
	StepEmailsSent
	StepAuthorized
	StepAssignedToPolice
	StepEvidenceCollected
	StepResolved
	StepClosed
)

const (
	FirstStep = StepSubmitted
	LastStep  = StepClosed
)

// Stage is the canonical description of a lifecycle step.
type Stage struct {
	Step        Step   `json:"step"`
	Slug        string `json:"slug"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// stages is the only place the step <-> slug <-> label mapping lives.
var stages = [...]Stage{
	{StepSubmitted, "submitted", "Report Submitted", "Fraud report submitted by the victim"},
	{StepVerified, "verified", "Information Verified", "Report details verified by the administration"},
	{StepCRPCGenerated, "crpc_generated", "91CRPC Generated", "Section 91 CrPC notice generated"},
	{StepEmailsSent, "emails_sent", "Email Sent", "Notice emailed to telecom, banking and nodal authorities"},
	{StepAuthorized, "authorized", "Authorized", "Case authorized for police action"},
	{StepAssignedToPolice, "assigned_to_police", "Assigned to Police", "Case assigned to an investigating officer"},
	{StepEvidenceCollected, "evidence_collected", "Evidence Collected", "Evidence collected by the investigating officer"},
	{StepResolved, "resolved", "Resolved", "Case resolved by the investigating officer"},
	{StepClosed, "closed", "Case Closed", "Case closed"},
}

var slugToStep = func() map[string]Step {
	m := make(map[string]Step, len(stages))
	for _, s := range stages {
		m[s.Slug] = s.Step
	}
	return m
}()

// Valid reports whether s is one of the nine canonical steps.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// Stage returns the canonical stage for s. It panics on an invalid step, callers validate first.
func (s Step) Stage() Stage {
	if !s.Valid() {
		panic(fmt.Sprintf("model: invalid step %d", s))
	}
	return stages[s-1]
}

// Slug returns the status slug for s, or "" when s is invalid.
func (s Step) Slug() string {
	if !s.Valid() {
		return ""
	}
	return stages[s-1].Slug
}

// Label returns the display name for s, or "" when s is invalid.
func (s Step) Label() string {
	if !s.Valid() {
		return ""
	}
	return stages[s-1].Label
}

// Next returns the step after s. ok is false for the terminal step.
func (s Step) Next() (next Step, ok bool) {
	if !s.Valid() || s == LastStep {
		return 0, false
	}
	return s + 1, true
}

// IsTerminal reports whether no transition is defined out of s.
func (s Step) IsTerminal() bool {
	return s == LastStep
}

func (s Step) String() string {
	if slug := s.Slug(); slug != "" {
		return slug
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// StepFromSlug resolves a status slug to its step.
func StepFromSlug(slug string) (Step, bool) {
	s, ok := slugToStep[slug]
	return s, ok
}

// Stages returns the full ordered stage table.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages[:])
	return out
}
