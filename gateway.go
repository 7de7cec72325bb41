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

import "github.com/fraudlens/caseflow/model"

// Deny reasons carried by a Decision.
const (
	ReasonWrongRole   = "wrong_role"
	ReasonNotAssigned = "not_assigned"
	ReasonUnknownRole = "unknown_role"
)

// Decision is the outcome of an authorization check. Reason is empty when Allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Authorize decides whether actor may move c to target. It has no side effects.
//
// Admins own verification through assignment (steps 2 to 6) and closure (step 9).
// Police own evidence and resolution (steps 7 and 8) on cases assigned to them.
// Reporters only ever create cases.
func Authorize(actor model.Actor, c *model.Case, target model.Step) Decision {
	switch actor.Role {
	case model.RoleAdmin:
		if (target >= model.StepVerified && target <= model.StepAssignedToPolice) || target == model.StepClosed {
			return allow()
		}
		return deny(ReasonWrongRole)
	case model.RolePolice:
		if target != model.StepEvidenceCollected && target != model.StepResolved {
			return deny(ReasonWrongRole)
		}
		if c == nil || c.AssignedPolice == "" || c.AssignedPolice != actor.ID {
			return deny(ReasonNotAssigned)
		}
		return allow()
	case model.RoleUser:
		return deny(ReasonWrongRole)
	default:
		return deny(ReasonUnknownRole)
	}
}

// AuthorizeSubmit decides whether actor may file a new report.
func AuthorizeSubmit(actor model.Actor) Decision {
	switch actor.Role {
	case model.RoleUser:
		if actor.ID == "" {
			return deny(ReasonUnknownRole)
		}
		return allow()
	case model.RoleAdmin, model.RolePolice:
		return deny(ReasonWrongRole)
	default:
		return deny(ReasonUnknownRole)
	}
}

// CanView reports whether actor may read c: admins see every case, police the cases
// assigned to them and reporters their own.
func CanView(actor model.Actor, c *model.Case) bool {
	if c == nil || actor.ID == "" {
		return false
	}
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RolePolice:
		return c.AssignedPolice == actor.ID
	case model.RoleUser:
		return c.ReporterID == actor.ID
	default:
		return false
	}
}
