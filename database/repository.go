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

	"github.com/fraudlens/caseflow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	cases        // Interface for case record operations
	timeline     // Interface for timeline ledger operations
	scammer      // Interface for scammer registry operations
	crpcDocument // Interface for generated notice operations
}

// cases defines methods for handling case records.
type cases interface {
	CreateCase(ctx context.Context, c *model.Case, initial *model.TimelineEntry, scammer *model.Scammer) (*model.Case, error) // Creates a case, its first timeline entry and scammer link atomically
	GetCaseByID(ctx context.Context, caseID string) (*model.Case, error)                                                      // Retrieves a case by its public ID
	GetCaseStatus(ctx context.Context, caseID string) (*model.CaseStatus, error)                                              // Retrieves a case and its timeline from one snapshot
	GetAllCases(ctx context.Context, limit, offset int) ([]model.Case, error)                                                 // Retrieves cases, newest first
	GetCasesByReporter(ctx context.Context, reporterID string, limit, offset int) ([]model.Case, error)                       // Retrieves the cases a user reported
	GetCasesByOfficer(ctx context.Context, officerID string, limit, offset int) ([]model.Case, error)                         // Retrieves the cases assigned to an officer
	GetCaseIDsPaginated(ctx context.Context, limit, offset int) ([]string, error)                                             // Retrieves case IDs in creation order
	ApplyStageTransition(ctx context.Context, transition *model.StageTransition) (*model.Case, error)                         // Moves a case forward and appends its timeline entry atomically
	RecordStageFailure(ctx context.Context, caseID string, failure model.StageError) error                                    // Records the last failed side effect on a case
}

// timeline defines methods for handling the timeline ledger.
type timeline interface {
	ApplyTimelineRepair(ctx context.Context, repair *model.TimelineRepair) (*model.Case, error) // Applies a repair plan atomically
}

// scammer defines methods for handling the scammer registry.
type scammer interface {
	GetScammerByID(ctx context.Context, scammerID string) (*model.Scammer, error) // Retrieves a scammer by ID
}

// crpcDocument defines methods for handling generated notices.
type crpcDocument interface {
	GetCRPCDocument(ctx context.Context, documentID string) (*model.CRPCDocument, error)     // Retrieves a notice by ID
	GetCRPCDocumentsByCase(ctx context.Context, caseID string) ([]model.CRPCDocument, error) // Retrieves notices for a case, newest first
}
