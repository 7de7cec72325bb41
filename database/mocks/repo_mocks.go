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
package mocks

import (
	"context"

	"github.com/fraudlens/caseflow/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func caseArg(args mock.Arguments) *model.Case {
	if c, ok := args.Get(0).(*model.Case); ok {
		return c
	}
	return nil
}

// Case methods

func (m *MockDataSource) CreateCase(ctx context.Context, c *model.Case, initial *model.TimelineEntry, scammer *model.Scammer) (*model.Case, error) {
	args := m.Called(ctx, c, initial, scammer)
	return caseArg(args), args.Error(1)
}

func (m *MockDataSource) GetCaseByID(ctx context.Context, caseID string) (*model.Case, error) {
	args := m.Called(ctx, caseID)
	return caseArg(args), args.Error(1)
}

func (m *MockDataSource) GetCaseStatus(ctx context.Context, caseID string) (*model.CaseStatus, error) {
	args := m.Called(ctx, caseID)
	if s, ok := args.Get(0).(*model.CaseStatus); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) GetAllCases(ctx context.Context, limit, offset int) ([]model.Case, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.Case), args.Error(1)
}

func (m *MockDataSource) GetCasesByReporter(ctx context.Context, reporterID string, limit, offset int) ([]model.Case, error) {
	args := m.Called(ctx, reporterID, limit, offset)
	return args.Get(0).([]model.Case), args.Error(1)
}

func (m *MockDataSource) GetCasesByOfficer(ctx context.Context, officerID string, limit, offset int) ([]model.Case, error) {
	args := m.Called(ctx, officerID, limit, offset)
	return args.Get(0).([]model.Case), args.Error(1)
}

func (m *MockDataSource) GetCaseIDsPaginated(ctx context.Context, limit, offset int) ([]string, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataSource) ApplyStageTransition(ctx context.Context, transition *model.StageTransition) (*model.Case, error) {
	args := m.Called(ctx, transition)
	return caseArg(args), args.Error(1)
}

func (m *MockDataSource) RecordStageFailure(ctx context.Context, caseID string, failure model.StageError) error {
	args := m.Called(ctx, caseID, failure)
	return args.Error(0)
}

// Timeline methods

func (m *MockDataSource) ApplyTimelineRepair(ctx context.Context, repair *model.TimelineRepair) (*model.Case, error) {
	args := m.Called(ctx, repair)
	return caseArg(args), args.Error(1)
}

// Scammer methods

func (m *MockDataSource) GetScammerByID(ctx context.Context, scammerID string) (*model.Scammer, error) {
	args := m.Called(ctx, scammerID)
	if s, ok := args.Get(0).(*model.Scammer); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// CRPC document methods

func (m *MockDataSource) GetCRPCDocument(ctx context.Context, documentID string) (*model.CRPCDocument, error) {
	args := m.Called(ctx, documentID)
	if doc, ok := args.Get(0).(*model.CRPCDocument); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) GetCRPCDocumentsByCase(ctx context.Context, caseID string) ([]model.CRPCDocument, error) {
	args := m.Called(ctx, caseID)
	return args.Get(0).([]model.CRPCDocument), args.Error(1)
}
