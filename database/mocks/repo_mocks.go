/*
Copyright 2024 OPTRIXTRADES Authors.

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
	"time"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// User methods

func (m *MockDataSource) CreateUser(ctx context.Context, usr *model.User) (*model.User, error) {
	args := m.Called(ctx, usr)
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) UpdateUserState(ctx context.Context, id string, state model.UserState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockDataSource) UpdateUserSubmission(ctx context.Context, id, identifier, artifactRef string, state model.UserState) error {
	args := m.Called(ctx, id, identifier, artifactRef, state)
	return args.Error(0)
}

func (m *MockDataSource) TouchUser(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDataSource) IdentifierUsedByOther(ctx context.Context, identifier, userID string) (bool, error) {
	args := m.Called(ctx, identifier, userID)
	return args.Bool(0), args.Error(1)
}

// Verification methods

func (m *MockDataSource) RecordVerificationRequest(ctx context.Context, req *model.VerificationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockDataSource) GetVerificationRequest(ctx context.Context, id string) (*model.VerificationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerificationRequest), args.Error(1)
}

func (m *MockDataSource) GetVerificationRequestsByUser(ctx context.Context, userID string, limit, offset int) ([]model.VerificationRequest, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]model.VerificationRequest), args.Error(1)
}

func (m *MockDataSource) CreateAdminQueueEntry(ctx context.Context, entry *model.AdminQueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetAdminQueueEntry(ctx context.Context, id string) (*model.AdminQueueEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminQueueEntry), args.Error(1)
}

func (m *MockDataSource) GetOpenAdminQueueEntries(ctx context.Context, limit, offset int) ([]model.AdminQueueEntry, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.AdminQueueEntry), args.Error(1)
}

func (m *MockDataSource) GetOpenAdminQueueEntryForUser(ctx context.Context, userID string) (*model.AdminQueueEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminQueueEntry), args.Error(1)
}

func (m *MockDataSource) ResolveAdminQueueEntry(ctx context.Context, id, resolver string, resolution model.Resolution) (*model.AdminQueueEntry, error) {
	args := m.Called(ctx, id, resolver, resolution)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminQueueEntry), args.Error(1)
}

func (m *MockDataSource) CountOpenAdminQueueEntries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Schedule methods

func (m *MockDataSource) CreateFollowUpStep(ctx context.Context, step *model.FollowUpStep) error {
	args := m.Called(ctx, step)
	return args.Error(0)
}

func (m *MockDataSource) GetPendingSteps(ctx context.Context) ([]*model.FollowUpStep, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.FollowUpStep), args.Error(1)
}

func (m *MockDataSource) GetPendingStepForUser(ctx context.Context, userID string) (*model.FollowUpStep, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FollowUpStep), args.Error(1)
}

func (m *MockDataSource) MarkStepSent(ctx context.Context, stepID string) (bool, error) {
	args := m.Called(ctx, stepID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) MarkStepFailed(ctx context.Context, stepID string, attempts int) error {
	args := m.Called(ctx, stepID, attempts)
	return args.Error(0)
}

func (m *MockDataSource) UpdateStepAttempt(ctx context.Context, stepID string, attempts int, nextDue time.Time) error {
	args := m.Called(ctx, stepID, attempts, nextDue)
	return args.Error(0)
}

func (m *MockDataSource) CancelPendingSteps(ctx context.Context, userID string, state model.UserState) (int64, error) {
	args := m.Called(ctx, userID, state)
	return args.Get(0).(int64), args.Error(1)
}

// Interaction methods

func (m *MockDataSource) RecordInteraction(ctx context.Context, i *model.Interaction) error {
	args := m.Called(ctx, i)
	return args.Error(0)
}

func (m *MockDataSource) GetInteractions(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]model.Interaction), args.Error(1)
}
