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

package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

func TestOnNewUser_CreatesAndEnqueues(t *testing.T) {
	b, ds, _, _ := newTestBot(t)

	created := &model.User{UserID: "usr_1", State: model.StateAwaitingIdentifier, CreatedAt: time.Now()}
	ds.On("GetUserByID", mock.Anything, "usr_1").Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil))
	ds.On("CreateUser", mock.Anything, mock.Anything).Return(created, nil)
	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)
	ds.On("CreateFollowUpStep", mock.Anything, mock.Anything).Return(nil)

	usr, err := b.OnNewUser(context.Background(), "usr_1")
	require.NoError(t, err)

	assert.Equal(t, model.StateAwaitingIdentifier, usr.State)
	assert.Equal(t, 1, b.scheduler.PendingCount())
	ds.AssertExpectations(t)
}

func TestOnNewUser_ApprovedUserKeepsDecision(t *testing.T) {
	b, ds, _, _ := newTestBot(t)

	ds.On("GetUserByID", mock.Anything, "usr_1").Return(&model.User{UserID: "usr_1", State: model.StateApproved}, nil)

	usr, err := b.OnNewUser(context.Background(), "usr_1")
	require.NoError(t, err)

	assert.Equal(t, model.StateApproved, usr.State)
	assert.Equal(t, 0, b.scheduler.PendingCount())
	ds.AssertNotCalled(t, "CreateFollowUpStep", mock.Anything, mock.Anything)
}

func TestOnNewUser_OptedOutUserRestarts(t *testing.T) {
	b, ds, _, _ := newTestBot(t)

	ds.On("GetUserByID", mock.Anything, "usr_1").Return(&model.User{UserID: "usr_1", State: model.StateOptedOut}, nil)
	ds.On("UpdateUserState", mock.Anything, "usr_1", model.StateAwaitingIdentifier).Return(nil)
	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)
	ds.On("CreateFollowUpStep", mock.Anything, mock.Anything).Return(nil)

	usr, err := b.OnNewUser(context.Background(), "usr_1")
	require.NoError(t, err)

	assert.Equal(t, model.StateAwaitingIdentifier, usr.State)
	assert.Equal(t, 1, b.scheduler.PendingCount())
	ds.AssertExpectations(t)
}

func TestOnOptOut_CancelsSequence(t *testing.T) {
	b, ds, _, _ := newTestBot(t)

	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)
	ds.On("CancelPendingSteps", mock.Anything, "usr_1", model.StateOptedOut).Return(int64(2), nil)

	require.NoError(t, b.OnOptOut(context.Background(), "usr_1"))
	ds.AssertExpectations(t)
}

func TestOnIdentifierSubmitted_ParksAwaitingArtifact(t *testing.T) {
	b, ds, messenger, _ := newTestBot(t)

	usr := &model.User{UserID: "usr_1", State: model.StateAwaitingIdentifier, CreatedAt: time.Now().Add(-time.Hour)}
	ds.On("GetUserByID", mock.Anything, "usr_1").Return(usr, nil)
	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)
	ds.On("UpdateUserSubmission", mock.Anything, "usr_1", "ABC12345", "", model.StateAwaitingArtifact).Return(nil)

	req, err := b.OnIdentifierSubmitted(context.Background(), "usr_1", "ABC12345")
	require.NoError(t, err)
	require.Nil(t, req)

	sent := messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "awaiting_artifact", sent[0].ContentRef)
	ds.AssertNotCalled(t, "RecordVerificationRequest", mock.Anything, mock.Anything)
	ds.AssertExpectations(t)
}

func TestOnArtifactSubmitted_NoStoredIdentifierPrompts(t *testing.T) {
	b, ds, messenger, _ := newTestBot(t)

	usr := &model.User{UserID: "usr_1", State: model.StateAwaitingIdentifier, CreatedAt: time.Now()}
	ds.On("GetUserByID", mock.Anything, "usr_1").Return(usr, nil)
	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)

	req, err := b.OnArtifactSubmitted(context.Background(), "usr_1", "file_99")
	require.NoError(t, err)
	require.Nil(t, req)

	sent := messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "awaiting_identifier", sent[0].ContentRef)
	ds.AssertNotCalled(t, "RecordVerificationRequest", mock.Anything, mock.Anything)
}

func TestIdentifierThenArtifactVerifies(t *testing.T) {
	b, ds, messenger, _ := newTestBot(t)
	created := time.Now().Add(-time.Hour)

	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)

	// Identifier first: stored, no decision yet.
	parked := &model.User{UserID: "usr_1", State: model.StateAwaitingIdentifier, CreatedAt: created}
	ds.On("GetUserByID", mock.Anything, "usr_1").Return(parked, nil).Once()
	ds.On("UpdateUserSubmission", mock.Anything, "usr_1", "ABC12345", "", model.StateAwaitingArtifact).Return(nil).Once()

	req, err := b.OnIdentifierSubmitted(context.Background(), "usr_1", "ABC12345")
	require.NoError(t, err)
	require.Nil(t, req)

	// Artifact second: paired with the stored identifier and decided.
	stored := &model.User{UserID: "usr_1", State: model.StateAwaitingArtifact, Identifier: "ABC12345", CreatedAt: created}
	ds.On("GetUserByID", mock.Anything, "usr_1").Return(stored, nil)
	ds.On("IdentifierUsedByOther", mock.Anything, "ABC12345", "usr_1").Return(false, nil)
	ds.On("RecordVerificationRequest", mock.Anything, mock.Anything).Return(nil)
	ds.On("UpdateUserSubmission", mock.Anything, "usr_1", "ABC12345", "file_99", model.StatePendingDecision).Return(nil)
	ds.On("CancelPendingSteps", mock.Anything, "usr_1", model.StateApproved).Return(int64(1), nil)

	req, err = b.OnArtifactSubmitted(context.Background(), "usr_1", "file_99")
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, model.DecisionAutoApproved, req.Decision)
	assert.Equal(t, "ABC12345", req.Identifier)
	assert.Equal(t, []string{"usr_1"}, messenger.Granted())
	ds.AssertExpectations(t)
}

func TestOnArtifactSubmitted_PairsStoredIdentifier(t *testing.T) {
	b, ds, messenger, _ := newTestBot(t)

	usr := &model.User{
		UserID:     "usr_1",
		State:      model.StateAwaitingArtifact,
		Identifier: "ABC12345",
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	ds.On("GetUserByID", mock.Anything, "usr_1").Return(usr, nil)
	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "usr_1", mock.Anything).Return(nil)
	ds.On("IdentifierUsedByOther", mock.Anything, "ABC12345", "usr_1").Return(false, nil)
	ds.On("RecordVerificationRequest", mock.Anything, mock.Anything).Return(nil)
	ds.On("UpdateUserSubmission", mock.Anything, "usr_1", "ABC12345", "file_99", model.StatePendingDecision).Return(nil)
	ds.On("CancelPendingSteps", mock.Anything, "usr_1", model.StateApproved).Return(int64(1), nil)

	req, err := b.OnArtifactSubmitted(context.Background(), "usr_1", "file_99")
	require.NoError(t, err)

	assert.Equal(t, model.DecisionAutoApproved, req.Decision)
	assert.Equal(t, "file_99", req.ArtifactRef)
	assert.Equal(t, []string{"usr_1"}, messenger.Granted())
	ds.AssertExpectations(t)
}
