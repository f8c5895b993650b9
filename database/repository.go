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

package database

import (
	"context"
	"time"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	user         // Interface for funnel user operations
	verification // Interface for verification request and admin queue operations
	schedule     // Interface for follow-up step operations
	interaction  // Interface for the interaction audit log
}

// user defines methods for handling funnel users.
type user interface {
	CreateUser(ctx context.Context, usr *model.User) (*model.User, error)                                     // Creates a new user
	GetUserByID(ctx context.Context, id string) (*model.User, error)                                          // Retrieves a user by ID
	UpdateUserState(ctx context.Context, id string, state model.UserState) error                              // Updates a user's funnel state
	UpdateUserSubmission(ctx context.Context, id, identifier, artifactRef string, state model.UserState) error // Records submitted identifier/artifact alongside the state change
	TouchUser(ctx context.Context, id string, at time.Time) error                                             // Updates last_interaction_at
	IdentifierUsedByOther(ctx context.Context, identifier, userID string) (bool, error)                       // Checks identifier reuse across users
}

// verification defines methods for handling verification requests and the admin review queue.
type verification interface {
	RecordVerificationRequest(ctx context.Context, req *model.VerificationRequest) error                                    // Records a resolved verification request
	GetVerificationRequest(ctx context.Context, id string) (*model.VerificationRequest, error)                              // Retrieves a request by ID
	GetVerificationRequestsByUser(ctx context.Context, userID string, limit, offset int) ([]model.VerificationRequest, error) // Retrieves a user's requests, newest first
	CreateAdminQueueEntry(ctx context.Context, entry *model.AdminQueueEntry) error                                          // Enqueues a manual-review entry
	GetAdminQueueEntry(ctx context.Context, id string) (*model.AdminQueueEntry, error)                                      // Retrieves an entry by ID
	GetOpenAdminQueueEntries(ctx context.Context, limit, offset int) ([]model.AdminQueueEntry, error)                        // Retrieves unresolved entries, oldest first
	GetOpenAdminQueueEntryForUser(ctx context.Context, userID string) (*model.AdminQueueEntry, error)                        // Retrieves a user's unresolved entry, if any
	ResolveAdminQueueEntry(ctx context.Context, id, resolver string, resolution model.Resolution) (*model.AdminQueueEntry, error) // Records a verdict; fails with ALREADY_RESOLVED on a second attempt
	CountOpenAdminQueueEntries(ctx context.Context) (int64, error)                                                           // Counts unresolved entries
}

// schedule defines methods for handling follow-up steps. The scheduler engine
// is the only caller; cancellation is atomic with the user's terminal-state write.
type schedule interface {
	CreateFollowUpStep(ctx context.Context, step *model.FollowUpStep) error                              // Creates a PENDING step; fails with ALREADY_SCHEDULED if one exists
	GetPendingSteps(ctx context.Context) ([]*model.FollowUpStep, error)                                  // Retrieves all PENDING steps ordered by due_at (startup recovery)
	GetPendingStepForUser(ctx context.Context, userID string) (*model.FollowUpStep, error)               // Retrieves a user's PENDING step, if any
	MarkStepSent(ctx context.Context, stepID string) (bool, error)                                       // Transitions PENDING->SENT; false if the step was cancelled in flight
	MarkStepFailed(ctx context.Context, stepID string, attempts int) error                               // Transitions PENDING->FAILED after the retry budget is spent
	UpdateStepAttempt(ctx context.Context, stepID string, attempts int, nextDue time.Time) error         // Records a failed attempt and the backoff due time
	CancelPendingSteps(ctx context.Context, userID string, state model.UserState) (int64, error)         // Atomically writes the terminal user state and cancels PENDING steps
}

// interaction defines methods for the append-only interaction log.
type interaction interface {
	RecordInteraction(ctx context.Context, i *model.Interaction) error                                  // Appends an interaction record
	GetInteractions(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) // Retrieves a user's interactions, newest first
}
