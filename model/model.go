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

package model

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// UserState tracks a user's position in the funnel.
type UserState string

const (
	StateNew                UserState = "NEW"
	StateAwaitingIdentifier UserState = "AWAITING_IDENTIFIER"
	StateAwaitingArtifact   UserState = "AWAITING_ARTIFACT"
	StatePendingDecision    UserState = "PENDING_DECISION"
	StateApproved           UserState = "APPROVED"
	StateManualReview       UserState = "MANUAL_REVIEW"
	StateRejected           UserState = "REJECTED"
	StateOptedOut           UserState = "OPTED_OUT"
)

// IsTerminal reports whether no further follow-up steps may fire for a user in
// this state.
func (s UserState) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateOptedOut:
		return true
	}
	return false
}

// User is an identity known to the funnel. Users are created on first inbound
// event and never deleted by the engines.
type User struct {
	UserID            string    `json:"user_id"`
	State             UserState `json:"state"`
	Identifier        string    `json:"identifier,omitempty"`
	ArtifactRef       string    `json:"artifact_ref,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// Decision is the outcome of evaluating a verification request.
type Decision string

const (
	DecisionAutoApproved Decision = "AUTO_APPROVED"
	DecisionManualReview Decision = "MANUAL_REVIEW"
	DecisionRejected     Decision = "REJECTED"
)

// Reason codes returned with decisions. These are the user-safe taxonomy; raw
// rule internals never leave the engine.
const (
	ReasonApproved          = "approved"
	ReasonTooShort          = "identifier_too_short"
	ReasonTooLong           = "identifier_too_long"
	ReasonBadFormat         = "identifier_format"
	ReasonBlacklisted       = "identifier_blacklisted"
	ReasonReused            = "identifier_reused"
	ReasonMissingArtifact   = "artifact_missing"
	ReasonOutsideWindow     = "outside_verification_window"
	ReasonDailyCapReached   = "daily_cap_reached"
	ReasonBelowThreshold    = "below_confidence_threshold"
	ReasonAdminApproved     = "admin_approved"
	ReasonAdminRejected     = "admin_rejected"
)

// VerificationRequest is one evaluation attempt for a user. At most one
// request per user is unresolved at a time; the engine resolves requests
// synchronously.
type VerificationRequest struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Identifier  string    `json:"identifier"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	Decision    Decision  `json:"decision"`
	Confidence  float64   `json:"confidence_score"`
	Reason      string    `json:"reason"`
}

// Resolution is an admin's verdict on a manual-review entry.
type Resolution string

const (
	ResolutionApproved Resolution = "APPROVED"
	ResolutionRejected Resolution = "REJECTED"
)

// AdminQueueEntry exists iff its VerificationRequest was routed to manual
// review. Resolution, once set, is immutable.
type AdminQueueEntry struct {
	EntryID    string     `json:"entry_id"`
	RequestID  string     `json:"request_id"`
	UserID     string     `json:"user_id"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Resolver   string     `json:"resolver,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
}

// Resolved reports whether the entry already carries a verdict.
func (e *AdminQueueEntry) Resolved() bool {
	return e.ResolvedAt != nil
}

// StepStatus is the lifecycle state of one scheduled follow-up message.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepSent      StepStatus = "SENT"
	StepCancelled StepStatus = "CANCELLED"
	StepFailed    StepStatus = "FAILED"
)

// FollowUpStep is one scheduled message in a user's sequence. For a given user
// at most one step is PENDING; the successor is created only after this one is
// SENT.
type FollowUpStep struct {
	StepID        string     `json:"step_id"`
	UserID        string     `json:"user_id"`
	SequenceIndex int        `json:"sequence_index"`
	DueAt         time.Time  `json:"due_at"`
	Status        StepStatus `json:"status"`
	ContentRef    string     `json:"content_ref"`
	AttemptCount  int        `json:"attempt_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewFollowUpStep builds a PENDING step for a user at the given sequence index.
func NewFollowUpStep(userID string, sequenceIndex int, dueAt time.Time, contentRef string) *FollowUpStep {
	return &FollowUpStep{
		StepID:        GenerateUUIDWithSuffix("stp"),
		UserID:        userID,
		SequenceIndex: sequenceIndex,
		DueAt:         dueAt,
		Status:        StepPending,
		ContentRef:    contentRef,
		CreatedAt:     time.Now(),
	}
}

// RandomStepDelay picks a spacing between min and max inclusive of min,
// exclusive of max. Equal bounds return min.
func RandomStepDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Interaction is an append-only audit record of inbound events and dispatched
// follow-ups.
type Interaction struct {
	UserID    string    `json:"user_id"`
	Kind      string    `json:"interaction_type"`
	Data      string    `json:"interaction_data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
