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
	"database/sql"
	"time"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

// CreateFollowUpStep persists a PENDING step. The partial unique index on
// (user_id) WHERE status = 'PENDING' guarantees at most one scheduled step
// per user; a conflict surfaces as ALREADY_SCHEDULED so callers can treat a
// duplicate schedule request as a no-op.
func (d Datasource) CreateFollowUpStep(ctx context.Context, step *model.FollowUpStep) error {
	ctx, span := otel.Tracer("Scheduler store").Start(ctx, "Saving follow-up step to db")
	defer span.End()

	step.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO follow_up_steps (step_id, user_id, sequence_index, due_at, status, content_ref, attempt_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, step.StepID, step.UserID, step.SequenceIndex, step.DueAt, step.Status, step.ContentRef, step.AttemptCount, step.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return apierror.NewAPIError(apierror.ErrAlreadyScheduled, "A follow-up step is already scheduled for this user", err)
			case "foreign_key_violation":
				return apierror.NewAPIError(apierror.ErrNotFound, "User not found for follow-up step", err)
			default:
				return apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create follow-up step", err)
	}

	return nil
}

// GetPendingSteps returns every PENDING step ordered by due time. Startup
// recovery rebuilds the in-memory index from this snapshot.
func (d Datasource) GetPendingSteps(ctx context.Context) ([]*model.FollowUpStep, error) {
	ctx, span := otel.Tracer("Scheduler store").Start(ctx, "Loading pending follow-up steps")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT step_id, user_id, sequence_index, due_at, status, content_ref, attempt_count, created_at
		FROM follow_up_steps
		WHERE status = 'PENDING'
		ORDER BY due_at ASC
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pending follow-up steps", err)
	}
	defer rows.Close()

	steps := []*model.FollowUpStep{}
	for rows.Next() {
		step := model.FollowUpStep{}
		err = rows.Scan(&step.StepID, &step.UserID, &step.SequenceIndex, &step.DueAt, &step.Status, &step.ContentRef, &step.AttemptCount, &step.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan follow-up step", err)
		}
		steps = append(steps, &step)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over follow-up steps", err)
	}

	return steps, nil
}

func (d Datasource) GetPendingStepForUser(ctx context.Context, userID string) (*model.FollowUpStep, error) {
	step := model.FollowUpStep{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT step_id, user_id, sequence_index, due_at, status, content_ref, attempt_count, created_at
		FROM follow_up_steps
		WHERE user_id = $1 AND status = 'PENDING'
	`, userID)

	err := row.Scan(&step.StepID, &step.UserID, &step.SequenceIndex, &step.DueAt, &step.Status, &step.ContentRef, &step.AttemptCount, &step.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "No pending follow-up step for user", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve follow-up step", err)
	}

	return &step, nil
}

// MarkStepSent transitions a step from PENDING to SENT. It returns false when
// no row was updated, which means the step was cancelled while the send was in
// flight; the caller must not schedule a successor in that case.
func (d Datasource) MarkStepSent(ctx context.Context, stepID string) (bool, error) {
	ctx, span := otel.Tracer("Scheduler store").Start(ctx, "Marking follow-up step sent")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE follow_up_steps
		SET status = 'SENT'
		WHERE step_id = $1 AND status = 'PENDING'
	`, stepID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark follow-up step sent", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}

	return rows > 0, nil
}

func (d Datasource) MarkStepFailed(ctx context.Context, stepID string, attempts int) error {
	ctx, span := otel.Tracer("Scheduler store").Start(ctx, "Marking follow-up step failed")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE follow_up_steps
		SET status = 'FAILED', attempt_count = $2
		WHERE step_id = $1 AND status = 'PENDING'
	`, stepID, attempts)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark follow-up step failed", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Follow-up step not found or no longer pending", nil)
	}

	return nil
}

func (d Datasource) UpdateStepAttempt(ctx context.Context, stepID string, attempts int, nextDue time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE follow_up_steps
		SET attempt_count = $2, due_at = $3
		WHERE step_id = $1 AND status = 'PENDING'
	`, stepID, attempts, nextDue)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record follow-up step attempt", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Follow-up step not found or no longer pending", nil)
	}

	return nil
}

// CancelPendingSteps writes the user's terminal state and cancels any PENDING
// steps in one transaction. The single commit is what makes cancellation
// atomic: a crash between the two writes can never leave a terminal user with
// a live step. Returns the number of steps cancelled.
func (d Datasource) CancelPendingSteps(ctx context.Context, userID string, state model.UserState) (int64, error) {
	ctx, span := otel.Tracer("Scheduler store").Start(ctx, "Cancelling pending follow-up steps")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET state = $2 WHERE user_id = $1
	`, userID, state)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update user state", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if rows == 0 {
		return 0, apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE follow_up_steps
		SET status = 'CANCELLED'
		WHERE user_id = $1 AND status = 'PENDING'
	`, userID)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to cancel pending follow-up steps", err)
	}

	cancelled, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return cancelled, nil
}
