package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
	"github.com/lib/pq"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
)

func (d Datasource) RecordVerificationRequest(ctx context.Context, req *model.VerificationRequest) error {
	ctx, span := otel.Tracer("Verification").Start(ctx, "Saving verification request to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO verification_requests (request_id, user_id, identifier, artifact_ref, submitted_at, decision, confidence_score, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, req.RequestID, req.UserID, req.Identifier, req.ArtifactRef, req.SubmittedAt, req.Decision, req.Confidence, req.Reason)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return apierror.NewAPIError(apierror.ErrConflict, "Verification request already exists", err)
			case "foreign_key_violation":
				return apierror.NewAPIError(apierror.ErrNotFound, "User not found for verification request", err)
			default:
				return apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record verification request", err)
	}

	return nil
}

func (d Datasource) GetVerificationRequest(ctx context.Context, id string) (*model.VerificationRequest, error) {
	ctx, span := otel.Tracer("Verification").Start(ctx, "Getting verification request from db")
	defer span.End()

	req := model.VerificationRequest{}
	var artifactRef sql.NullString

	row := d.Conn.QueryRowContext(ctx, `
		SELECT request_id, user_id, identifier, artifact_ref, submitted_at, decision, confidence_score, reason
		FROM verification_requests
		WHERE request_id = $1
	`, id)

	err := row.Scan(&req.RequestID, &req.UserID, &req.Identifier, &artifactRef, &req.SubmittedAt, &req.Decision, &req.Confidence, &req.Reason)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Verification request not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve verification request", err)
	}
	req.ArtifactRef = artifactRef.String

	return &req, nil
}

func (d Datasource) GetVerificationRequestsByUser(ctx context.Context, userID string, limit, offset int) ([]model.VerificationRequest, error) {
	ctx, span := otel.Tracer("Verification").Start(ctx, "Fetching verification requests by user")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT request_id, user_id, identifier, artifact_ref, submitted_at, decision, confidence_score, reason
		FROM verification_requests
		WHERE user_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve verification requests", err)
	}
	defer rows.Close()

	requests := []model.VerificationRequest{}
	for rows.Next() {
		req := model.VerificationRequest{}
		var artifactRef sql.NullString
		err = rows.Scan(&req.RequestID, &req.UserID, &req.Identifier, &artifactRef, &req.SubmittedAt, &req.Decision, &req.Confidence, &req.Reason)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan verification request", err)
		}
		req.ArtifactRef = artifactRef.String
		requests = append(requests, req)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over verification requests", err)
	}

	return requests, nil
}

func (d Datasource) CreateAdminQueueEntry(ctx context.Context, entry *model.AdminQueueEntry) error {
	ctx, span := otel.Tracer("Verification").Start(ctx, "Enqueuing admin review entry")
	defer span.End()

	entry.EnqueuedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO admin_queue (entry_id, request_id, user_id, enqueued_at)
		VALUES ($1, $2, $3, $4)
	`, entry.EntryID, entry.RequestID, entry.UserID, entry.EnqueuedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Admin queue entry already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create admin queue entry", err)
	}

	return nil
}

func (d Datasource) GetAdminQueueEntry(ctx context.Context, id string) (*model.AdminQueueEntry, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT entry_id, request_id, user_id, enqueued_at, resolved_at, resolver, resolution
		FROM admin_queue
		WHERE entry_id = $1
	`, id)

	return scanAdminQueueEntry(row)
}

func (d Datasource) GetOpenAdminQueueEntries(ctx context.Context, limit, offset int) ([]model.AdminQueueEntry, error) {
	ctx, span := otel.Tracer("Verification").Start(ctx, "Fetching open admin queue entries")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT entry_id, request_id, user_id, enqueued_at, resolved_at, resolver, resolution
		FROM admin_queue
		WHERE resolved_at IS NULL
		ORDER BY enqueued_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve admin queue entries", err)
	}
	defer rows.Close()

	entries := []model.AdminQueueEntry{}
	for rows.Next() {
		entry, err := scanAdminQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over admin queue entries", err)
	}

	return entries, nil
}

func (d Datasource) GetOpenAdminQueueEntryForUser(ctx context.Context, userID string) (*model.AdminQueueEntry, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT entry_id, request_id, user_id, enqueued_at, resolved_at, resolver, resolution
		FROM admin_queue
		WHERE user_id = $1 AND resolved_at IS NULL
	`, userID)

	return scanAdminQueueEntry(row)
}

// ResolveAdminQueueEntry records an admin verdict. The WHERE resolved_at IS
// NULL guard makes resolution first-write-wins; a second attempt surfaces
// ALREADY_RESOLVED.
func (d Datasource) ResolveAdminQueueEntry(ctx context.Context, id, resolver string, resolution model.Resolution) (*model.AdminQueueEntry, error) {
	ctx, span := otel.Tracer("Verification").Start(ctx, "Resolving admin queue entry")
	defer span.End()

	resolvedAt := ptr.Time(time.Now())
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE admin_queue
		SET resolved_at = $2, resolver = $3, resolution = $4
		WHERE entry_id = $1 AND resolved_at IS NULL
	`, id, resolvedAt, resolver, resolution)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve admin queue entry", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if rows == 0 {
		// Distinguish a missing entry from one already carrying a verdict.
		existing, getErr := d.GetAdminQueueEntry(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Resolved() {
			return nil, apierror.NewAPIError(apierror.ErrAlreadyResolved, "Admin queue entry already resolved", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Admin queue entry not found", nil)
	}

	return d.GetAdminQueueEntry(ctx, id)
}

func (d Datasource) CountOpenAdminQueueEntries(ctx context.Context) (int64, error) {
	var count int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM admin_queue WHERE resolved_at IS NULL
	`).Scan(&count)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count open admin queue entries", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAdminQueueEntry(row rowScanner) (*model.AdminQueueEntry, error) {
	entry := model.AdminQueueEntry{}
	var resolvedAt sql.NullTime
	var resolver, resolution sql.NullString

	err := row.Scan(&entry.EntryID, &entry.RequestID, &entry.UserID, &entry.EnqueuedAt, &resolvedAt, &resolver, &resolution)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Admin queue entry not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan admin queue entry", err)
	}

	if resolvedAt.Valid {
		entry.ResolvedAt = &resolvedAt.Time
	}
	entry.Resolver = resolver.String
	entry.Resolution = model.Resolution(resolution.String)

	return &entry, nil
}
