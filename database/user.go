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

func (d Datasource) CreateUser(ctx context.Context, usr *model.User) (*model.User, error) {
	ctx, span := otel.Tracer("Funnel user").Start(ctx, "Saving user to db")
	defer span.End()

	if usr.State == "" {
		usr.State = model.StateNew
	}
	usr.CreatedAt = time.Now()
	usr.LastInteractionAt = usr.CreatedAt

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO users (user_id, state, identifier, artifact_ref, created_at, last_interaction_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, usr.UserID, usr.State, usr.Identifier, usr.ArtifactRef, usr.CreatedAt, usr.LastInteractionAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "User already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create user", err)
	}

	return usr, nil
}

func (d Datasource) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, span := otel.Tracer("Funnel user").Start(ctx, "Getting user from db")
	defer span.End()

	usr := model.User{}
	var identifier, artifactRef sql.NullString

	row := d.Conn.QueryRowContext(ctx, `
		SELECT user_id, state, identifier, artifact_ref, created_at, last_interaction_at
		FROM users
		WHERE user_id = $1
	`, id)

	err := row.Scan(&usr.UserID, &usr.State, &identifier, &artifactRef, &usr.CreatedAt, &usr.LastInteractionAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", err)
	}
	usr.Identifier = identifier.String
	usr.ArtifactRef = artifactRef.String

	return &usr, nil
}

func (d Datasource) UpdateUserState(ctx context.Context, id string, state model.UserState) error {
	ctx, span := otel.Tracer("Funnel user").Start(ctx, "Updating user state")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE users SET state = $2, last_interaction_at = NOW() WHERE user_id = $1
	`, id, state)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update user state", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil)
	}
	return nil
}

func (d Datasource) UpdateUserSubmission(ctx context.Context, id, identifier, artifactRef string, state model.UserState) error {
	ctx, span := otel.Tracer("Funnel user").Start(ctx, "Updating user submission")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE users
		SET identifier = $2, artifact_ref = $3, state = $4, last_interaction_at = NOW()
		WHERE user_id = $1
	`, id, identifier, artifactRef, state)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update user submission", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil)
	}
	return nil
}

func (d Datasource) TouchUser(ctx context.Context, id string, at time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE users SET last_interaction_at = $2 WHERE user_id = $1
	`, id, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to touch user", err)
	}
	return nil
}

// IdentifierUsedByOther reports whether a different user already submitted the
// identifier. Reuse is a suspicious signal for the decision engine.
func (d Datasource) IdentifierUsedByOther(ctx context.Context, identifier, userID string) (bool, error) {
	ctx, span := otel.Tracer("Funnel user").Start(ctx, "Checking identifier reuse")
	defer span.End()

	var count int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE identifier = $1 AND user_id != $2
	`, identifier, userID).Scan(&count)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check identifier reuse", err)
	}
	return count > 0, nil
}
