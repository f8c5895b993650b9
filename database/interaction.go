package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

// RecordInteraction appends to the interaction log. The log is advisory; a
// failure here must not fail the operation that produced it, so callers log
// and continue.
func (d Datasource) RecordInteraction(ctx context.Context, i *model.Interaction) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO interactions (user_id, interaction_type, interaction_data, created_at)
		VALUES ($1, $2, $3, $4)
	`, i.UserID, i.Kind, toNullString(i.Data), i.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record interaction", err)
	}
	return nil
}

func (d Datasource) GetInteractions(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) {
	cacheKey := fmt.Sprintf("interactions:%s:%d:%d", userID, limit, offset)

	var interactions []model.Interaction
	if d.Cache != nil {
		err := d.Cache.Get(ctx, cacheKey, &interactions)
		if err == nil && len(interactions) > 0 {
			return interactions, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT user_id, interaction_type, interaction_data, created_at
		FROM interactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve interactions", err)
	}
	defer rows.Close()

	interactions = []model.Interaction{}
	for rows.Next() {
		i := model.Interaction{}
		var data sql.NullString
		err = rows.Scan(&i.UserID, &i.Kind, &data, &i.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan interaction", err)
		}
		i.Data = data.String
		interactions = append(interactions, i)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over interactions", err)
	}

	if d.Cache != nil && len(interactions) > 0 {
		if err = d.Cache.Set(ctx, cacheKey, interactions, time.Minute); err != nil {
			log.Printf("Failed to cache interactions: %v", err)
		}
	}

	return interactions, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
