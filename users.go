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

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

// GetUser retrieves a funnel user by ID.
func (b *Bot) GetUser(ctx context.Context, id string) (*model.User, error) {
	return b.datasource.GetUserByID(ctx, id)
}

// GetUserInteractions returns a user's interaction log, newest first.
func (b *Bot) GetUserInteractions(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) {
	return b.datasource.GetInteractions(ctx, userID, limit, offset)
}

// GetUserVerifications returns a user's verification requests, newest first.
func (b *Bot) GetUserVerifications(ctx context.Context, userID string, limit, offset int) ([]model.VerificationRequest, error) {
	return b.datasource.GetVerificationRequestsByUser(ctx, userID, limit, offset)
}

// GetReviewQueue returns unresolved admin queue entries, oldest first.
func (b *Bot) GetReviewQueue(ctx context.Context, limit, offset int) ([]model.AdminQueueEntry, error) {
	return b.datasource.GetOpenAdminQueueEntries(ctx, limit, offset)
}

// GetReviewEntry retrieves a single admin queue entry by ID.
func (b *Bot) GetReviewEntry(ctx context.Context, id string) (*model.AdminQueueEntry, error) {
	return b.datasource.GetAdminQueueEntry(ctx, id)
}
