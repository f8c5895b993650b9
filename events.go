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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

// OnNewUser handles a user's first contact: create them in AWAITING_IDENTIFIER
// and enqueue step 1 of the follow-up sequence. Safe to call again for a known
// user; a restart simply re-enqueues (a no-op while a step is pending).
func (b *Bot) OnNewUser(ctx context.Context, userID string) (*model.User, error) {
	ctx, span := otel.Tracer("Funnel events").Start(ctx, "Handling new user")
	defer span.End()

	usr, err := b.datasource.GetUserByID(ctx, userID)
	if err != nil {
		if !apierror.Is(err, apierror.ErrNotFound) {
			return nil, err
		}
		usr, err = b.datasource.CreateUser(ctx, &model.User{
			UserID: userID,
			State:  model.StateAwaitingIdentifier,
		})
		if err != nil {
			return nil, err
		}
		b.indexUser(usr)
	}

	if usr.State.IsTerminal() && usr.State != model.StateOptedOut {
		// Approved and rejected users keep their decision on a restart.
		return usr, nil
	}
	if usr.State == model.StateOptedOut {
		// A restart from an opted-out user re-opens the funnel.
		if err := b.datasource.UpdateUserState(ctx, userID, model.StateAwaitingIdentifier); err != nil {
			return nil, err
		}
		usr.State = model.StateAwaitingIdentifier
	}

	b.recordInteraction(ctx, userID, "funnel_start", "")
	if err := b.scheduler.Enqueue(ctx, userID); err != nil {
		return nil, err
	}
	return usr, nil
}

// OnIdentifierSubmitted runs the decision engine over the submitted identifier
// alone. When an artifact is required the identifier is stored and the user is
// prompted to attach one; otherwise the identifier is decided as-is.
func (b *Bot) OnIdentifierSubmitted(ctx context.Context, userID, identifier string) (*model.VerificationRequest, error) {
	ctx, span := otel.Tracer("Funnel events").Start(ctx, "Handling identifier submission")
	defer span.End()

	b.recordInteraction(ctx, userID, "identifier_submitted", identifier)
	return b.SubmitVerification(ctx, userID, identifier, "", time.Now())
}

// OnArtifactSubmitted pairs the stored identifier with the uploaded artifact
// and runs the decision engine over the pair.
func (b *Bot) OnArtifactSubmitted(ctx context.Context, userID, artifactRef string) (*model.VerificationRequest, error) {
	ctx, span := otel.Tracer("Funnel events").Start(ctx, "Handling artifact submission")
	defer span.End()

	usr, err := b.datasource.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	b.recordInteraction(ctx, userID, "artifact_submitted", artifactRef)

	if usr.Identifier == "" {
		// Artifact arrived before any identifier. Nothing to pair it with yet.
		return nil, b.sendDecisionNotice(ctx, userID, "awaiting_identifier")
	}
	return b.SubmitVerification(ctx, userID, usr.Identifier, artifactRef, time.Now())
}

// OnOptOut cancels the user's remaining sequence atomically with the terminal
// state write. Idempotent.
func (b *Bot) OnOptOut(ctx context.Context, userID string) error {
	ctx, span := otel.Tracer("Funnel events").Start(ctx, "Handling opt-out")
	defer span.End()

	b.recordInteraction(ctx, userID, "opted_out", "")
	if err := b.scheduler.CancelAll(ctx, userID, model.StateOptedOut); err != nil {
		return err
	}
	b.SendWebhookEvent("user.opted_out", map[string]interface{}{"user_id": userID})
	return nil
}

// OnAdminResolve applies an admin verdict from the review surface.
func (b *Bot) OnAdminResolve(ctx context.Context, entryID, resolver string, resolution model.Resolution) (*model.AdminQueueEntry, error) {
	return b.ResolveAdminEntry(ctx, entryID, resolver, resolution)
}

// recordInteraction appends to the audit log and refreshes the user's
// last-interaction timestamp. Best-effort on both counts.
func (b *Bot) recordInteraction(ctx context.Context, userID, kind, data string) {
	if err := b.datasource.RecordInteraction(ctx, &model.Interaction{
		UserID:    userID,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now(),
	}); err != nil {
		logrus.Warnf("failed to record interaction %s for %s: %v", kind, userID, err)
	}
	if err := b.datasource.TouchUser(ctx, userID, time.Now()); err != nil && !apierror.Is(err, apierror.ErrNotFound) {
		logrus.Warnf("failed to touch user %s: %v", userID, err)
	}
	if err := b.queue.queueIndexData(userID, "interactions", map[string]interface{}{
		"user_id":          userID,
		"interaction_type": kind,
		"interaction_data": data,
		"created_at":       time.Now(),
	}); err != nil {
		logrus.Warnf("failed to queue interaction index update: %v", err)
	}
}

func (b *Bot) indexUser(usr *model.User) {
	payload := map[string]interface{}{
		"user_id":    usr.UserID,
		"state":      string(usr.State),
		"identifier": usr.Identifier,
		"created_at": usr.CreatedAt,
	}
	if err := b.queue.queueIndexData(usr.UserID, "users", payload); err != nil {
		logrus.Warnf("failed to queue user index update: %v", err)
	}
}
