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
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/lock"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/notification"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

var alphanumericPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// hasRepeatedDigitRun reports whether the identifier contains five or more of
// the same digit in a row, the classic made-up-account filler.
func hasRepeatedDigitRun(identifier string) bool {
	var last rune
	run := 0
	for _, r := range identifier {
		if r < '0' || r > '9' {
			run = 0
			continue
		}
		if r == last && run > 0 {
			run++
		} else {
			last = r
			run = 1
		}
		if run >= 5 {
			return true
		}
	}
	return false
}

// dailyCapScript atomically checks the day's auto-approval counter against
// the cap and increments it only when under. Returns 1 when the approval was
// admitted, 0 when the cap is reached. A two-day expiry lets the key roll
// over without a reset job.
const dailyCapScript = `local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then return 0 end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1`

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// evaluation is the outcome of running the validation rules, before the
// daily cap is consulted.
type evaluation struct {
	confidence float64
	reason     string
	rejected   bool
	review     bool
}

// SubmitVerification evaluates a user's (identifier, artifact) submission and
// resolves it to exactly one decision, applying the decision's side effects.
// An identifier submitted without its required artifact is stored and the user
// moved to AWAITING_ARTIFACT; no request is created and (nil, nil) is
// returned. Concurrent submissions for the same user serialize on a per-user
// lock.
func (b *Bot) SubmitVerification(ctx context.Context, userID, identifier, artifactRef string, submittedAt time.Time) (*model.VerificationRequest, error) {
	ctx, span := otel.Tracer("Verification engine").Start(ctx, "Evaluating verification submission")
	defer span.End()

	locker := redlock.NewLocker(b.redis, fmt.Sprintf("verify:%s", userID), model.GenerateUUIDWithSuffix("lock"))
	if err := locker.WaitLock(ctx, 30*time.Second, 10*time.Second); err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Warnf("failed to release verification lock for %s: %v", userID, err)
		}
	}()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	usr, err := b.datasource.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A verification request pairs an identifier with its artifact. When the
	// artifact is required and absent, park the identifier on the user and
	// prompt for the upload instead of minting a decision.
	if cnf.Verification.ArtifactRequired() && artifactRef == "" {
		if err := b.datasource.UpdateUserSubmission(ctx, userID, identifier, "", model.StateAwaitingArtifact); err != nil {
			return nil, logAndRecordError(span, "failed to store identifier pending artifact: ", err)
		}
		return nil, b.sendDecisionNotice(ctx, userID, "awaiting_artifact")
	}

	eval := b.evaluate(ctx, cnf, usr, identifier, artifactRef, submittedAt)

	req := &model.VerificationRequest{
		RequestID:   model.GenerateUUIDWithSuffix("req"),
		UserID:      userID,
		Identifier:  identifier,
		ArtifactRef: artifactRef,
		SubmittedAt: submittedAt,
		Confidence:  eval.confidence,
	}

	switch {
	case eval.rejected:
		req.Decision = model.DecisionRejected
		req.Reason = eval.reason
	case eval.review:
		req.Decision = model.DecisionManualReview
		req.Reason = eval.reason
	default:
		// Eligible for auto-approval; the daily cap has the last word.
		admitted, err := b.admitAutoApproval(ctx, cnf, submittedAt)
		if err != nil {
			return nil, err
		}
		if admitted {
			req.Decision = model.DecisionAutoApproved
			req.Reason = model.ReasonApproved
		} else {
			req.Decision = model.DecisionManualReview
			req.Reason = model.ReasonDailyCapReached
		}
	}

	if err := b.datasource.RecordVerificationRequest(ctx, req); err != nil {
		return nil, logAndRecordError(span, "failed to record verification request: ", err)
	}

	if err := b.applyDecision(ctx, cnf, usr, req); err != nil {
		return nil, logAndRecordError(span, "failed to apply verification decision: ", err)
	}

	b.indexVerification(req)
	return req, nil
}

// evaluate runs the validation rules and computes the deterministic
// confidence score. Each failed check costs its weight; routing flags
// (rejected/review) are set by the first decisive failure.
func (b *Bot) evaluate(ctx context.Context, cnf *config.Configuration, usr *model.User, identifier, artifactRef string, submittedAt time.Time) evaluation {
	v := cnf.Verification
	confidence := 1.0

	fail := func(weight float64) { confidence -= weight }

	if len(identifier) < v.MinIdentifierLength {
		fail(0.4)
		return evaluation{confidence: confidence, reason: model.ReasonTooShort, rejected: true}
	}
	if len(identifier) > v.MaxIdentifierLength {
		fail(0.4)
		return evaluation{confidence: confidence, reason: model.ReasonTooLong, rejected: true}
	}
	if !alphanumericPattern.MatchString(identifier) {
		fail(0.4)
		return evaluation{confidence: confidence, reason: model.ReasonBadFormat, rejected: true}
	}

	lowered := strings.ToLower(identifier)
	for _, pattern := range v.BlacklistPatterns {
		if matchesBlacklistPattern(lowered, strings.ToLower(pattern)) {
			fail(0.6)
			return evaluation{confidence: confidence, reason: model.ReasonBlacklisted, rejected: true}
		}
	}
	if hasRepeatedDigitRun(identifier) {
		fail(0.6)
		return evaluation{confidence: confidence, reason: model.ReasonBlacklisted, rejected: true}
	}

	reused, err := b.datasource.IdentifierUsedByOther(ctx, identifier, usr.UserID)
	if err != nil {
		// Store trouble must not approve by accident; route to a human.
		logrus.Warnf("identifier reuse check failed: %v", err)
		return evaluation{confidence: 0.5, reason: model.ReasonBelowThreshold, review: true}
	}
	if reused {
		fail(0.6)
		return evaluation{confidence: confidence, reason: model.ReasonReused, rejected: true}
	}

	if submittedAt.Sub(usr.CreatedAt) > v.Window() {
		fail(0.3)
		return evaluation{confidence: confidence, reason: model.ReasonOutsideWindow, review: true}
	}

	if confidence < v.AutoApproveThreshold {
		return evaluation{confidence: confidence, reason: model.ReasonBelowThreshold, review: true}
	}

	return evaluation{confidence: confidence, reason: model.ReasonApproved}
}

// matchesBlacklistPattern reports whether the identifier contains the pattern
// or a near-miss of it. Single-edit variants (tes7, dem0) count as matches so
// trivial obfuscation does not slip through.
func matchesBlacklistPattern(identifier, pattern string) bool {
	if strings.Contains(identifier, pattern) {
		return true
	}
	n := len(pattern)
	if n < 4 || len(identifier) < n {
		return false
	}
	for i := 0; i+n <= len(identifier); i++ {
		window := identifier[i : i+n]
		// Substitution must cost 1 here or single-character swaps score 2
		// and slip past the cutoff.
		distance := levenshtein.DistanceForStrings([]rune(window), []rune(pattern), levenshtein.DefaultOptionsWithSub)
		if distance <= 1 {
			return true
		}
	}
	return false
}

func (b *Bot) admitAutoApproval(ctx context.Context, cnf *config.Configuration, submittedAt time.Time) (bool, error) {
	key := fmt.Sprintf("autoapprove:%s", submittedAt.UTC().Format("2006-01-02"))
	expiry := int((48 * time.Hour).Seconds())

	result, err := b.redis.Eval(ctx, dailyCapScript, []string{key}, cnf.Verification.DailyAutoApprovalCap, expiry).Result()
	if err != nil {
		return false, err
	}
	return result == int64(1), nil
}

// applyDecision performs the side effects for the resolved decision.
func (b *Bot) applyDecision(ctx context.Context, cnf *config.Configuration, usr *model.User, req *model.VerificationRequest) error {
	switch req.Decision {
	case model.DecisionAutoApproved:
		return b.approveUser(ctx, usr.UserID, req)

	case model.DecisionManualReview:
		if err := b.datasource.UpdateUserSubmission(ctx, usr.UserID, req.Identifier, req.ArtifactRef, model.StateManualReview); err != nil {
			return err
		}
		entry := &model.AdminQueueEntry{
			EntryID:   model.GenerateUUIDWithSuffix("adq"),
			RequestID: req.RequestID,
			UserID:    usr.UserID,
		}
		if err := b.datasource.CreateAdminQueueEntry(ctx, entry); err != nil {
			return err
		}
		if open, err := b.datasource.CountOpenAdminQueueEntries(ctx); err == nil {
			notification.NotifyManualReview(usr.UserID, req.Confidence, open)
		}
		b.SendWebhookEvent("verification.manual_review", req)
		// Follow-ups keep running: the user still needs nudging until an
		// admin resolves the entry.
		return b.sendDecisionNotice(ctx, usr.UserID, "review_ack")

	case model.DecisionRejected:
		if cnf.Verification.ResubmissionAllowed() {
			if err := b.datasource.UpdateUserState(ctx, usr.UserID, model.StateAwaitingIdentifier); err != nil {
				return err
			}
		} else {
			if err := b.scheduler.CancelAll(ctx, usr.UserID, model.StateRejected); err != nil {
				return err
			}
		}
		b.SendWebhookEvent("user.rejected", req)
		return b.sendDecisionNotice(ctx, usr.UserID, rejectionContentRef(req.Reason))
	}

	return fmt.Errorf("unknown decision %q", req.Decision)
}

// approveUser applies the approval side effects: terminal state plus atomic
// follow-up cancellation, then access grant and webhook emission.
func (b *Bot) approveUser(ctx context.Context, userID string, req *model.VerificationRequest) error {
	if req.Identifier != "" {
		if err := b.datasource.UpdateUserSubmission(ctx, userID, req.Identifier, req.ArtifactRef, model.StatePendingDecision); err != nil {
			return err
		}
	}
	if err := b.scheduler.CancelAll(ctx, userID, model.StateApproved); err != nil {
		return err
	}
	if err := b.messenger.GrantAccess(ctx, userID); err != nil {
		// The decision stands; access grant is retried by the admin flow.
		notification.NotifyError(fmt.Errorf("access grant failed for user %s: %w", userID, err))
	}
	b.SendWebhookEvent("user.approved", req)
	return nil
}

// ResolveAdminEntry applies an admin verdict to a manual-review entry. The
// same entry can only be resolved once; later attempts fail with
// ALREADY_RESOLVED.
func (b *Bot) ResolveAdminEntry(ctx context.Context, entryID, resolver string, resolution model.Resolution) (*model.AdminQueueEntry, error) {
	ctx, span := otel.Tracer("Verification engine").Start(ctx, "Resolving admin review entry")
	defer span.End()

	entry, err := b.datasource.ResolveAdminQueueEntry(ctx, entryID, resolver, resolution)
	if err != nil {
		return nil, err
	}

	req, err := b.datasource.GetVerificationRequest(ctx, entry.RequestID)
	if err != nil {
		return nil, err
	}

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	switch resolution {
	case model.ResolutionApproved:
		req.Reason = model.ReasonAdminApproved
		if err := b.approveUser(ctx, entry.UserID, req); err != nil {
			return nil, err
		}
	case model.ResolutionRejected:
		req.Reason = model.ReasonAdminRejected
		if cnf.Verification.ResubmissionAllowed() {
			if err := b.datasource.UpdateUserState(ctx, entry.UserID, model.StateAwaitingIdentifier); err != nil {
				return nil, err
			}
		} else {
			if err := b.scheduler.CancelAll(ctx, entry.UserID, model.StateRejected); err != nil {
				return nil, err
			}
		}
		b.SendWebhookEvent("user.rejected", req)
		if err := b.sendDecisionNotice(ctx, entry.UserID, rejectionContentRef(model.ReasonAdminRejected)); err != nil {
			logrus.Warnf("failed to notify user of rejection: %v", err)
		}
	default:
		return nil, fmt.Errorf("unknown resolution %q", resolution)
	}

	return entry, nil
}

// sendDecisionNotice is best-effort: a failed notice never fails the decision.
func (b *Bot) sendDecisionNotice(ctx context.Context, userID, contentRef string) error {
	if err := b.messenger.Send(ctx, userID, contentRef); err != nil {
		logrus.Warnf("failed to send decision notice to %s: %v", userID, err)
	}
	return nil
}

// rejectionContentRef maps internal reason codes to user-facing message
// categories. Raw rule names never reach the user.
func rejectionContentRef(reason string) string {
	switch reason {
	case model.ReasonTooShort, model.ReasonTooLong, model.ReasonBadFormat:
		return "rejected_format"
	case model.ReasonBlacklisted, model.ReasonReused:
		return "rejected_invalid"
	case model.ReasonMissingArtifact:
		return "rejected_missing_artifact"
	case model.ReasonAdminRejected:
		return "rejected_by_review"
	default:
		return "rejected_generic"
	}
}

func (b *Bot) indexVerification(req *model.VerificationRequest) {
	payload := map[string]interface{}{
		"request_id":       req.RequestID,
		"user_id":          req.UserID,
		"identifier":       req.Identifier,
		"decision":         string(req.Decision),
		"confidence_score": req.Confidence,
		"reason":           req.Reason,
		"submitted_at":     req.SubmittedAt,
	}
	if err := b.queue.queueIndexData(req.RequestID, "verification_requests", payload); err != nil {
		logrus.Warnf("failed to queue verification index update: %v", err)
	}
}
