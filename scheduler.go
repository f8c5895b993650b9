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
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/notification"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

// stepHeap is a min-heap of pending steps ordered by due time.
type stepHeap []*model.FollowUpStep

func (h stepHeap) Len() int            { return len(h) }
func (h stepHeap) Less(i, j int) bool  { return h[i].DueAt.Before(h[j].DueAt) }
func (h stepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *stepHeap) Push(x interface{}) { *h = append(*h, x.(*model.FollowUpStep)) }
func (h *stepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	step := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return step
}

// Scheduler owns the follow-up step lifecycle. A single dispatch loop
// serializes all index mutations; deliveries within a due batch run
// concurrently so one slow send cannot delay the rest of the batch.
type Scheduler struct {
	datasource scheduleStore
	messenger  Messenger

	// notify, when set, emits admin webhook events (followup.failed).
	notify func(event string, payload interface{})

	// storeBackoff builds the retry policy for post-send store writes.
	storeBackoff func() backoff.BackOff

	mu    sync.Mutex
	index stepHeap

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// scheduleStore is the slice of the datasource the scheduler touches.
type scheduleStore interface {
	CreateFollowUpStep(ctx context.Context, step *model.FollowUpStep) error
	GetPendingSteps(ctx context.Context) ([]*model.FollowUpStep, error)
	MarkStepSent(ctx context.Context, stepID string) (bool, error)
	MarkStepFailed(ctx context.Context, stepID string, attempts int) error
	UpdateStepAttempt(ctx context.Context, stepID string, attempts int, nextDue time.Time) error
	CancelPendingSteps(ctx context.Context, userID string, state model.UserState) (int64, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	RecordInteraction(ctx context.Context, i *model.Interaction) error
}

// NewScheduler builds a scheduler over the given store and messenger. Call
// Recover before Start so steps persisted by a previous process rejoin the
// index.
func NewScheduler(ds scheduleStore, messenger Messenger) *Scheduler {
	return &Scheduler{
		datasource:   ds,
		messenger:    messenger,
		index:        stepHeap{},
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		storeBackoff: defaultStoreBackoff,
	}
}

func defaultStoreBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	return bo
}

// retryStoreWrite retries a step-state write with backoff. By the time these
// writes run a message already went out, so exhaustion halts the dispatch
// loop: dropping the write would leave the row PENDING and the next recovery
// would send the step a second time.
func (s *Scheduler) retryStoreWrite(ctx context.Context, op backoff.Operation) error {
	err := backoff.Retry(op, backoff.WithContext(s.storeBackoff(), ctx))
	if err != nil {
		notification.NotifyError(fmt.Errorf("scheduler store write failed, halting dispatch: %w", err))
		s.Stop()
	}
	return err
}

// Enqueue creates step 1 for a user with the configured initial delay. A
// user who already has a pending step is a no-op, so ingress layers can call
// this without first checking.
func (s *Scheduler) Enqueue(ctx context.Context, userID string) error {
	ctx, span := otel.Tracer("Scheduler").Start(ctx, "Enqueuing follow-up sequence")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	contentRef, err := ContentRefForStep(1)
	if err != nil {
		return err
	}

	step := model.NewFollowUpStep(userID, 1, time.Now().Add(cnf.FollowUp.InitialDelay()), contentRef)
	if err := s.datasource.CreateFollowUpStep(ctx, step); err != nil {
		if apierror.Is(err, apierror.ErrAlreadyScheduled) {
			logrus.WithField("user_id", userID).Debug("follow-up already scheduled, skipping")
			return nil
		}
		return err
	}

	s.push(step)
	return nil
}

// CancelAll marks the user terminal and cancels their pending steps in one
// store transaction, then prunes the in-memory index. Idempotent: cancelling
// an already-terminal user with no pending steps changes nothing.
func (s *Scheduler) CancelAll(ctx context.Context, userID string, state model.UserState) error {
	ctx, span := otel.Tracer("Scheduler").Start(ctx, "Cancelling follow-up sequence")
	defer span.End()

	cancelled, err := s.datasource.CancelPendingSteps(ctx, userID, state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	pruned := s.index[:0]
	for _, step := range s.index {
		if step.UserID != userID {
			pruned = append(pruned, step)
		}
	}
	s.index = pruned
	heap.Init(&s.index)
	s.mu.Unlock()

	if cancelled > 0 {
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"cancelled": cancelled,
			"state":     state,
		}).Info("cancelled pending follow-ups")
	}
	s.signal()
	return nil
}

// Recover loads every pending step from the store into the index. Steps past
// due fire in the first batch after Start.
func (s *Scheduler) Recover(ctx context.Context) error {
	steps, err := s.datasource.GetPendingSteps(ctx)
	if err != nil {
		return fmt.Errorf("scheduler recovery failed: %w", err)
	}

	s.mu.Lock()
	s.index = append(stepHeap{}, steps...)
	heap.Init(&s.index)
	s.mu.Unlock()

	logrus.WithField("steps", len(steps)).Info("scheduler recovered pending follow-ups")
	return nil
}

// Start runs the dispatch loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop terminates the dispatch loop.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		timer := time.NewTimer(s.untilNext())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
		s.Tick(ctx, time.Now())
	}
}

// idleWait bounds the sleep when the index is empty so a missed wake signal
// cannot stall the loop indefinitely.
const idleWait = time.Minute

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.index) == 0 {
		return idleWait
	}
	d := time.Until(s.index[0].DueAt)
	if d < 0 {
		return 0
	}
	return d
}

// Tick drains every step due at or before now and attempts delivery for each
// in its own goroutine, waiting for the whole batch before returning.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	due := s.popDue(now)
	if len(due) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, step := range due {
		wg.Add(1)
		go func(step *model.FollowUpStep) {
			defer wg.Done()
			s.deliver(ctx, step)
		}(step)
	}
	wg.Wait()
}

func (s *Scheduler) popDue(now time.Time) []*model.FollowUpStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*model.FollowUpStep
	for len(s.index) > 0 && !s.index[0].DueAt.After(now) {
		due = append(due, heap.Pop(&s.index).(*model.FollowUpStep))
	}
	return due
}

func (s *Scheduler) deliver(ctx context.Context, step *model.FollowUpStep) {
	ctx, span := otel.Tracer("Scheduler").Start(ctx, "Delivering follow-up step")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		notification.NotifyError(err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, cnf.Telegram.SendTimeout())
	err = s.messenger.Send(sendCtx, step.UserID, step.ContentRef)
	cancel()

	if err != nil {
		s.handleDeliveryFailure(ctx, step, err, cnf)
		return
	}

	var sent bool
	if err := s.retryStoreWrite(ctx, func() error {
		var markErr error
		sent, markErr = s.datasource.MarkStepSent(ctx, step.StepID)
		return markErr
	}); err != nil {
		return
	}
	if !sent {
		// Cancelled while the send was in flight. The message went out (the
		// one allowed in-flight delivery) but no successor follows.
		logrus.WithField("step_id", step.StepID).Info("step cancelled mid-flight, no successor")
		return
	}

	if err := s.datasource.RecordInteraction(ctx, &model.Interaction{
		UserID:    step.UserID,
		Kind:      "followup_sent",
		Data:      step.ContentRef,
		CreatedAt: time.Now(),
	}); err != nil {
		logrus.Warnf("failed to record follow-up interaction: %v", err)
	}

	s.scheduleSuccessor(ctx, step, cnf)
}

func (s *Scheduler) handleDeliveryFailure(ctx context.Context, step *model.FollowUpStep, sendErr error, cnf *config.Configuration) {
	attempts := step.AttemptCount + 1

	if !IsTransientDelivery(sendErr) || attempts >= cnf.FollowUp.RetryMaxAttempts {
		if err := s.retryStoreWrite(ctx, func() error {
			if err := s.datasource.MarkStepFailed(ctx, step.StepID, attempts); err != nil && !apierror.Is(err, apierror.ErrNotFound) {
				return err
			}
			return nil
		}); err != nil {
			return
		}
		notification.NotifyError(fmt.Errorf("follow-up delivery failed for user %s after %d attempts: %w", step.UserID, attempts, sendErr))
		if s.notify != nil {
			s.notify("followup.failed", map[string]interface{}{
				"user_id":        step.UserID,
				"step_id":        step.StepID,
				"sequence_index": step.SequenceIndex,
				"attempts":       attempts,
				"error":          sendErr.Error(),
			})
		}
		return
	}

	// Transient failure with budget left: push the step back into the index
	// at the backoff time instead of blocking the loop.
	delay := cnf.FollowUp.RetryBackoffBase() * (1 << (attempts - 1))
	nextDue := time.Now().Add(delay)

	var cancelled bool
	if err := s.retryStoreWrite(ctx, func() error {
		err := s.datasource.UpdateStepAttempt(ctx, step.StepID, attempts, nextDue)
		if apierror.Is(err, apierror.ErrNotFound) {
			// Step was cancelled while we were failing to send it.
			cancelled = true
			return nil
		}
		return err
	}); err != nil {
		return
	}
	if cancelled {
		return
	}

	step.AttemptCount = attempts
	step.DueAt = nextDue
	s.push(step)

	logrus.WithFields(logrus.Fields{
		"step_id": step.StepID,
		"attempt": attempts,
		"backoff": delay,
	}).Warn("follow-up delivery failed, retrying")
}

// scheduleSuccessor creates step i+1 after step i was sent, unless the
// sequence is exhausted or the user became terminal since the step fired.
func (s *Scheduler) scheduleSuccessor(ctx context.Context, step *model.FollowUpStep, cnf *config.Configuration) {
	next := step.SequenceIndex + 1
	if step.SequenceIndex >= cnf.FollowUp.MaxSequenceSteps || next > SequenceLength() {
		logrus.WithField("user_id", step.UserID).Info("follow-up sequence exhausted")
		return
	}

	usr, err := s.datasource.GetUserByID(ctx, step.UserID)
	if err != nil {
		notification.NotifyError(err)
		return
	}
	if usr.State.IsTerminal() {
		return
	}

	contentRef, err := ContentRefForStep(next)
	if err != nil {
		notification.NotifyError(err)
		return
	}

	minDelay, maxDelay := cnf.FollowUp.InterStepDelayBounds()
	successor := model.NewFollowUpStep(step.UserID, next, time.Now().Add(model.RandomStepDelay(minDelay, maxDelay)), contentRef)

	if err := s.datasource.CreateFollowUpStep(ctx, successor); err != nil {
		if apierror.Is(err, apierror.ErrAlreadyScheduled) {
			return
		}
		notification.NotifyError(err)
		return
	}

	s.push(successor)
}

func (s *Scheduler) push(step *model.FollowUpStep) {
	s.mu.Lock()
	heap.Push(&s.index, step)
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// PendingCount reports the size of the in-memory index.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}
