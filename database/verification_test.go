package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

func TestRecordVerificationRequest_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	req := &model.VerificationRequest{
		RequestID:   "req_1",
		UserID:      "usr_123",
		Identifier:  "abc12345",
		SubmittedAt: time.Now(),
		Decision:    model.DecisionAutoApproved,
		Confidence:  0.85,
		Reason:      model.ReasonApproved,
	}

	mock.ExpectExec("INSERT INTO verification_requests").
		WithArgs(req.RequestID, req.UserID, req.Identifier, req.ArtifactRef, req.SubmittedAt, req.Decision, req.Confidence, req.Reason).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordVerificationRequest(context.Background(), req)
	assert.NoError(t, err)

	err = mock.ExpectationsWereMet()
	assert.NoError(t, err)
}

func TestGetOpenAdminQueueEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"entry_id", "request_id", "user_id", "enqueued_at", "resolved_at", "resolver", "resolution"}).
		AddRow("adq_1", "req_1", "usr_a", now, nil, nil, nil).
		AddRow("adq_2", "req_2", "usr_b", now.Add(time.Minute), nil, nil, nil)

	mock.ExpectQuery("SELECT entry_id, request_id, user_id").
		WithArgs(50, 0).
		WillReturnRows(rows)

	entries, err := ds.GetOpenAdminQueueEntries(context.Background(), 50, 0)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "adq_1", entries[0].EntryID)
	assert.False(t, entries[0].Resolved())
}

func TestResolveAdminQueueEntry_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE admin_queue").
		WithArgs("adq_1", sqlmock.AnyArg(), "admin_7", model.ResolutionApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	row := sqlmock.NewRows([]string{"entry_id", "request_id", "user_id", "enqueued_at", "resolved_at", "resolver", "resolution"}).
		AddRow("adq_1", "req_1", "usr_a", now.Add(-time.Hour), now, "admin_7", "APPROVED")

	mock.ExpectQuery("SELECT entry_id, request_id, user_id").
		WithArgs("adq_1").
		WillReturnRows(row)

	entry, err := ds.ResolveAdminQueueEntry(context.Background(), "adq_1", "admin_7", model.ResolutionApproved)
	assert.NoError(t, err)
	assert.True(t, entry.Resolved())
	assert.Equal(t, "admin_7", entry.Resolver)
	assert.Equal(t, model.ResolutionApproved, entry.Resolution)
}

func TestResolveAdminQueueEntry_AlreadyResolved(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE admin_queue").
		WithArgs("adq_1", sqlmock.AnyArg(), "admin_9", model.ResolutionRejected).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	row := sqlmock.NewRows([]string{"entry_id", "request_id", "user_id", "enqueued_at", "resolved_at", "resolver", "resolution"}).
		AddRow("adq_1", "req_1", "usr_a", now.Add(-time.Hour), now, "admin_7", "APPROVED")

	mock.ExpectQuery("SELECT entry_id, request_id, user_id").
		WithArgs("adq_1").
		WillReturnRows(row)

	_, err = ds.ResolveAdminQueueEntry(context.Background(), "adq_1", "admin_9", model.ResolutionRejected)
	assert.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrAlreadyResolved))
}

func TestRecordInteraction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	i := &model.Interaction{
		UserID:    "usr_123",
		Kind:      "followup_sent",
		Data:      "followup_1",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO interactions").
		WithArgs(i.UserID, i.Kind, sqlmock.AnyArg(), i.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordInteraction(context.Background(), i)
	assert.NoError(t, err)
}
