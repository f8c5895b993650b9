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

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT"
	model2 "github.com/Fmsticks2/OPTRIXTRADESADMINBOT/api/model"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/database/mocks"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(&s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockDataSource) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})
	ds := new(mocks.MockDataSource)
	newBot, err := bot.NewBot(ds)
	require.NoError(t, err)
	return NewAPI(newBot).Router(), ds
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestGetUser(t *testing.T) {
	router, ds := setupRouter(t)

	usr := &model.User{
		UserID:     gofakeit.UUID(),
		State:      model.StateAwaitingIdentifier,
		Identifier: gofakeit.LetterN(10),
		CreatedAt:  time.Now(),
	}
	ds.On("GetUserByID", mock.Anything, usr.UserID).Return(usr, nil)

	var response model.User
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    fmt.Sprintf("/users/%s", usr.UserID),
		Router:   router,
		Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, usr.UserID, response.UserID)
	assert.Equal(t, model.StateAwaitingIdentifier, response.State)
	ds.AssertExpectations(t)
}

func TestGetUser_NotFound(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("GetUserByID", mock.Anything, "usr_missing").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil))

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/users/usr_missing",
		Router:   router,
		Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, response["error"], "User not found")
}

func TestGetReviewQueue(t *testing.T) {
	router, ds := setupRouter(t)

	entries := []model.AdminQueueEntry{
		{EntryID: gofakeit.UUID(), RequestID: gofakeit.UUID(), UserID: gofakeit.UUID(), EnqueuedAt: time.Now()},
		{EntryID: gofakeit.UUID(), RequestID: gofakeit.UUID(), UserID: gofakeit.UUID(), EnqueuedAt: time.Now()},
	}
	ds.On("GetOpenAdminQueueEntries", mock.Anything, 50, 0).Return(entries, nil)

	var response []model.AdminQueueEntry
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/admin/queue",
		Router:   router,
		Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 2)
	assert.Equal(t, entries[0].EntryID, response[0].EntryID)
	ds.AssertExpectations(t)
}

func TestResolveReviewEntry_InvalidResolution(t *testing.T) {
	router, ds := setupRouter(t)

	payload := model2.ResolveEntry{
		Resolver:   gofakeit.Username(),
		Resolution: "MAYBE",
	}

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "POST",
		Route:    "/admin/queue/adq_1/resolve",
		Payload:  jsonBody(t, payload),
		Router:   router,
		Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ds.AssertNotCalled(t, "ResolveAdminQueueEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitVerification_MissingUserID(t *testing.T) {
	router, ds := setupRouter(t)

	payload := model2.SubmitVerification{
		Identifier: gofakeit.LetterN(10),
	}

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "POST",
		Route:    "/verifications",
		Payload:  jsonBody(t, payload),
		Router:   router,
		Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ds.AssertNotCalled(t, "RecordVerificationRequest", mock.Anything, mock.Anything)
}

func TestTelegramWebhook_StartCommand(t *testing.T) {
	router, ds := setupRouter(t)

	created := &model.User{UserID: "5551234", State: model.StateAwaitingIdentifier, CreatedAt: time.Now()}
	ds.On("GetUserByID", mock.Anything, "5551234").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", nil))
	ds.On("CreateUser", mock.Anything, mock.Anything).Return(created, nil)
	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "5551234", mock.Anything).Return(nil)
	ds.On("CreateFollowUpStep", mock.Anything, mock.Anything).Return(nil)

	body := `{"update_id":1,"message":{"message_id":10,"from":{"id":5551234},"text":"/start"}}`

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "POST",
		Route:    "/webhook/telegram",
		Payload:  bytes.NewReader([]byte(body)),
		Router:   router,
		Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, response["ok"])
	ds.AssertExpectations(t)
}

func TestTelegramWebhook_OptOutCallback(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("RecordInteraction", mock.Anything, mock.Anything).Return(nil)
	ds.On("TouchUser", mock.Anything, "5551234", mock.Anything).Return(nil)
	ds.On("CancelPendingSteps", mock.Anything, "5551234", model.StateOptedOut).Return(int64(3), nil)

	body := `{"update_id":2,"callback_query":{"id":"cbq","from":{"id":5551234},"data":"opt_out"}}`

	resp, err := SetUpTestRequest(TestRequest{
		Method:  "POST",
		Route:   "/webhook/telegram",
		Payload: bytes.NewReader([]byte(body)),
		Router:  router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	ds.AssertExpectations(t)
}
