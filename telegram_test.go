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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
)

func newTelegramTestServer(t *testing.T, handler http.HandlerFunc) *TelegramClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config.MockConfig(&config.Configuration{
		Telegram: config.TelegramConfig{
			BotToken:         "test-token",
			APIBaseURL:       server.URL,
			PremiumChannelID: "-100123",
			AdminUsername:    "optrix_admin",
		},
	})
	return NewTelegramClient()
}

func TestSend_DeliversTemplate(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	client := newTelegramTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	})

	err := client.Send(context.Background(), "12345", "followup_1")
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotPayload["chat_id"])
	assert.NotEmpty(t, gotPayload["text"])
}

func TestSend_UnknownContentRefIsPermanent(t *testing.T) {
	client := newTelegramTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for unknown content ref")
	})

	err := client.Send(context.Background(), "12345", "no_such_ref")
	require.Error(t, err)
	assert.False(t, IsTransientDelivery(err))
}

func TestSend_RateLimitIsTransient(t *testing.T) {
	client := newTelegramTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": false, "error_code": 429, "description": "Too Many Requests",
		})
	})

	err := client.Send(context.Background(), "12345", "followup_1")
	require.Error(t, err)
	assert.True(t, IsTransientDelivery(err))
}

func TestSend_BlockedByUserIsPermanent(t *testing.T) {
	client := newTelegramTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": false, "error_code": 403, "description": "Forbidden: bot was blocked by the user",
		})
	})

	err := client.Send(context.Background(), "12345", "followup_1")
	require.Error(t, err)
	assert.False(t, IsTransientDelivery(err))
}

func TestGrantAccess_SendsInviteLink(t *testing.T) {
	var calls []string
	client := newTelegramTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case "/bottest-token/createChatInviteLink":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":     true,
				"result": map[string]interface{}{"invite_link": "https://t.me/+abc"},
			})
		case "/bottest-token/sendMessage":
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Contains(t, payload["text"], "https://t.me/+abc")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	err := client.GrantAccess(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bottest-token/createChatInviteLink", "/bottest-token/sendMessage"}, calls)
}

func TestIsTransientDelivery_NetworkErrors(t *testing.T) {
	assert.True(t, IsTransientDelivery(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransientDelivery(&DeliveryError{StatusCode: 502, Transient: true}))
	assert.False(t, IsTransientDelivery(&DeliveryError{StatusCode: 400}))
}
