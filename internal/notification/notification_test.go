package notification

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
)

func TestSlackNotification(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	cnf := &config.Configuration{}
	cnf.Notification.Slack.WebhookUrl = srv.URL
	config.MockConfig(cnf)

	SlackNotification(errors.New("dispatch loop stalled"))

	body := <-received
	assert.Contains(t, body, "dispatch loop stalled")
}

func TestSlackReviewAlert(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	cnf := &config.Configuration{}
	cnf.Notification.Slack.WebhookUrl = srv.URL
	config.MockConfig(cnf)

	SlackReviewAlert("usr_123", 0.65, 4)

	body := <-received
	assert.Contains(t, body, "usr_123")
	assert.Contains(t, body, "0.65")
}

func TestSlackNotification_NoWebhookConfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	// Must be a no-op without a webhook URL.
	SlackNotification(errors.New("ignored"))
}
