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
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/request"
)

// Messenger delivers funnel messages. The scheduler and the verification
// engine depend on this interface so tests can swap in a recorder.
type Messenger interface {
	Send(ctx context.Context, userID, contentRef string) error
	GrantAccess(ctx context.Context, userID string) error
}

// DeliveryError classifies a failed delivery. Transient failures (rate
// limits, upstream 5xx) are retried with backoff; permanent ones (user
// blocked the bot, chat gone) fail the step immediately.
type DeliveryError struct {
	StatusCode  int
	Description string
	Transient   bool
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("delivery failed (%s, status %d): %s", kind, e.StatusCode, e.Description)
}

// IsTransientDelivery reports whether err is a retryable delivery failure.
func IsTransientDelivery(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Transient
	}
	// Network-level failures (timeouts, refused connections) are retryable.
	return true
}

// TelegramClient talks to the Telegram Bot API over HTTP.
type TelegramClient struct {
	templates map[string]string
}

// NewTelegramClient builds the client with the follow-up catalog and the
// verification decision notices loaded as message templates.
func NewTelegramClient() *TelegramClient {
	templates := make(map[string]string)
	for _, entry := range SequenceCatalog() {
		templates[entry.ContentRef] = messageForTheme(entry.Theme)
	}
	for ref, text := range decisionNotices {
		templates[ref] = text
	}
	return &TelegramClient{templates: templates}
}

// decisionNotices are the user-facing messages sent when a verification
// submission resolves. Keyed by content ref, not by internal reason code.
var decisionNotices = map[string]string{
	"awaiting_artifact":         "🆔 Got your account ID!\n\nNow send a screenshot of your deposit to finish verification.",
	"awaiting_identifier":       "📸 Nice screenshot! We just need your account ID to go with it.\n\nSend the ID as a message and we'll verify you.",
	"review_ack":                "✅ Thanks! Your submission is in.\n\nOur team is reviewing it manually — you'll hear back shortly. No action needed from you.",
	"rejected_format":           "⚠️ That ID doesn't look right.\n\nPlease double-check your account ID (letters and numbers only) and send it again.",
	"rejected_invalid":          "❌ We couldn't verify that account ID.\n\nMake sure you're sending the ID from your own registered account, then try again.",
	"rejected_missing_artifact": "📸 Almost there! We still need a screenshot of your deposit.\n\nSend it here and we'll take another look.",
	"rejected_by_review":        "❌ Our team reviewed your submission and couldn't verify it.\n\nYou can submit a corrected account ID to try again.",
	"rejected_generic":          "❌ We couldn't verify your submission. Please try again with your registered account ID.",
}

type telegramResponse struct {
	Ok          bool    `json:"ok"`
	ErrorCode   int     `json:"error_code"`
	Description string  `json:"description"`
	Result      urlOnly `json:"result"`
}

type urlOnly struct {
	InviteLink string `json:"invite_link"`
}

// Send resolves contentRef to a template and posts it to the user's chat.
func (t *TelegramClient) Send(ctx context.Context, userID, contentRef string) error {
	text, ok := t.templates[contentRef]
	if !ok {
		// Unknown refs are not retryable; the catalog will not grow mid-flight.
		return &DeliveryError{Description: fmt.Sprintf("unknown content ref %s", contentRef)}
	}

	payload := map[string]interface{}{
		"chat_id":    userID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return t.call(ctx, "sendMessage", payload, nil)
}

// GrantAccess creates a single-use invite link to the premium channel and
// delivers it to the user.
func (t *TelegramClient) GrantAccess(ctx context.Context, userID string) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	var resp telegramResponse
	err = t.call(ctx, "createChatInviteLink", map[string]interface{}{
		"chat_id":      conf.Telegram.PremiumChannelID,
		"member_limit": 1,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Result.InviteLink == "" {
		return &DeliveryError{Description: "invite link missing from response"}
	}

	payload := map[string]interface{}{
		"chat_id": userID,
		"text": fmt.Sprintf("🎉 You're verified! Welcome to the premium channel.\n\nJoin here: %s\n\nQuestions? Reach out to @%s",
			resp.Result.InviteLink, conf.Telegram.AdminUsername),
	}
	return t.call(ctx, "sendMessage", payload, nil)
}

func (t *TelegramClient) call(ctx context.Context, method string, payload map[string]interface{}, out *telegramResponse) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	body, err := request.ToJsonReq(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", conf.Telegram.APIBaseURL, conf.Telegram.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return err
	}

	var resp telegramResponse
	httpResp, err := request.Call(req, &resp)
	if err != nil {
		if httpResp == nil {
			// Connection failure, classified transient by IsTransientDelivery.
			return err
		}
		return classifyStatus(httpResp.StatusCode, err.Error())
	}

	if !resp.Ok {
		status := resp.ErrorCode
		if status == 0 {
			status = httpResp.StatusCode
		}
		logrus.WithFields(logrus.Fields{
			"method": method,
			"status": status,
		}).Warn("telegram api call failed")
		return classifyStatus(status, resp.Description)
	}

	if out != nil {
		*out = resp
	}
	return nil
}

// classifyStatus maps Telegram error codes onto the retry policy: 429 and
// 5xx are transient, 403 (blocked) and the rest of 4xx are permanent.
func classifyStatus(status int, description string) error {
	transient := status == http.StatusTooManyRequests || status >= 500
	return &DeliveryError{
		StatusCode:  status,
		Description: description,
		Transient:   transient,
	}
}

func messageForTheme(theme string) string {
	switch theme {
	case "checking_in":
		return "Hey 👋 just checking in…\n\nYou haven't completed your free VIP access setup yet. Tap below to continue your registration. You're just one step away 👇"
	case "social_proof":
		return "🔥 Just an update…\n\nWe've already had dozens of traders activate their access this week. You're still eligible, but access may close soon once we hit this week's quota."
	case "value_recap":
		return "Quick recap of what you get with VIP access:\n\n✅ Daily signals\n✅ Auto trading bot\n✅ Bonus deposit rewards\n\nReady when you are 👇"
	case "personal_soft_cta":
		return "👀 You've been on our early access list for a few days…\n\nNo pressure — but if you want in, the door is still open."
	case "last_chance":
		return "⏳ Last call for this round of VIP access.\n\nIf now isn't the right time, you can opt out below and we'll stop the reminders."
	case "education_trust":
		return "📚 Did you know? Most of our members started with zero trading experience. The signals do the heavy lifting — you just follow along."
	case "humor_reactivation":
		return "😅 Okay, we get it — inboxes are busy.\n\nBut seriously, your free access is still sitting here unclaimed. Want it?"
	case "fomo_success_update":
		return "📈 Another strong week for the VIP group.\n\nYou could be part of the next one. Your access is still reserved."
	case "start_small_offer":
		return "💡 You don't need a big deposit to start — even the minimum gets you full signal access. Start small, scale later."
	case "hard_close":
		return "🚪 This is our final reminder about your reserved VIP slot.\n\nClaim it now or it goes to the next person on the waitlist."
	case "final_goodbye":
		return "That's a wrap from us. 👋\n\nYour slot is released, but you can restart anytime with /start. Good luck out there!"
	default:
		return "Your free VIP access is waiting — tap below to continue 👇"
	}
}
