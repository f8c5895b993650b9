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
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/Fmsticks2/OPTRIXTRADESADMINBOT/api/model"
)

// TelegramWebhook translates Telegram updates into funnel events. Telegram
// retries undelivered updates, so the handler always answers 200 once the
// payload parses; event-level failures are logged and alerted internally.
func (a Api) TelegramWebhook(c *gin.Context) {
	var update model2.TelegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	ctx := c.Request.Context()

	switch {
	case update.CallbackQuery != nil:
		userID := strconv.FormatInt(update.CallbackQuery.From.ID, 10)
		switch update.CallbackQuery.Data {
		case "start", "restart":
			_, err := a.bot.OnNewUser(ctx, userID)
			a.logEventError("new_user", userID, err)
		case "opt_out":
			err := a.bot.OnOptOut(ctx, userID)
			a.logEventError("opt_out", userID, err)
		}

	case update.Message != nil && update.Message.From != nil:
		userID := strconv.FormatInt(update.Message.From.ID, 10)
		switch {
		case strings.HasPrefix(update.Message.Text, "/start"):
			_, err := a.bot.OnNewUser(ctx, userID)
			a.logEventError("new_user", userID, err)
		case strings.HasPrefix(update.Message.Text, "/stop"):
			err := a.bot.OnOptOut(ctx, userID)
			a.logEventError("opt_out", userID, err)
		case len(update.Message.Photo) > 0:
			// Telegram sends photos in ascending resolution; index the largest.
			fileID := update.Message.Photo[len(update.Message.Photo)-1].FileID
			_, err := a.bot.OnArtifactSubmitted(ctx, userID, fileID)
			a.logEventError("artifact_submitted", userID, err)
		case update.Message.Document != nil:
			_, err := a.bot.OnArtifactSubmitted(ctx, userID, update.Message.Document.FileID)
			a.logEventError("artifact_submitted", userID, err)
		case update.Message.Text != "":
			_, err := a.bot.OnIdentifierSubmitted(ctx, userID, strings.TrimSpace(update.Message.Text))
			a.logEventError("identifier_submitted", userID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a Api) logEventError(event, userID string, err error) {
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"event":   event,
			"user_id": userID,
		}).Errorf("inbound event failed: %v", err)
	}
}
