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

package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/request"
)

// SlackNotification sends an error message to the configured Slack webhook.
func SlackNotification(err error) {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "Error From OPTRIXTRADES Bot 🐞",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Error:*\n%v"
					}
				]
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Time:*\n%v"
					}
				]
			}
		]
	}`, err.Error(), time.Now().Format(time.RFC822)))

	postToSlack(data)
}

// SlackReviewAlert posts a manual-review notice so admins pick up queue
// entries without polling. queueSize is the number of unresolved entries
// after this one was added.
func SlackReviewAlert(userID string, confidence float64, queueSize int64) {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "Verification needs review 📋",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*User:*\n%s"
					},
					{
						"type": "mrkdwn",
						"text": "*Confidence:*\n%.2f"
					},
					{
						"type": "mrkdwn",
						"text": "*Open entries:*\n%d"
					}
				]
			}
		]
	}`, userID, confidence, queueSize))

	postToSlack(data)
}

func postToSlack(data json.RawMessage) {
	conf, err := config.Fetch()
	if err != nil {
		log.Println(err)
		return
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}

	payload, err := request.ToJsonReq(&data)
	if err != nil {
		log.Println(err)
		return
	}

	req, err := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, payload)
	if err != nil {
		log.Println(err)
		return
	}

	var response map[string]interface{}
	_, err = request.Call(req, &response)
	if err != nil {
		log.Println(err)
	}
}

// NotifyError logs the error and forwards it to Slack when configured. Runs
// asynchronously so notification latency never blocks the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}
	}(systemError)
}

// NotifyManualReview alerts admins about a new review entry when enabled.
func NotifyManualReview(userID string, confidence float64, queueSize int64) {
	go func() {
		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}
		if !conf.Notification.NotifyOnManualReview {
			return
		}
		SlackReviewAlert(userID, confidence, queueSize)
		if conf.Notification.QueueWarningSize > 0 && queueSize >= int64(conf.Notification.QueueWarningSize) {
			logrus.Warnf("admin review queue has %d open entries", queueSize)
		}
	}()
}
