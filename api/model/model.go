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
package model

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

// ResolveEntry is the admin request to settle a manual-review queue entry.
type ResolveEntry struct {
	Resolver   string `json:"resolver"`
	Resolution string `json:"resolution"`
}

func (r *ResolveEntry) ValidateResolveEntry() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Resolver, validation.Required),
		validation.Field(&r.Resolution, validation.Required, validation.In("APPROVED", "REJECTED")),
	)
}

func (r *ResolveEntry) ToResolution() model.Resolution {
	return model.Resolution(strings.ToUpper(r.Resolution))
}

// SubmitVerification is the admin request to run the decision engine for a
// user directly, bypassing the Telegram ingress.
type SubmitVerification struct {
	UserID      string `json:"user_id"`
	Identifier  string `json:"identifier"`
	ArtifactRef string `json:"artifact_ref"`
}

func (s *SubmitVerification) ValidateSubmitVerification() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.UserID, validation.Required),
		validation.Field(&s.Identifier, validation.Required),
	)
}

// TelegramUpdate is the subset of the Telegram Bot API update payload the
// ingress translates into funnel events.
type TelegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Text  string `json:"text"`
		Photo []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
		Document *struct {
			FileID string `json:"file_id"`
		} `json:"document"`
	} `json:"message"`
	CallbackQuery *struct {
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Data string `json:"data"`
	} `json:"callback_query"`
}
