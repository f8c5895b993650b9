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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/model"
)

func TestValidateResolveEntry(t *testing.T) {
	valid := ResolveEntry{Resolver: "admin_jo", Resolution: "APPROVED"}
	assert.NoError(t, valid.ValidateResolveEntry())

	missingResolver := ResolveEntry{Resolution: "APPROVED"}
	assert.Error(t, missingResolver.ValidateResolveEntry())

	badResolution := ResolveEntry{Resolver: "admin_jo", Resolution: "MAYBE"}
	assert.Error(t, badResolution.ValidateResolveEntry())
}

func TestResolveEntryToResolution(t *testing.T) {
	r := ResolveEntry{Resolver: "admin_jo", Resolution: "rejected"}
	assert.Equal(t, model.ResolutionRejected, r.ToResolution())
}

func TestValidateSubmitVerification(t *testing.T) {
	valid := SubmitVerification{UserID: "usr_1", Identifier: "ABC12345"}
	assert.NoError(t, valid.ValidateSubmitVerification())

	missingIdentifier := SubmitVerification{UserID: "usr_1"}
	assert.Error(t, missingIdentifier.ValidateSubmitVerification())
}

func TestTelegramUpdateParsing(t *testing.T) {
	payload := `{
		"update_id": 12345,
		"message": {
			"from": {"id": 987654321},
			"text": "ABC12345",
			"photo": [
				{"file_id": "small"},
				{"file_id": "large"}
			]
		}
	}`

	var update TelegramUpdate
	require.NoError(t, json.Unmarshal([]byte(payload), &update))

	require.NotNil(t, update.Message)
	require.NotNil(t, update.Message.From)
	assert.Equal(t, int64(987654321), update.Message.From.ID)
	assert.Equal(t, "ABC12345", update.Message.Text)
	require.Len(t, update.Message.Photo, 2)
	assert.Equal(t, "large", update.Message.Photo[1].FileID)
	assert.Nil(t, update.CallbackQuery)
}

func TestTelegramUpdateCallbackParsing(t *testing.T) {
	payload := `{
		"update_id": 12346,
		"callback_query": {
			"from": {"id": 555},
			"data": "opt_out"
		}
	}`

	var update TelegramUpdate
	require.NoError(t, json.Unmarshal([]byte(payload), &update))

	require.NotNil(t, update.CallbackQuery)
	assert.Equal(t, int64(555), update.CallbackQuery.From.ID)
	assert.Equal(t, "opt_out", update.CallbackQuery.Data)
}
