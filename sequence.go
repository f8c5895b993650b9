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

import "fmt"

// SequenceEntry maps one step of the follow-up sequence to its message
// content. The scheduler treats ContentRef as opaque; the messaging
// collaborator resolves it to a template.
type SequenceEntry struct {
	Index      int    `json:"index"`
	ContentRef string `json:"content_ref"`
	Theme      string `json:"theme"`
}

// sequenceThemes drives the catalog. The first ten entries follow the
// campaign's original arc; later steps cycle re-engagement angles until the
// sequence exhausts.
var sequenceThemes = []string{
	"checking_in",
	"social_proof",
	"value_recap",
	"personal_soft_cta",
	"last_chance",
	"education_trust",
	"humor_reactivation",
	"fomo_success_update",
	"start_small_offer",
	"hard_close",
	"value_recap",
	"social_proof",
	"education_trust",
	"fomo_success_update",
	"personal_soft_cta",
	"humor_reactivation",
	"start_small_offer",
	"checking_in",
	"social_proof",
	"value_recap",
	"fomo_success_update",
	"last_chance",
	"start_small_offer",
	"final_goodbye",
}

// SequenceCatalog returns the full follow-up catalog, indexed 1..n. Content
// refs are stable keys ("followup_3"); renumbering a live catalog would
// orphan steps already persisted.
func SequenceCatalog() []SequenceEntry {
	entries := make([]SequenceEntry, 0, len(sequenceThemes))
	for i, theme := range sequenceThemes {
		entries = append(entries, SequenceEntry{
			Index:      i + 1,
			ContentRef: fmt.Sprintf("followup_%d", i+1),
			Theme:      theme,
		})
	}
	return entries
}

// ContentRefForStep resolves a sequence index to its catalog key. Indexes
// outside the catalog return an error rather than a guessed ref.
func ContentRefForStep(index int) (string, error) {
	if index < 1 || index > len(sequenceThemes) {
		return "", fmt.Errorf("sequence index %d outside catalog range 1..%d", index, len(sequenceThemes))
	}
	return fmt.Sprintf("followup_%d", index), nil
}

// SequenceLength reports the number of steps in the catalog.
func SequenceLength() int {
	return len(sequenceThemes)
}
