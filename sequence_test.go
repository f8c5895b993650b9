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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCatalog(t *testing.T) {
	catalog := SequenceCatalog()
	require.Len(t, catalog, 24)

	seen := make(map[string]bool)
	for i, entry := range catalog {
		assert.Equal(t, i+1, entry.Index)
		assert.Equal(t, fmt.Sprintf("followup_%d", i+1), entry.ContentRef)
		assert.NotEmpty(t, entry.Theme)
		assert.False(t, seen[entry.ContentRef], "duplicate content ref %s", entry.ContentRef)
		seen[entry.ContentRef] = true
	}
}

func TestContentRefForStep(t *testing.T) {
	ref, err := ContentRefForStep(1)
	require.NoError(t, err)
	assert.Equal(t, "followup_1", ref)

	ref, err = ContentRefForStep(24)
	require.NoError(t, err)
	assert.Equal(t, "followup_24", ref)

	_, err = ContentRefForStep(0)
	assert.Error(t, err)

	_, err = ContentRefForStep(25)
	assert.Error(t, err)
}

func TestEveryCatalogEntryHasTemplate(t *testing.T) {
	client := NewTelegramClient()
	for _, entry := range SequenceCatalog() {
		_, ok := client.templates[entry.ContentRef]
		assert.True(t, ok, "missing template for %s", entry.ContentRef)
	}
	for ref := range decisionNotices {
		_, ok := client.templates[ref]
		assert.True(t, ok, "missing template for %s", ref)
	}
}
