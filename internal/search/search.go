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

package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
)

const (
	CollectionUsers         = "users"
	CollectionVerifications = "verification_requests"
	CollectionInteractions  = "interactions"
)

// CollectionConfig holds indexing configuration for one collection.
type CollectionConfig struct {
	Schema     *api.CollectionSchema
	IDField    string
	TimeFields []string
}

var collectionConfigs map[string]CollectionConfig

func init() {
	collectionConfigs = map[string]CollectionConfig{
		CollectionUsers: {
			Schema:     getUserSchema(),
			IDField:    "user_id",
			TimeFields: []string{"created_at", "last_interaction_at"},
		},
		CollectionVerifications: {
			Schema:     getVerificationSchema(),
			IDField:    "request_id",
			TimeFields: []string{"submitted_at"},
		},
		CollectionInteractions: {
			Schema:     getInteractionSchema(),
			IDField:    "",
			TimeFields: []string{"created_at"},
		},
	}
}

// TypesenseClient wraps the Typesense client. The admin search commands
// (/searchuser and the review dashboard) query it; the index queue worker
// feeds it.
type TypesenseClient struct {
	Client *typesense.Client
}

// NewTypesenseClient initializes and returns a new Typesense client instance.
func NewTypesenseClient(apiKey string, hosts []string) *TypesenseClient {
	client := typesense.NewClient(
		typesense.WithServer(hosts[0]),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
		typesense.WithCircuitBreakerMaxRequests(50),
		typesense.WithCircuitBreakerInterval(2*time.Minute),
		typesense.WithCircuitBreakerTimeout(1*time.Minute),
	)
	return &TypesenseClient{Client: client}
}

// EnsureCollectionsExist creates any missing collections from the latest
// schemas. Existing collections are left untouched.
func (t *TypesenseClient) EnsureCollectionsExist(ctx context.Context) error {
	for name, config := range collectionConfigs {
		if _, err := t.CreateCollection(ctx, config.Schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// CreateCollection creates a collection in Typesense based on the provided
// schema. An already existing collection is not an error.
func (t *TypesenseClient) CreateCollection(ctx context.Context, schema *api.CollectionSchema) (*api.CollectionResponse, error) {
	resp, err := t.Client.Collections().Create(ctx, schema)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

// Search performs a search query on a specific collection.
func (t *TypesenseClient) Search(ctx context.Context, collection string, searchParams *api.SearchCollectionParams) (*api.SearchResult, error) {
	return t.Client.Collection(collection).Documents().Search(ctx, searchParams)
}

// HandleNotification upserts a record from the index queue into its
// collection, normalizing time fields and filling schema defaults first.
func (t *TypesenseClient) HandleNotification(ctx context.Context, table string, data map[string]interface{}) error {
	config, ok := collectionConfigs[table]
	if !ok {
		return fmt.Errorf("unknown collection: %s", table)
	}

	t.ensureSchemaFields(config, data)
	t.normalizeTimeFields(config, data)

	return t.upsertDocument(ctx, table, data)
}

func (t *TypesenseClient) ensureSchemaFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.Schema.Fields {
		if _, ok := data[field.Name]; !ok {
			isOptional := field.Optional != nil && *field.Optional
			if !isOptional {
				data[field.Name] = getDefaultValue(field.Type)
			}
		}
	}
}

func (t *TypesenseClient) normalizeTimeFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.TimeFields {
		if fieldValue, ok := data[field]; ok {
			switch v := fieldValue.(type) {
			case time.Time:
				data[field] = v.Unix()
			case string:
				if parsed, err := time.Parse(time.RFC3339, v); err == nil {
					data[field] = parsed.Unix()
				} else {
					data[field] = time.Now().Unix()
				}
			case int64:
				// Already a Unix timestamp.
			case float64:
				data[field] = int64(v)
			default:
				data[field] = time.Now().Unix()
			}
		}
	}
}

func (t *TypesenseClient) upsertDocument(ctx context.Context, table string, data map[string]interface{}) error {
	idField := collectionConfigs[table].IDField

	if idField != "" {
		if id, ok := data[idField].(string); ok && id != "" {
			data["id"] = id
		}
	}

	_, err := t.Client.Collection(table).Documents().Upsert(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to upsert document in Typesense: %w", err)
	}
	return nil
}

func getDefaultValue(fieldType string) interface{} {
	switch fieldType {
	case "string":
		return ""
	case "int32", "int64":
		return int64(0)
	case "float":
		return float64(0)
	case "bool":
		return false
	case "string[]":
		return []string{}
	default:
		return nil
	}
}

func getUserSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	optional := true
	return &api.CollectionSchema{
		Name: CollectionUsers,
		Fields: []api.Field{
			{Name: "user_id", Type: "string", Facet: &facet},
			{Name: "state", Type: "string", Facet: &facet},
			{Name: "identifier", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "created_at", Type: "int64", Facet: &facet},
			{Name: "last_interaction_at", Type: "int64", Facet: &facet},
		},
		DefaultSortingField: &sortBy,
	}
}

func getVerificationSchema() *api.CollectionSchema {
	facet := true
	sortBy := "submitted_at"
	return &api.CollectionSchema{
		Name: CollectionVerifications,
		Fields: []api.Field{
			{Name: "request_id", Type: "string", Facet: &facet},
			{Name: "user_id", Type: "string", Facet: &facet},
			{Name: "identifier", Type: "string", Facet: &facet},
			{Name: "decision", Type: "string", Facet: &facet},
			{Name: "confidence_score", Type: "float", Facet: &facet},
			{Name: "reason", Type: "string", Facet: &facet},
			{Name: "submitted_at", Type: "int64", Facet: &facet},
		},
		DefaultSortingField: &sortBy,
	}
}

func getInteractionSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	optional := true
	return &api.CollectionSchema{
		Name: CollectionInteractions,
		Fields: []api.Field{
			{Name: "user_id", Type: "string", Facet: &facet},
			{Name: "interaction_type", Type: "string", Facet: &facet},
			{Name: "interaction_data", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "created_at", Type: "int64", Facet: &facet},
		},
		DefaultSortingField: &sortBy,
	}
}
