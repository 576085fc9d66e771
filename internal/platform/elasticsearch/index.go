// File: internal/platform/elasticsearch/index.go
package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

const AnnouncementsIndexName = "announcements"

// defineAnnouncementsMapping returns the JSON string for the announcements
// index mapping.
func defineAnnouncementsMapping() (string, error) {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"title":           map[string]interface{}{"type": "text"},
				"content":         map[string]interface{}{"type": "text"},
				"slug":            map[string]interface{}{"type": "keyword"},
				"target_audience": map[string]interface{}{"type": "keyword"},
				"priority":        map[string]interface{}{"type": "keyword"},
				"category":        map[string]interface{}{"type": "keyword"},
				"tags":            map[string]interface{}{"type": "keyword"},
				"is_active":       map[string]interface{}{"type": "boolean"},
				"created_by":      map[string]interface{}{"type": "keyword"},
				"publish_at":      map[string]interface{}{"type": "date"},
				"expires_at":      map[string]interface{}{"type": "date"},
				"created_at":      map[string]interface{}{"type": "date"},
			},
		},
	}
	mappingBytes, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("error marshalling announcements mapping to JSON: %w", err)
	}
	return string(mappingBytes), nil
}

// CreateAnnouncementsIndexIfNotExists creates the announcements index with
// the defined mapping if it does not already exist. A nil client is a no-op.
func CreateAnnouncementsIndexIfNotExists(client *ESClientWrapper, logger *zap.Logger) error {
	if client == nil {
		return nil
	}
	ctx := context.Background()
	log := logger.Named("elasticsearch_index_setup")

	req := esapi.IndicesExistsRequest{
		Index: []string{AnnouncementsIndexName},
	}
	res, err := req.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error checking if announcements index exists", zap.Error(err))
		return fmt.Errorf("error checking if announcements index exists: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Info("Announcements index already exists", zap.String("index_name", AnnouncementsIndexName))
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error checking if announcements index exists: status %s", res.Status())
	}

	mappingJSON, err := defineAnnouncementsMapping()
	if err != nil {
		return err
	}

	createReq := esapi.IndicesCreateRequest{
		Index: AnnouncementsIndexName,
		Body:  strings.NewReader(mappingJSON),
	}
	createRes, err := createReq.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error creating announcements index", zap.Error(err))
		return fmt.Errorf("error creating announcements index %s: %w", AnnouncementsIndexName, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		var errorBody map[string]interface{}
		if decodeErr := json.NewDecoder(createRes.Body).Decode(&errorBody); decodeErr == nil {
			log.Error("Failed to create announcements index",
				zap.String("status", createRes.Status()),
				zap.Any("error_details", errorBody))
		}
		return fmt.Errorf("failed to create announcements index %s: status %s", AnnouncementsIndexName, createRes.Status())
	}

	log.Info("Announcements index created successfully", zap.String("index_name", AnnouncementsIndexName))
	return nil
}
