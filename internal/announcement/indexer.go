// File: internal/announcement/indexer.go
package announcement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/platform/elasticsearch"
)

// Indexer mirrors announcements into the search index. Every method is a
// no-op when search is disabled; the database stays the source of truth
// and indexing failures never fail the write that triggered them.
type Indexer struct {
	es     *elasticsearch.ESClientWrapper
	logger *zap.Logger
}

// NewIndexer creates an announcement search indexer. es may be nil.
func NewIndexer(es *elasticsearch.ESClientWrapper, logger *zap.Logger) *Indexer {
	return &Indexer{es: es, logger: logger.Named("AnnouncementIndexer")}
}

// Enabled reports whether a search backend is configured.
func (ix *Indexer) Enabled() bool {
	return ix != nil && ix.es != nil
}

type announcementDocument struct {
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Slug           string    `json:"slug"`
	TargetAudience string    `json:"target_audience"`
	Priority       string    `json:"priority"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	IsActive       bool      `json:"is_active"`
	CreatedBy      string    `json:"created_by"`
	PublishAt      time.Time `json:"publish_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Index upserts one announcement document.
func (ix *Indexer) Index(ctx context.Context, a *Announcement) {
	if !ix.Enabled() {
		return
	}
	doc := announcementDocument{
		Title:          a.Title,
		Content:        a.Content,
		Slug:           a.Slug,
		TargetAudience: string(a.TargetAudience),
		Priority:       string(a.Priority),
		Category:       string(a.Category),
		Tags:           a.Tags,
		IsActive:       a.IsActive,
		CreatedBy:      a.CreatedByID.String(),
		PublishAt:      a.PublishAt,
		CreatedAt:      a.CreatedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		ix.logger.Error("Failed to marshal announcement document", zap.Error(err))
		return
	}
	req := esapi.IndexRequest{
		Index:      elasticsearch.AnnouncementsIndexName,
		DocumentID: a.ID.String(),
		Body:       strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		ix.logger.Warn("Failed to index announcement",
			zap.String("announcement_id", a.ID.String()), zap.Error(err))
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		ix.logger.Warn("Announcement indexing returned an error",
			zap.String("announcement_id", a.ID.String()),
			zap.String("status", res.Status()))
	}
}

// Remove deletes one announcement document. Missing documents are fine.
func (ix *Indexer) Remove(ctx context.Context, id uuid.UUID) {
	if !ix.Enabled() {
		return
	}
	req := esapi.DeleteRequest{
		Index:      elasticsearch.AnnouncementsIndexName,
		DocumentID: id.String(),
	}
	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		ix.logger.Warn("Failed to remove announcement from index",
			zap.String("announcement_id", id.String()), zap.Error(err))
		return
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		ix.logger.Warn("Announcement index removal returned an error",
			zap.String("announcement_id", id.String()),
			zap.String("status", res.Status()))
	}
}

// Search runs a free-text query over title, content and tags and returns
// the matching announcement ids, best match first.
func (ix *Indexer) Search(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	if !ix.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	body := map[string]interface{}{
		"size":    limit,
		"_source": false,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content", "tags"},
			},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to build announcement search query: %w", err)
	}
	res, err := ix.es.Search(
		ix.es.Search.WithContext(ctx),
		ix.es.Search.WithIndex(elasticsearch.AnnouncementsIndexName),
		ix.es.Search.WithBody(strings.NewReader(string(encoded))),
	)
	if err != nil {
		return nil, fmt.Errorf("announcement search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("announcement search returned %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode announcement search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			ix.logger.Warn("Skipping search hit with non-uuid id", zap.String("id", hit.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
