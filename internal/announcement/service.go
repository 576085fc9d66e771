// File: internal/announcement/service.go
package announcement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/shared"
)

// CreateRequest carries admin input for a new announcement.
type CreateRequest struct {
	Title           string         `json:"title" binding:"required,max=200"`
	Content         string         `json:"content" binding:"required,max=5000"`
	ContentRichText *string        `json:"content_rich_text"`
	TargetAudience  TargetAudience `json:"target_audience"`
	Priority        Priority       `json:"priority"`
	Category        Category       `json:"category"`
	Tags            []string       `json:"tags"`
	Attachments     []Attachment   `json:"attachments"`
	PublishAt       *time.Time     `json:"publish_at"`
	ExpiresAt       *time.Time     `json:"expires_at"`
}

// UpdateRequest is a partial patch. Only non-nil fields are applied, and
// created-by and total-reads can never be written through it.
type UpdateRequest struct {
	Title           *string         `json:"title" binding:"omitempty,max=200"`
	Content         *string         `json:"content" binding:"omitempty,max=5000"`
	ContentRichText *string         `json:"content_rich_text"`
	TargetAudience  *TargetAudience `json:"target_audience"`
	Priority        *Priority       `json:"priority"`
	Category        *Category       `json:"category"`
	Tags            *[]string       `json:"tags"`
	Attachments     *[]Attachment   `json:"attachments"`
	IsActive        *bool           `json:"is_active"`
	PublishAt       *time.Time      `json:"publish_at"`
	ExpiresAt       *time.Time      `json:"expires_at"`
}

// UserView decorates an announcement with the caller's read state.
type UserView struct {
	Announcement
	IsRead bool       `json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// AdminView decorates an announcement with its reader count.
type AdminView struct {
	Announcement
	ReadCount int64 `json:"read_count"`
}

// UnreadSummary is the per-priority unread breakdown for one user.
type UnreadSummary struct {
	Total      int64              `json:"total"`
	ByPriority map[Priority]int64 `json:"by_priority"`
	Urgent     int64              `json:"urgent"`
	High       int64              `json:"high"`
	Normal     int64              `json:"normal"`
	Low        int64              `json:"low"`
}

// Stats is the full analytics view of one announcement. UniqueReaders is
// recomputed from the ledger; the stored TotalReads counter is advisory.
type Stats struct {
	AnnouncementID     uuid.UUID `json:"announcement_id"`
	Title              string    `json:"title"`
	ReadStats
	UniqueReaders      int64  `json:"unique_readers"`
	TargetAudienceSize int64  `json:"target_audience_size"`
	ReachPercentage    string `json:"reach_percentage"`
}

// Service covers announcement management, visibility-filtered listings,
// the idempotent read ledger, and read analytics. Mutations are admin only.
type Service interface {
	Create(ctx context.Context, caller *shared.User, req CreateRequest) (*Announcement, error)
	ListForUser(ctx context.Context, user *shared.User, filters ListFilters, page, pageSize int) ([]UserView, *common.Pagination, error)
	ListForAdmin(ctx context.Context, caller *shared.User, filters AdminFilters, query string, page, pageSize int) ([]AdminView, *common.Pagination, error)
	Update(ctx context.Context, caller *shared.User, id uuid.UUID, req UpdateRequest) (*Announcement, error)
	Delete(ctx context.Context, caller *shared.User, id uuid.UUID) error
	MarkAsRead(ctx context.Context, user *shared.User, id uuid.UUID, interaction Interaction, timeSpent int64, device DeviceInfo) (*AnnouncementRead, error)
	UnreadCount(ctx context.Context, user *shared.User) (*UnreadSummary, error)
	ArchiveExpired(ctx context.Context, caller *shared.User) (int64, error)
	StatsFor(ctx context.Context, caller *shared.User, id uuid.UUID) (*Stats, error)
}

type serviceImpl struct {
	repo      Repository
	ledger    Ledger
	indexer   *Indexer
	directory shared.Directory
	logger    *zap.Logger
}

// NewService creates a new announcement service.
func NewService(repo Repository, ledger Ledger, indexer *Indexer, directory shared.Directory, logger *zap.Logger) Service {
	return &serviceImpl{
		repo:      repo,
		ledger:    ledger,
		indexer:   indexer,
		directory: directory,
		logger:    logger.Named("AnnouncementService"),
	}
}

func requireAdmin(caller *shared.User, action string) error {
	if caller == nil || !caller.IsAdmin {
		return common.ErrForbidden.WithDetails("Only administrators can " + action + ".")
	}
	return nil
}

// uniqueSlug derives a URL slug from the title, suffixing a counter when
// the plain form is taken.
func (s *serviceImpl) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "announcement"
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		if i > 50 {
			// Pathological collision run; fall back to a random suffix.
			return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// Create persists a new announcement authored by an admin.
func (s *serviceImpl) Create(ctx context.Context, caller *shared.User, req CreateRequest) (*Announcement, error) {
	if err := requireAdmin(caller, "create announcements"); err != nil {
		return nil, err
	}
	if req.TargetAudience == "" {
		req.TargetAudience = AudienceAll
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if req.Category == "" {
		req.Category = CategoryGeneral
	}
	if !req.TargetAudience.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown target audience: %s", req.TargetAudience))
	}
	if !req.Priority.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown priority: %s", req.Priority))
	}
	if !req.Category.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown category: %s", req.Category))
	}

	slugValue, err := s.uniqueSlug(ctx, req.Title)
	if err != nil {
		return nil, err
	}

	a := &Announcement{
		Title:           req.Title,
		Slug:            slugValue,
		Content:         req.Content,
		ContentRichText: req.ContentRichText,
		TargetAudience:  req.TargetAudience,
		Priority:        req.Priority,
		Category:        req.Category,
		Tags:            req.Tags,
		Attachments:     req.Attachments,
		IsActive:        true,
		CreatedByID:     caller.ID,
		PublishAt:       time.Now().UTC(),
	}
	if req.PublishAt != nil {
		a.PublishAt = *req.PublishAt
	}
	a.ExpiresAt = req.ExpiresAt

	if err := s.repo.Create(ctx, a); err != nil {
		s.logger.Error("Failed to create announcement", zap.String("title", req.Title), zap.Error(err))
		return nil, err
	}
	s.indexer.Index(ctx, a)
	s.logger.Info("Announcement created",
		zap.String("announcement_id", a.ID.String()),
		zap.String("target_audience", string(a.TargetAudience)),
		zap.String("priority", string(a.Priority)))
	return a, nil
}

// ListForUser lists visible announcements decorated with read state.
func (s *serviceImpl) ListForUser(ctx context.Context, user *shared.User, filters ListFilters, page, pageSize int) ([]UserView, *common.Pagination, error) {
	if filters.Priority != "" && !filters.Priority.Valid() {
		return nil, nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown priority: %s", filters.Priority))
	}
	if filters.Category != "" && !filters.Category.Valid() {
		return nil, nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown category: %s", filters.Category))
	}

	announcements, pagination, err := s.repo.FindVisibleFor(ctx, user, filters, page, pageSize)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, 0, len(announcements))
	for i := range announcements {
		ids = append(ids, announcements[i].ID)
	}
	readTimes, err := s.ledger.ReadTimesFor(ctx, user.ID, ids)
	if err != nil {
		return nil, nil, err
	}

	views := make([]UserView, 0, len(announcements))
	for i := range announcements {
		view := UserView{Announcement: announcements[i]}
		if readAt, ok := readTimes[announcements[i].ID]; ok {
			view.IsRead = true
			t := readAt
			view.ReadAt = &t
		}
		views = append(views, view)
	}
	return views, pagination, nil
}

// ListForAdmin lists announcements for management. A non-empty query runs
// through the search index when one is configured; otherwise it is ignored
// and the database listing is returned.
func (s *serviceImpl) ListForAdmin(ctx context.Context, caller *shared.User, filters AdminFilters, query string, page, pageSize int) ([]AdminView, *common.Pagination, error) {
	if err := requireAdmin(caller, "access all announcements"); err != nil {
		return nil, nil, err
	}

	var (
		announcements []Announcement
		pagination    *common.Pagination
		err           error
	)
	if query != "" && s.indexer.Enabled() {
		announcements, pagination, err = s.searchForAdmin(ctx, query, page, pageSize)
	} else {
		announcements, pagination, err = s.repo.FindAllForAdmin(ctx, filters, page, pageSize)
	}
	if err != nil {
		return nil, nil, err
	}

	views := make([]AdminView, 0, len(announcements))
	for i := range announcements {
		readCount, err := s.ledger.CountReaders(ctx, announcements[i].ID)
		if err != nil {
			return nil, nil, err
		}
		views = append(views, AdminView{Announcement: announcements[i], ReadCount: readCount})
	}
	return views, pagination, nil
}

func (s *serviceImpl) searchForAdmin(ctx context.Context, query string, page, pageSize int) ([]Announcement, *common.Pagination, error) {
	ids, err := s.indexer.Search(ctx, query, 500)
	if err != nil {
		// Degrade to the database listing rather than failing the request.
		s.logger.Warn("Announcement search failed, falling back to database listing",
			zap.String("query", query), zap.Error(err))
		return s.repo.FindAllForAdmin(ctx, AdminFilters{Status: AdminFilterAll}, page, pageSize)
	}

	pagination := common.NewPagination(int64(len(ids)), page, pageSize)
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start >= len(ids) {
		return nil, pagination, nil
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	pageIDs := ids[start:end]

	fetched, err := s.repo.FindByIDs(ctx, pageIDs)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uuid.UUID]Announcement, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = fetched[i]
	}
	// Preserve relevance order from the index.
	ordered := make([]Announcement, 0, len(pageIDs))
	for _, id := range pageIDs {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, pagination, nil
}

// Update applies a partial patch to an announcement.
func (s *serviceImpl) Update(ctx context.Context, caller *shared.User, id uuid.UUID, req UpdateRequest) (*Announcement, error) {
	if err := requireAdmin(caller, "update announcements"); err != nil {
		return nil, err
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.ContentRichText != nil {
		a.ContentRichText = req.ContentRichText
	}
	if req.TargetAudience != nil {
		if !req.TargetAudience.Valid() {
			return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown target audience: %s", *req.TargetAudience))
		}
		a.TargetAudience = *req.TargetAudience
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown priority: %s", *req.Priority))
		}
		a.Priority = *req.Priority
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown category: %s", *req.Category))
		}
		a.Category = *req.Category
	}
	if req.Tags != nil {
		a.Tags = *req.Tags
	}
	if req.Attachments != nil {
		a.Attachments = *req.Attachments
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	if req.PublishAt != nil {
		a.PublishAt = *req.PublishAt
	}
	if req.ExpiresAt != nil {
		a.ExpiresAt = req.ExpiresAt
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.indexer.Index(ctx, a)
	return a, nil
}

// Delete removes an announcement, its ledger rows and its search document.
func (s *serviceImpl) Delete(ctx context.Context, caller *shared.User, id uuid.UUID) error {
	if err := requireAdmin(caller, "delete announcements"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.indexer.Remove(ctx, id)
	s.logger.Info("Announcement deleted", zap.String("announcement_id", id.String()))
	return nil
}

// MarkAsRead records a read receipt. Safe to call repeatedly and
// concurrently: revisits update the single ledger row in place.
func (s *serviceImpl) MarkAsRead(ctx context.Context, user *shared.User, id uuid.UUID, interaction Interaction, timeSpent int64, device DeviceInfo) (*AnnouncementRead, error) {
	if interaction != "" && !interaction.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown interaction: %s", interaction))
	}
	if timeSpent < 0 {
		return nil, common.ErrBadRequest.WithDetails("Time spent cannot be negative.")
	}

	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.CanBeViewedBy(user) {
		return nil, common.ErrForbidden.WithDetails("You do not have permission to view this announcement.")
	}

	return s.ledger.UpsertRead(ctx, id, user.ID, interaction, timeSpent, device)
}

// UnreadCount returns how many visible announcements the caller has not
// read, broken down by priority.
func (s *serviceImpl) UnreadCount(ctx context.Context, user *shared.User) (*UnreadSummary, error) {
	summaries, err := s.repo.VisibleSummaries(ctx, user)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(summaries))
	for _, row := range summaries {
		ids = append(ids, row.ID)
	}
	readTimes, err := s.ledger.ReadTimesFor(ctx, user.ID, ids)
	if err != nil {
		return nil, err
	}

	result := &UnreadSummary{ByPriority: make(map[Priority]int64)}
	for _, row := range summaries {
		if _, read := readTimes[row.ID]; read {
			continue
		}
		result.Total++
		result.ByPriority[row.Priority]++
	}
	result.Urgent = result.ByPriority[PriorityUrgent]
	result.High = result.ByPriority[PriorityHigh]
	result.Normal = result.ByPriority[PriorityNormal]
	result.Low = result.ByPriority[PriorityLow]
	return result, nil
}

// ArchiveExpired deactivates every announcement past its expiry.
func (s *serviceImpl) ArchiveExpired(ctx context.Context, caller *shared.User) (int64, error) {
	if err := requireAdmin(caller, "archive expired announcements"); err != nil {
		return 0, err
	}
	count, err := s.repo.ArchiveExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("Archived expired announcements", zap.Int64("count", count))
	}
	return count, nil
}

// StatsFor aggregates one announcement's ledger into the analytics view,
// including reach against the resolved audience size.
func (s *serviceImpl) StatsFor(ctx context.Context, caller *shared.User, id uuid.UUID) (*Stats, error) {
	if err := requireAdmin(caller, "view announcement statistics"); err != nil {
		return nil, err
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	readStats, err := s.ledger.StatsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	uniqueReaders, err := s.ledger.CountReaders(ctx, id)
	if err != nil {
		return nil, err
	}
	audienceSize, err := s.directory.CountAudience(ctx, string(a.TargetAudience))
	if err != nil {
		return nil, err
	}

	reach := 0.0
	if audienceSize > 0 {
		reach = float64(uniqueReaders) / float64(audienceSize) * 100
	}
	return &Stats{
		AnnouncementID:     a.ID,
		Title:              a.Title,
		ReadStats:          *readStats,
		UniqueReaders:      uniqueReaders,
		TargetAudienceSize: audienceSize,
		ReachPercentage:    fmt.Sprintf("%.2f%%", reach),
	}, nil
}
