package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
)

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// CategoryService manages a user's categories and publishes the deletions.
type CategoryService struct {
	store       ledger.Store
	events      ledger.EventPublisher
	seedSamples bool
}

type CategoryOption func(*CategoryService)

// WithSampleSeeding gives users without any category the sample set on first listing.
func WithSampleSeeding() CategoryOption {
	return func(s *CategoryService) { s.seedSamples = true }
}

func NewCategoryService(store ledger.Store, events ledger.EventPublisher, opts ...CategoryOption) *CategoryService {
	if events == nil {
		events = ledger.NopPublisher{}
	}
	s := &CategoryService{store: store, events: events}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the user's categories sorted by name, without the sentinel.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	all, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if len(all) == 0 && s.seedSamples {
		if all, err = s.seed(ctx, userID); err != nil {
			return nil, err
		}
	}

	out := make([]core.Category, 0, len(all))
	for _, c := range all {
		if c.UserID != userID || c.IsSentinel() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *CategoryService) seed(ctx context.Context, userID string) ([]core.Category, error) {
	for _, c := range core.SampleCategories(userID) {
		if c.IsSentinel() {
			if _, err := s.store.SentinelCategory(ctx, userID); err != nil {
				return nil, fmt.Errorf("seed sentinel: %w", err)
			}
			continue
		}
		if err := s.store.CreateCategory(ctx, c); err != nil && !errors.Is(err, core.ErrDuplicateCategory) {
			return nil, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	slog.InfoContext(ctx, "Sample categories seeded", "user_id", userID)
	return s.store.ListCategories(ctx, userID)
}

// Get returns one category owned by userID.
func (s *CategoryService) Get(ctx context.Context, userID string, id uuid.UUID) (core.Category, error) {
	return s.store.GetCategory(ctx, userID, id)
}

// Sentinel returns the user's fallback category.
func (s *CategoryService) Sentinel(ctx context.Context, userID string) (core.Category, error) {
	return s.store.SentinelCategory(ctx, userID)
}

func (s *CategoryService) Create(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	c := core.Category{
		ID:     uuid.New(),
		UserID: userID,
		Name:   strings.TrimSpace(in.Name),
		Color:  core.NormalizeColor(in.Color),
		Emoji:  strings.TrimSpace(in.Emoji),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "user_id", userID, "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, userID string, id uuid.UUID, in CategoryInput) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	if c.IsSentinel() {
		return core.Category{}, core.ErrSentinelCategory
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Color = core.NormalizeColor(in.Color)
	c.Emoji = strings.TrimSpace(in.Emoji)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	slog.InfoContext(ctx, "Category updated", "user_id", userID, "category_id", c.ID, "name", c.Name)
	return c, nil
}

// Delete removes the given categories of userID. Unknown or foreign ids and the
// sentinel are reported in the joined error and left untouched; the other ids
// are still deleted. A store failure stops the batch.
func (s *CategoryService) Delete(ctx context.Context, userID string, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, core.ErrNothingSelected
	}

	var (
		deleted []uuid.UUID
		errs    []error
	)
	for _, id := range ids {
		moved, err := s.store.DeleteCategory(ctx, userID, id)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrSentinelCategory):
			errs = append(errs, fmt.Errorf("category %s: %w", id, err))
			continue
		default:
			slog.ErrorContext(ctx, "Category delete failed", "user_id", userID, "category_id", id, "error", err)
			return deleted, fmt.Errorf("delete category %s: %w: %w", id, core.ErrCommitFailed, err)
		}

		deleted = append(deleted, id)
		slog.InfoContext(ctx, "Category deleted", "user_id", userID, "category_id", id, "records_moved", moved)

		e := ledger.NewEvent(ledger.EventCategoryDeleted, userID)
		e.CategoryID = id
		if err := s.events.Publish(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to publish category event", "category_id", id, "error", err)
		}
	}
	return deleted, errors.Join(errs...)
}
