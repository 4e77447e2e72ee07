package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu         sync.Mutex
	categories map[uuid.UUID]core.Category
	records    map[uuid.UUID]core.Record
}

func New(cats []core.Category) *Store {
	s := &Store{
		categories: make(map[uuid.UUID]core.Category, len(cats)),
		records:    make(map[uuid.UUID]core.Record),
	}
	for _, c := range cats {
		s.categories[c.ID] = c
	}
	return s
}

// NewFromFiles seeds userID's categories from base/seed_categories.txt, one
// "name,#RRGGBB,emoji" per line. Without a usable file the sample set is used.
func NewFromFiles(base, userID string) *Store {
	cats := readSeed(filepath.Join(base, "seed_categories.txt"), userID)
	if len(cats) == 0 {
		return New(core.SampleCategories(userID))
	}
	return New(append(cats, core.NewSentinelCategory(userID)))
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, userID string, id uuid.UUID) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) SentinelCategory(_ context.Context, userID string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentinelLocked(userID), nil
}

func (s *Store) sentinelLocked(userID string) core.Category {
	for _, c := range s.categories {
		if c.UserID == userID && c.IsSentinel() {
			return c
		}
	}
	c := core.NewSentinelCategory(userID)
	s.categories[c.ID] = c
	return c
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return fmt.Errorf("category %s: %w", c.ID, core.ErrAlreadyExists)
	}
	if s.nameTakenLocked(c) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok || old.UserID != c.UserID {
		return fmt.Errorf("category %s: %w", c.ID, core.ErrNotFound)
	}
	if old.IsSentinel() {
		return core.ErrSentinelCategory
	}
	if s.nameTakenLocked(c) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) nameTakenLocked(c core.Category) bool {
	for _, other := range s.categories {
		if other.UserID == c.UserID && other.ID != c.ID && other.Name == c.Name {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCategory(_ context.Context, userID string, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return 0, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if c.IsSentinel() {
		return 0, core.ErrSentinelCategory
	}
	sentinel := s.sentinelLocked(userID)
	moved := 0
	for rid, r := range s.records {
		if r.CategoryID == id {
			r.CategoryID = sentinel.ID
			r.Version++
			r.UpdatedAt = time.Now().UTC()
			s.records[rid] = r
			moved++
		}
	}
	delete(s.categories, id)
	return moved, nil
}

func (s *Store) GetRecord(_ context.Context, userID string, id uuid.UUID) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.UserID != userID {
		return core.Record{}, fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	return r, nil
}

// InsertRecord stores the record.
func (s *Store) InsertRecord(_ context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("record %s: %w", r.ID, core.ErrAlreadyExists)
	}
	if c, ok := s.categories[r.CategoryID]; !ok || c.UserID != r.UserID {
		return fmt.Errorf("category %s: %w", r.CategoryID, core.ErrNotFound)
	}
	s.records[r.ID] = r
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.records[r.ID]
	if !ok || old.UserID != r.UserID {
		return fmt.Errorf("record %s: %w", r.ID, core.ErrNotFound)
	}
	if c, ok := s.categories[r.CategoryID]; !ok || c.UserID != r.UserID {
		return fmt.Errorf("category %s: %w", r.CategoryID, core.ErrNotFound)
	}
	s.records[r.ID] = r
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.UserID != userID {
		return fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) ListRecords(_ context.Context, userID string, from, to core.Date) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if r.Date.Before(from.Time) || !r.Date.Before(to.Time) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func readSeed(path, userID string) []core.Category {
	var out []core.Category
	seen := map[string]struct{}{}
	for _, line := range readLines(path) {
		parts := strings.Split(line, ",")
		c := core.Category{
			ID:     uuid.New(),
			UserID: userID,
			Name:   strings.TrimSpace(parts[0]),
			Color:  core.DefaultCategoryColor,
		}
		if len(parts) > 1 {
			c.Color = core.NormalizeColor(parts[1])
		}
		if len(parts) > 2 {
			c.Emoji = strings.TrimSpace(parts[2])
		}
		if _, dup := seen[c.Name]; dup || c.Validate() != nil {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
