// Package servicetest provides in-memory stores for service and handler tests.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/repository"
)

// Images is an in-memory image metadata store with the same semantics as the
// postgres repository. Err* fields, when set, are returned by the matching call.
type Images struct {
	mu   sync.Mutex
	rows map[string]models.Image

	CreateErr     error
	MarkStoredErr error
	DeleteErr     error
	ListErr       error
}

func NewImages() *Images {
	return &Images{rows: make(map[string]models.Image)}
}

// Put inserts or replaces a row directly.
func (s *Images) Put(image models.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[image.ID] = image
}

// Get returns the stored row and whether it exists.
func (s *Images) Get(id string) (models.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.rows[id]
	return image, ok
}

func (s *Images) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Images) Create(_ context.Context, image models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	if image.ShortID != nil {
		for _, row := range s.rows {
			if row.ShortID != nil && *row.ShortID == *image.ShortID {
				return repository.ErrShortIDConflict
			}
		}
	}
	s.rows[image.ID] = image
	return nil
}

func (s *Images) GetByID(_ context.Context, id string) (models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, ok := s.rows[id]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return image, nil
}

func (s *Images) GetByIdentifier(ctx context.Context, identifier string) (models.Image, error) {
	if image, err := s.GetByID(ctx, identifier); err == nil {
		return image, nil
	}
	return s.GetByShortID(ctx, identifier)
}

func (s *Images) GetByShortID(_ context.Context, shortID string) (models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.ShortID != nil && *row.ShortID == shortID {
			return row, nil
		}
	}
	return models.Image{}, repository.ErrImageNotFound
}

func (s *Images) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	_, err := s.GetByShortID(ctx, shortID)
	return err == nil, nil
}

func (s *Images) MarkStored(_ context.Context, id string, update repository.StoredUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MarkStoredErr != nil {
		return s.MarkStoredErr
	}
	image, ok := s.rows[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	hash := update.Hash
	image.Status = models.ImageStatusStored
	image.Bytes = update.Bytes
	image.HashSHA256 = &hash
	image.ExifJSON = update.ExifJSON
	image.TakenAt = update.TakenAt
	image.UpdatedAt = update.UpdatedAt
	s.rows[id] = image
	return nil
}

func (s *Images) List(_ context.Context, filter repository.ListFilter) ([]models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	var out []models.Image
	for _, row := range s.rows {
		if filter.Before != nil && !row.CreatedAt.Before(*filter.Before) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(row.OriginalFilename), q) {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Images) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.rows[id]; !ok {
		return repository.ErrImageNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Images) ListStalePending(_ context.Context, before time.Time, limit int) ([]models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Image
	for _, row := range s.rows {
		if row.Status == models.ImageStatusPending && row.CreatedAt.Before(before) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
