package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxBatchDelete  = 50
)

// ListRequest carries the raw query parameters of a listing call.
type ListRequest struct {
	Limit  string
	Cursor string
	Query  string
	Status string
}

type ListResult struct {
	Items      []models.Image `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

type DeleteFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type DeleteResult struct {
	Deleted int             `json:"deleted"`
	Failed  []DeleteFailure `json:"failed"`
}

type LibraryService struct {
	images ImageStore
	blobs  BlobStore
	log    zerolog.Logger
}

func NewLibraryService(images ImageStore, blobs BlobStore, log zerolog.Logger) *LibraryService {
	return &LibraryService{images: images, blobs: blobs, log: log}
}

// List returns one page ordered newest first. The cursor is the created_at of
// the last item of the previous page and is applied as a strict bound.
func (s *LibraryService) List(ctx context.Context, req ListRequest) (ListResult, error) {
	filter := repository.ListFilter{
		Limit:  ParseLimit(req.Limit),
		Query:  strings.TrimSpace(req.Query),
		Status: models.ImageStatus(strings.TrimSpace(req.Status)),
	}

	if cursor := strings.TrimSpace(req.Cursor); cursor != "" {
		before, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return ListResult{}, validationError("Invalid cursor")
		}
		filter.Before = &before
	}

	images, err := s.images.List(ctx, filter)
	if err != nil {
		return ListResult{}, internalError("DatabaseError", "Failed to list images", err)
	}
	if images == nil {
		images = []models.Image{}
	}

	result := ListResult{Items: images}
	if len(images) == filter.Limit {
		next := FormatCursor(images[len(images)-1].CreatedAt)
		result.NextCursor = &next
	}
	return result, nil
}

// ParseLimit applies the page size default and clamps it into [1, MaxPageSize].
func ParseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPageSize
	}
	return min(max(limit, 1), MaxPageSize)
}

func FormatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DeleteBatch removes each image's object and row in order. Ids without a row
// are skipped. A failure on one id is recorded and the rest still run.
func (s *LibraryService) DeleteBatch(ctx context.Context, imageIDs []string) (DeleteResult, error) {
	idsToDelete := make([]string, 0, len(imageIDs))
	for _, id := range imageIDs {
		if id = strings.TrimSpace(id); id != "" {
			idsToDelete = append(idsToDelete, id)
		}
	}

	if len(idsToDelete) == 0 {
		return DeleteResult{}, validationError("imageIds is required")
	}
	if len(idsToDelete) > MaxBatchDelete {
		return DeleteResult{}, validationError("Too many images requested at once")
	}

	result := DeleteResult{Failed: []DeleteFailure{}}
	for _, id := range idsToDelete {
		deleted, reason := s.deleteOne(ctx, id)
		if reason != "" {
			result.Failed = append(result.Failed, DeleteFailure{ID: id, Reason: reason})
			continue
		}
		if deleted {
			result.Deleted++
		}
	}
	return result, nil
}

func (s *LibraryService) deleteOne(ctx context.Context, id string) (bool, string) {
	log := s.log.With().Str("image_id", id).Logger()

	image, err := s.images.GetByID(ctx, id)
	if errors.Is(err, repository.ErrImageNotFound) {
		return false, ""
	}
	if err != nil {
		log.Error().Err(err).Msg("lookup for delete failed")
		return false, "lookup failed"
	}

	if image.BucketKey != "" {
		if err := s.blobs.Delete(ctx, image.BucketKey); err != nil {
			log.Error().Err(err).Msg("delete object failed")
			return false, "storage delete failed"
		}
	}

	if err := s.images.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return false, ""
		}
		log.Error().Err(err).Msg("delete metadata failed")
		return false, "metadata delete failed"
	}
	return true, ""
}
