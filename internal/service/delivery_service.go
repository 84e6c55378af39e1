package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/masa162/imgbase/internal/ids"
	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/repository"
	"github.com/masa162/imgbase/internal/storage"
)

const (
	CacheControlImmutable = "public, max-age=31536000, immutable"
	defaultContentType    = "application/octet-stream"
)

var sizeSpecPattern = regexp.MustCompile(`(?i)^\d+x\d+\.(jpg|jpeg|webp)$`)

// Delivery is an object ready to be streamed to a client. Callers must close Body.
type Delivery struct {
	Body         io.ReadCloser
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

type DeliveryService struct {
	images ImageStore
	blobs  BlobStore
	log    zerolog.Logger
}

func NewDeliveryService(images ImageStore, blobs BlobStore, log zerolog.Logger) *DeliveryService {
	return &DeliveryService{images: images, blobs: blobs, log: log}
}

// Variant serves identifier (id or short id) for a size spec such as
// "800x600.webp". The original bytes are returned; no resizing happens.
func (s *DeliveryService) Variant(ctx context.Context, identifier, sizeSpec string) (*Delivery, error) {
	match := sizeSpecPattern.FindStringSubmatch(sizeSpec)
	if match == nil {
		return nil, validationError("Invalid size")
	}
	if identifier == "" {
		return nil, notFoundError("Not found", nil)
	}

	image, err := s.images.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, s.lookupError(err, identifier)
	}

	if image.Status != models.ImageStatusStored {
		return nil, &Error{Kind: KindConflict, Code: "Image not ready"}
	}

	obj, err := s.fetch(ctx, image)
	if err != nil {
		return nil, err
	}

	contentType := ContentTypeForFormat(match[1])
	if contentType == "" {
		contentType = fallbackContentType(obj.ContentType)
	}

	return &Delivery{
		Body:         obj.Body,
		Size:         obj.Size,
		ContentType:  contentType,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
	}, nil
}

// Short serves the image behind an 8-character short id.
func (s *DeliveryService) Short(ctx context.Context, shortID string) (*Delivery, error) {
	if !ids.IsShortID(shortID) {
		return nil, notFoundError("Not found", nil)
	}

	image, err := s.images.GetByShortID(ctx, shortID)
	if err != nil {
		return nil, s.lookupError(err, shortID)
	}

	obj, err := s.fetch(ctx, image)
	if err != nil {
		return nil, err
	}

	return &Delivery{
		Body:         obj.Body,
		Size:         obj.Size,
		ContentType:  fallbackContentType(obj.ContentType),
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
	}, nil
}

func (s *DeliveryService) fetch(ctx context.Context, image models.Image) (*storage.Object, error) {
	obj, err := s.blobs.Get(ctx, image.BucketKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn().Str("image_id", image.ID).Str("bucket_key", image.BucketKey).Msg("stored image has no object")
			return nil, notFoundError("R2 object not found", err)
		}
		return nil, internalError("Internal error", "", err)
	}
	return obj, nil
}

func (s *DeliveryService) lookupError(err error, identifier string) error {
	if errors.Is(err, repository.ErrImageNotFound) {
		return notFoundError("Image not found", err)
	}
	s.log.Error().Err(err).Str("identifier", identifier).Msg("image lookup failed")
	return internalError("Internal error", "", err)
}

// ContentTypeForFormat maps a requested extension to its media type.
func ContentTypeForFormat(format string) string {
	switch format = strings.ToLower(format); format {
	case "":
		return ""
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/" + format
	}
}

func fallbackContentType(stored string) string {
	if stored != "" {
		return stored
	}
	return defaultContentType
}
