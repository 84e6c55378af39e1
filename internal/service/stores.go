package service

import (
	"context"
	"io"
	"time"

	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/repository"
	"github.com/masa162/imgbase/internal/storage"
)

// ImageStore is the metadata store the services depend on.
// *repository.ImageRepository satisfies it.
type ImageStore interface {
	Create(ctx context.Context, image models.Image) error
	GetByID(ctx context.Context, id string) (models.Image, error)
	GetByIdentifier(ctx context.Context, identifier string) (models.Image, error)
	GetByShortID(ctx context.Context, shortID string) (models.Image, error)
	ShortIDExists(ctx context.Context, shortID string) (bool, error)
	MarkStored(ctx context.Context, id string, update repository.StoredUpdate) error
	List(ctx context.Context, filter repository.ListFilter) ([]models.Image, error)
	Delete(ctx context.Context, id string) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Image, error)
}

// BlobStore is the object store the services depend on.
// *storage.ObjectStore satisfies it.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error)
	Get(ctx context.Context, key string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ ImageStore = (*repository.ImageRepository)(nil)
	_ BlobStore  = (*storage.ObjectStore)(nil)
)
