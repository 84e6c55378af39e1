package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masa162/imgbase/internal/models"
)

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrShortIDConflict = errors.New("short id already taken")
)

const uniqueViolation = "23505"

const imageColumns = `id, bucket_key, short_id, original_filename, mime, bytes, hash_sha256,
	status, exif_json, taken_at, created_at, updated_at`

// StoredUpdate carries the values recomputed from the stored object when an
// upload is completed.
type StoredUpdate struct {
	Bytes     int64
	Hash      string
	ExifJSON  *string
	TakenAt   *string
	UpdatedAt time.Time
}

// ListFilter selects one keyset page. Before is an exclusive created_at bound.
type ListFilter struct {
	Limit  int
	Before *time.Time
	Query  string
	Status models.ImageStatus
}

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, image models.Image) error {
	const query = `
		INSERT INTO images (
			id, bucket_key, short_id, original_filename, mime, bytes, hash_sha256,
			status, exif_json, taken_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.BucketKey,
		image.ShortID,
		image.OriginalFilename,
		image.Mime,
		image.Bytes,
		image.HashSHA256,
		image.Status,
		image.ExifJSON,
		image.TakenAt,
		image.CreatedAt,
		image.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "short_id") {
			return ErrShortIDConflict
		}
		return err
	}
	return nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	return scanImage(r.pool.QueryRow(ctx, query, id))
}

// GetByIdentifier matches either the primary id or the short id.
func (r *ImageRepository) GetByIdentifier(ctx context.Context, identifier string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1 OR short_id = $1 LIMIT 1`
	return scanImage(r.pool.QueryRow(ctx, query, identifier))
}

func (r *ImageRepository) GetByShortID(ctx context.Context, shortID string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE short_id = $1`
	return scanImage(r.pool.QueryRow(ctx, query, shortID))
}

func (r *ImageRepository) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM images WHERE short_id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, shortID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkStored moves a row to stored with the values measured from its object.
func (r *ImageRepository) MarkStored(ctx context.Context, id string, update StoredUpdate) error {
	const query = `
		UPDATE images
		SET status = $2,
		    bytes = $3,
		    hash_sha256 = $4,
		    exif_json = $5,
		    taken_at = $6,
		    updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		id,
		models.ImageStatusStored,
		update.Bytes,
		update.Hash,
		update.ExifJSON,
		update.TakenAt,
		update.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) List(ctx context.Context, filter ListFilter) ([]models.Image, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]models.Image, 0, filter.Limit)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

// ListStalePending returns pending rows created before the cutoff, oldest first.
func (r *ImageRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, models.ImageStatusPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func buildListQuery(filter ListFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.Before != nil {
		args = append(args, *filter.Before)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(original_filename) LIKE $%d", len(args)))
	}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(imageColumns)
	b.WriteString(" FROM images")
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}

	args = append(args, filter.Limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanImage(row pgx.Row) (models.Image, error) {
	var image models.Image
	if err := row.Scan(
		&image.ID,
		&image.BucketKey,
		&image.ShortID,
		&image.OriginalFilename,
		&image.Mime,
		&image.Bytes,
		&image.HashSHA256,
		&image.Status,
		&image.ExifJSON,
		&image.TakenAt,
		&image.CreatedAt,
		&image.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}
