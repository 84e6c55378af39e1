package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/ids"
	"github.com/masa162/imgbase/internal/metrics"
	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/repository"
	"github.com/masa162/imgbase/internal/security"
	"github.com/masa162/imgbase/internal/storage"
)

const (
	metaOriginalFilename = "original-filename"
	metaExif             = "exif"
	metaTakenAt          = "taken_at"

	shortIDAttempts = 10
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type SignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type SignResult struct {
	UploadURL string            `json:"uploadUrl"`
	ObjectKey string            `json:"objectKey"`
	ImageID   string            `json:"imageId"`
	ExpiresIn int               `json:"expiresIn"`
	Headers   map[string]string `json:"headers"`
}

type CompleteResult struct {
	Status  models.ImageStatus `json:"status"`
	Hash    string             `json:"hash"`
	Bytes   int64              `json:"bytes"`
	TakenAt *string            `json:"takenAt"`
}

type ProxyInput struct {
	ContentType string
	FileName    string
	Body        io.Reader
}

type ProxyResult struct {
	ImageID   string             `json:"imageId"`
	ObjectKey string             `json:"objectKey"`
	Bytes     int64              `json:"bytes"`
	Hash      string             `json:"hash"`
	ShortID   string             `json:"shortId"`
	Status    models.ImageStatus `json:"status"`
}

type SweepResult struct {
	Completed int `json:"completed"`
	Reaped    int `json:"reaped"`
	Failed    int `json:"failed"`
}

type UploadService struct {
	images  ImageStore
	blobs   BlobStore
	storage config.StorageConfig
	upload  config.UploadConfig
	log     zerolog.Logger

	now        func() time.Time
	newID      func() string
	newShortID func() (string, error)
}

func NewUploadService(images ImageStore, blobs BlobStore, cfg *config.AppConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		images:     images,
		blobs:      blobs,
		storage:    cfg.Storage,
		upload:     cfg.Upload,
		log:        log,
		now:        time.Now,
		newID:      ids.New,
		newShortID: ids.NewShortID,
	}
}

// Sign validates the request, registers a pending row and returns a presigned
// PUT URL together with the headers the client must send with it.
func (s *UploadService) Sign(ctx context.Context, req SignRequest) (SignResult, error) {
	// header values are signed and returned in the form clients put on the wire
	req.FileName = security.TrimAll(req.FileName)
	req.ContentType = security.TrimAll(req.ContentType)

	if err := s.validateSign(req); err != nil {
		metrics.UploadsTotal.WithLabelValues("sign", "rejected").Inc()
		return SignResult{}, err
	}

	if !s.storage.SigningReady() {
		metrics.UploadsTotal.WithLabelValues("sign", "misconfigured").Inc()
		return SignResult{}, &Error{Kind: KindMisconfigured, Code: "ServerMisconfigured", Message: "R2 credentials are missing"}
	}

	imageID := s.newID()
	objectKey := BuildObjectKey(imageID, req.FileName)
	now := s.timestamp()

	uploadURL := security.PresignPut(security.PresignInput{
		AccountID:       s.storage.AccountID,
		AccessKeyID:     s.storage.AccessKeyID,
		SecretAccessKey: s.storage.SecretAccessKey,
		Bucket:          s.storage.Bucket,
		ObjectKey:       objectKey,
		StorageHost:     s.storage.Host,
		ExpiresSeconds:  s.upload.URLExpirySeconds,
		ContentType:     req.ContentType,
		Metadata:        map[string]string{metaOriginalFilename: req.FileName},
		SignedAt:        now,
	})

	image := models.Image{
		ID:               imageID,
		BucketKey:        objectKey,
		OriginalFilename: req.FileName,
		Mime:             req.ContentType,
		Bytes:            req.Size,
		Status:           models.ImageStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.images.Create(ctx, image); err != nil {
		s.log.Error().Err(err).Str("image_id", imageID).Msg("register pending image failed")
		metrics.UploadsTotal.WithLabelValues("sign", "error").Inc()
		return SignResult{}, internalError("DatabaseError", "Failed to register metadata", err)
	}

	metrics.UploadsTotal.WithLabelValues("sign", "ok").Inc()

	return SignResult{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ImageID:   imageID,
		ExpiresIn: s.upload.URLExpirySeconds,
		Headers: map[string]string{
			"content-type":                 req.ContentType,
			"x-amz-meta-original-filename": req.FileName,
		},
	}, nil
}

func (s *UploadService) validateSign(req SignRequest) error {
	switch {
	case req.FileName == "":
		return validationError("fileName is required")
	case req.ContentType == "":
		return validationError("contentType is required")
	case req.Size <= 0:
		return validationError("size must be > 0")
	}

	if limit := s.upload.MaxBytes; limit > 0 && req.Size > limit {
		return validationError(fmt.Sprintf("file exceeds %dMB limit", limit/(1024*1024)))
	}
	return nil
}

// Complete re-reads the uploaded object, records its real size and SHA-256 and
// moves the row to stored. Completing an already stored image recomputes the
// same values.
func (s *UploadService) Complete(ctx context.Context, imageID string) (CompleteResult, error) {
	result, err := s.complete(ctx, imageID)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("complete", outcome(err)).Inc()
		return CompleteResult{}, err
	}
	metrics.UploadsTotal.WithLabelValues("complete", "ok").Inc()
	return result, nil
}

func (s *UploadService) complete(ctx context.Context, imageID string) (CompleteResult, error) {
	if imageID == "" {
		return CompleteResult{}, validationError("imageId is required")
	}

	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return CompleteResult{}, notFoundError("ImageNotFound", err)
		}
		return CompleteResult{}, internalError("DatabaseError", "Failed to load metadata", err)
	}

	obj, err := s.blobs.Get(ctx, image.BucketKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return CompleteResult{}, notFoundError("R2ObjectNotFound", err)
		}
		return CompleteResult{}, internalError("StorageError", "Failed to read object", err)
	}
	defer obj.Body.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, obj.Body)
	if err != nil {
		return CompleteResult{}, internalError("StorageError", "Failed to read object", err)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	update := repository.StoredUpdate{
		Bytes:     n,
		Hash:      hash,
		ExifJSON:  metadataValue(obj.Metadata, metaExif),
		TakenAt:   metadataValue(obj.Metadata, metaTakenAt),
		UpdatedAt: s.timestamp(),
	}
	if err := s.images.MarkStored(ctx, image.ID, update); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return CompleteResult{}, notFoundError("ImageNotFound", err)
		}
		s.log.Error().Err(err).Str("image_id", image.ID).Msg("mark image stored failed")
		return CompleteResult{}, internalError("DatabaseError", "Failed to update metadata", err)
	}

	return CompleteResult{
		Status:  models.ImageStatusStored,
		Hash:    hash,
		Bytes:   n,
		TakenAt: update.TakenAt,
	}, nil
}

// Proxy stores the body directly, assigns a short id and records the image as
// stored in one step.
func (s *UploadService) Proxy(ctx context.Context, in ProxyInput) (ProxyResult, error) {
	result, err := s.proxy(ctx, in)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("proxy", outcome(err)).Inc()
		return ProxyResult{}, err
	}
	metrics.UploadsTotal.WithLabelValues("proxy", "ok").Inc()
	return result, nil
}

func (s *UploadService) proxy(ctx context.Context, in ProxyInput) (ProxyResult, error) {
	if in.ContentType == "" || in.FileName == "" || in.Body == nil {
		return ProxyResult{}, validationError("Missing content-type or x-filename header")
	}

	body := in.Body
	if s.upload.MaxBytes > 0 {
		body = io.LimitReader(in.Body, s.upload.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return ProxyResult{}, internalError("Upload failed", "", err)
	}

	if len(data) == 0 {
		return ProxyResult{}, validationError("Empty file")
	}
	if s.upload.MaxBytes > 0 && int64(len(data)) > s.upload.MaxBytes {
		return ProxyResult{}, &Error{Kind: KindTooLarge, Code: fmt.Sprintf("File too large. Max size: %d bytes", s.upload.MaxBytes)}
	}

	imageID := s.newID()
	objectKey := BuildObjectKey(imageID, in.FileName)
	log := s.log.With().Str("image_id", imageID).Logger()

	if _, err := s.blobs.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: in.ContentType,
		Metadata:    map[string]string{metaOriginalFilename: in.FileName},
	}); err != nil {
		log.Error().Err(err).Msg("proxy upload put failed")
		return ProxyResult{}, internalError("Upload failed", "", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	now := s.timestamp()

	image := models.Image{
		ID:               imageID,
		BucketKey:        objectKey,
		OriginalFilename: in.FileName,
		Mime:             in.ContentType,
		Bytes:            int64(len(data)),
		HashSHA256:       &hash,
		Status:           models.ImageStatusStored,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	shortID, err := s.insertWithShortID(ctx, image)
	if err != nil {
		log.Error().Err(err).Msg("proxy upload insert failed")
		return ProxyResult{}, internalError("Upload failed", "", err)
	}

	return ProxyResult{
		ImageID:   imageID,
		ObjectKey: objectKey,
		Bytes:     image.Bytes,
		Hash:      hash,
		ShortID:   shortID,
		Status:    models.ImageStatusStored,
	}, nil
}

// insertWithShortID draws short ids until one is free and the insert succeeds.
// A unique violation on insert counts as a collision.
func (s *UploadService) insertWithShortID(ctx context.Context, image models.Image) (string, error) {
	for attempt := 0; attempt < shortIDAttempts; attempt++ {
		candidate, err := s.newShortID()
		if err != nil {
			return "", fmt.Errorf("draw short id: %w", err)
		}

		exists, err := s.images.ShortIDExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check short id: %w", err)
		}
		if exists {
			continue
		}

		image.ShortID = &candidate
		err = s.images.Create(ctx, image)
		if errors.Is(err, repository.ErrShortIDConflict) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("insert image: %w", err)
		}
		return candidate, nil
	}
	return "", ids.ErrShortIDExhausted
}

// SweepPending reconciles pending rows older than olderThan: rows whose object
// exists are completed, rows whose object never arrived are deleted. Other
// failures are left for the next run.
func (s *UploadService) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (SweepResult, error) {
	cutoff := s.timestamp().Add(-olderThan)

	stale, err := s.images.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list stale pending: %w", err)
	}

	var result SweepResult
	for _, image := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		log := s.log.With().Str("image_id", image.ID).Logger()

		_, err := s.complete(ctx, image.ID)
		if err == nil {
			result.Completed++
			metrics.SweptImagesTotal.WithLabelValues("completed").Inc()
			continue
		}

		svcErr := AsError(err)
		switch svcErr.Code {
		case "ImageNotFound":
			// deleted since the scan
			continue
		case "R2ObjectNotFound":
			if err := s.images.Delete(ctx, image.ID); err != nil && !errors.Is(err, repository.ErrImageNotFound) {
				log.Warn().Err(err).Msg("reap pending image failed")
				result.Failed++
				metrics.SweptImagesTotal.WithLabelValues("failed").Inc()
				continue
			}
			result.Reaped++
			metrics.SweptImagesTotal.WithLabelValues("reaped").Inc()
		default:
			log.Warn().Err(err).Msg("complete pending image failed")
			result.Failed++
			metrics.SweptImagesTotal.WithLabelValues("failed").Inc()
		}
	}

	return result, nil
}

func (s *UploadService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// BuildObjectKey derives the storage key for an image. Characters outside
// [A-Za-z0-9._-] are dropped from the file name; an empty result becomes "file".
func BuildObjectKey(imageID, fileName string) string {
	clean := unsafeFilenameChars.ReplaceAllString(fileName, "")
	if clean == "" {
		clean = "file"
	}
	return imageID + "/original/" + clean
}

func metadataValue(metadata map[string]string, key string) *string {
	if v, ok := metadata[key]; ok && v != "" {
		return &v
	}
	return nil
}

func outcome(err error) string {
	switch AsError(err).Kind {
	case KindValidation, KindTooLarge:
		return "rejected"
	case KindNotFound:
		return "not_found"
	case KindMisconfigured:
		return "misconfigured"
	default:
		return "error"
	}
}
