package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/service/servicetest"
)

func seedImages(images *servicetest.Images, blobs *servicetest.Blobs, n int) {
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("img%03d", i)
		key := id + "/original/photo.jpg"
		images.Put(models.Image{
			ID:               id,
			BucketKey:        key,
			OriginalFilename: fmt.Sprintf("Photo-%02d.jpg", i),
			Mime:             "image/jpeg",
			Bytes:            1,
			Status:           models.ImageStatusStored,
			CreatedAt:        baseTime.Add(time.Duration(i) * time.Second),
			UpdatedAt:        baseTime.Add(time.Duration(i) * time.Second),
		})
		blobs.Seed(key, []byte("x"), "image/jpeg", nil)
	}
}

func TestListPagesWithCursor(t *testing.T) {
	images := servicetest.NewImages()
	blobs := servicetest.NewBlobs()
	seedImages(images, blobs, 25)
	lib := NewLibraryService(images, blobs, zerolog.Nop())
	ctx := context.Background()

	first, err := lib.List(ctx, ListRequest{Limit: "20"})
	require.NoError(t, err)
	require.Len(t, first.Items, 20)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, "img024", first.Items[0].ID)
	assert.Equal(t, "img005", first.Items[19].ID)
	assert.Equal(t, FormatCursor(first.Items[19].CreatedAt), *first.NextCursor)

	second, err := lib.List(ctx, ListRequest{Limit: "20", Cursor: *first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 5)
	assert.Nil(t, second.NextCursor)
	assert.Equal(t, "img004", second.Items[0].ID)
	assert.Equal(t, "img000", second.Items[4].ID)
}

func TestListCursorKeepsMicroseconds(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 123456000, time.UTC)
	assert.Equal(t, "2024-06-01T12:00:00.123456Z", FormatCursor(created))

	parsed, err := time.Parse(time.RFC3339Nano, FormatCursor(created))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(created))
}

func TestListEmpty(t *testing.T) {
	lib := NewLibraryService(servicetest.NewImages(), servicetest.NewBlobs(), zerolog.Nop())

	res, err := lib.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Nil(t, res.NextCursor)
}

func TestListFilters(t *testing.T) {
	images := servicetest.NewImages()
	blobs := servicetest.NewBlobs()
	seedImages(images, blobs, 3)
	images.Put(models.Image{ID: "pending1", OriginalFilename: "Sunset.PNG", Status: models.ImageStatusPending, CreatedAt: baseTime})
	lib := NewLibraryService(images, blobs, zerolog.Nop())
	ctx := context.Background()

	res, err := lib.List(ctx, ListRequest{Query: "sunset"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "pending1", res.Items[0].ID)

	res, err = lib.List(ctx, ListRequest{Status: "stored"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)

	res, err = lib.List(ctx, ListRequest{Status: "pending", Query: "photo"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestListRejectsBadCursor(t *testing.T) {
	lib := NewLibraryService(servicetest.NewImages(), servicetest.NewBlobs(), zerolog.Nop())

	_, err := lib.List(context.Background(), ListRequest{Cursor: "yesterday"})
	requireKind(t, err, KindValidation, "Invalid cursor")
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{
		"":     20,
		"abc":  20,
		"0":    1,
		"-3":   1,
		"1":    1,
		"50":   50,
		"100":  100,
		"1000": 100,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLimit(raw), raw)
	}
}

func TestDeleteBatchValidation(t *testing.T) {
	lib := NewLibraryService(servicetest.NewImages(), servicetest.NewBlobs(), zerolog.Nop())
	ctx := context.Background()

	_, err := lib.DeleteBatch(ctx, nil)
	requireKind(t, err, KindValidation, "imageIds is required")

	_, err = lib.DeleteBatch(ctx, []string{" ", ""})
	requireKind(t, err, KindValidation, "imageIds is required")

	tooMany := make([]string, 51)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("id%d", i)
	}
	_, err = lib.DeleteBatch(ctx, tooMany)
	requireKind(t, err, KindValidation, "Too many images requested at once")
}

func TestDeleteBatchReportsPartialFailure(t *testing.T) {
	images := servicetest.NewImages()
	blobs := servicetest.NewBlobs()
	seedImages(images, blobs, 3)
	blobs.DeleteErr["img001/original/photo.jpg"] = servicetest.ErrInjected
	lib := NewLibraryService(images, blobs, zerolog.Nop())

	res, err := lib.DeleteBatch(context.Background(), []string{"img000", " img001 ", "missing", "img002"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, []DeleteFailure{{ID: "img001", Reason: "storage delete failed"}}, res.Failed)

	_, ok := images.Get("img000")
	assert.False(t, ok)
	_, ok = images.Get("img001")
	assert.True(t, ok)
	assert.True(t, blobs.Has("img001/original/photo.jpg"))
	assert.False(t, blobs.Has("img002/original/photo.jpg"))
}
