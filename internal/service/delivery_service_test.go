package service

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masa162/imgbase/internal/models"
	"github.com/masa162/imgbase/internal/service/servicetest"
)

func deliveryFixture() (*DeliveryService, *servicetest.Images, *servicetest.Blobs) {
	images := servicetest.NewImages()
	blobs := servicetest.NewBlobs()

	short := "abcd1234"
	images.Put(models.Image{ID: "stored1", BucketKey: "stored1/original/a.png", ShortID: &short, Status: models.ImageStatusStored, CreatedAt: baseTime})
	images.Put(models.Image{ID: "pending1", BucketKey: "pending1/original/b.png", Status: models.ImageStatusPending, CreatedAt: baseTime})
	images.Put(models.Image{ID: "orphan1", BucketKey: "orphan1/original/c.png", Status: models.ImageStatusStored, CreatedAt: baseTime})
	blobs.Seed("stored1/original/a.png", []byte("PNGDATA"), "image/png", nil)

	return NewDeliveryService(images, blobs, zerolog.Nop()), images, blobs
}

func readDelivery(t *testing.T, d *Delivery) string {
	t.Helper()
	defer d.Body.Close()
	data, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	return string(data)
}

func TestVariantServesOriginalBytes(t *testing.T) {
	svc, _, _ := deliveryFixture()
	ctx := context.Background()

	d, err := svc.Variant(ctx, "stored1", "800x600.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", d.ContentType)
	assert.Equal(t, `"etag-stored1/original/a.png"`, d.ETag)
	assert.False(t, d.LastModified.IsZero())
	assert.Equal(t, "PNGDATA", readDelivery(t, d))

	d, err = svc.Variant(ctx, "abcd1234", "100x100.JPG")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", d.ContentType)
	readDelivery(t, d)
}

func TestVariantErrors(t *testing.T) {
	svc, _, _ := deliveryFixture()
	ctx := context.Background()

	for _, spec := range []string{"800x600.png", "800.jpg", "axb.jpg", "800x600", "800x600.jpg.exe"} {
		_, err := svc.Variant(ctx, "stored1", spec)
		requireKind(t, err, KindValidation, "")
	}

	_, err := svc.Variant(ctx, "nope", "1x1.jpg")
	requireKind(t, err, KindNotFound, "Image not found")

	_, err = svc.Variant(ctx, "pending1", "1x1.jpg")
	requireKind(t, err, KindConflict, "Image not ready")
	assert.Equal(t, 409, AsError(err).Status())

	_, err = svc.Variant(ctx, "orphan1", "1x1.jpg")
	requireKind(t, err, KindNotFound, "R2 object not found")
}

func TestShortDelivery(t *testing.T) {
	svc, _, _ := deliveryFixture()
	ctx := context.Background()

	d, err := svc.Short(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "image/png", d.ContentType)
	assert.Equal(t, "PNGDATA", readDelivery(t, d))

	_, err = svc.Short(ctx, "ABCD1234")
	requireKind(t, err, KindNotFound, "Not found")

	_, err = svc.Short(ctx, "abc")
	requireKind(t, err, KindNotFound, "Not found")

	_, err = svc.Short(ctx, "zzzz9999")
	requireKind(t, err, KindNotFound, "Image not found")
}

func TestShortDeliveryDefaultsContentType(t *testing.T) {
	svc, images, blobs := deliveryFixture()
	short := "noctype1"
	images.Put(models.Image{ID: "x", BucketKey: "x/original/raw", ShortID: &short, Status: models.ImageStatusStored})
	blobs.Seed("x/original/raw", []byte("raw"), "", nil)

	d, err := svc.Short(context.Background(), short)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", d.ContentType)
	readDelivery(t, d)
}

func TestContentTypeForFormat(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForFormat("jpg"))
	assert.Equal(t, "image/jpeg", ContentTypeForFormat("JPEG"))
	assert.Equal(t, "image/webp", ContentTypeForFormat("webp"))
	assert.Equal(t, "", ContentTypeForFormat(""))
}
