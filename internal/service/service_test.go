package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/service/servicetest"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Storage: config.StorageConfig{
			AccountID:       "acct",
			AccessKeyID:     "AKID",
			SecretAccessKey: "secret",
			Bucket:          "imgbase",
			Host:            "r2.cloudflarestorage.com",
		},
		Upload: config.UploadConfig{
			MaxBytes:         1024 * 1024,
			URLExpirySeconds: 900,
		},
	}
}

type fixture struct {
	images *servicetest.Images
	blobs  *servicetest.Blobs
	upload *UploadService
	clock  *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}

func newFixture(t *testing.T, cfg *config.AppConfig) *fixture {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}

	images := servicetest.NewImages()
	blobs := servicetest.NewBlobs()
	clock := &testClock{now: baseTime}

	upload := NewUploadService(images, blobs, cfg, zerolog.Nop())
	upload.now = clock.Now
	upload.newID = sequence("img")
	shortIDs := sequence("short")
	upload.newShortID = func() (string, error) { return shortIDs(), nil }

	return &fixture{images: images, blobs: blobs, upload: upload, clock: clock}
}

func requireKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	svcErr := AsError(err)
	require.Equal(t, kind, svcErr.Kind, "error: %v", err)
	if code != "" {
		require.Equal(t, code, svcErr.Code)
	}
}
