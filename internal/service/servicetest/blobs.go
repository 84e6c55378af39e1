package servicetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/masa162/imgbase/internal/storage"
)

type blob struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
}

// Blobs is an in-memory object store. Gets counts calls to Get so tests can
// assert that an operation never touched storage.
type Blobs struct {
	mu      sync.Mutex
	objects map[string]blob

	Gets      int
	PutErr    error
	DeleteErr map[string]error
}

func NewBlobs() *Blobs {
	return &Blobs{
		objects:   make(map[string]blob),
		DeleteErr: make(map[string]error),
	}
}

// Seed stores an object directly, as a client PUT to a presigned URL would.
func (s *Blobs) Seed(key string, data []byte, contentType string, metadata map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = blob{
		data:         append([]byte(nil), data...),
		contentType:  contentType,
		metadata:     lower(metadata),
		lastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (s *Blobs) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *Blobs) Metadata(key string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key].metadata
}

func (s *Blobs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Blobs) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if s.PutErr != nil {
		return storage.ObjectInfo{}, s.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	s.Seed(key, data, opts.ContentType, opts.Metadata)
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *Blobs) Get(_ context.Context, key string) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Gets++
	obj, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.Object{
		Body:         io.NopCloser(bytes.NewReader(obj.data)),
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		ETag:         `"etag-` + key + `"`,
		LastModified: obj.lastModified,
		Metadata:     obj.metadata,
	}, nil
}

func (s *Blobs) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.DeleteErr[key]; ok {
		return err
	}
	delete(s.objects, key)
	return nil
}

var ErrInjected = errors.New("injected failure")

func lower(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
