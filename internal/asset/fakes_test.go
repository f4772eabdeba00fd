package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/asset-hub/internal/blobstore"
	"github.com/any-hub/asset-hub/internal/cache"
)

type uploadedObject struct {
	data        []byte
	contentType string
}

// fakeStore is an in-memory blob store that counts fetches and can inject
// latency and failures.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   map[string]uploadedObject
	fetchErr  error
	uploadErr error
	delay     time.Duration

	fetches     atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		uploads: make(map[string]uploadedObject),
	}
}

func (s *fakeStore) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	s.fetches.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if current <= peak || s.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	s.mu.Lock()
	delay, fetchErr := s.delay, s.fetchErr
	data, ok := s.objects[path]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	if int64(len(data)) > maxBytes {
		return nil, blobstore.ErrTooLarge
	}
	return bytes.Clone(data), nil
}

func (s *fakeStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploads[path] = uploadedObject{data: bytes.Clone(data), contentType: contentType}
	s.objects[path] = bytes.Clone(data)
	return nil
}

func (s *fakeStore) put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
}

func (s *fakeStore) setFetchErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

func (s *fakeStore) setDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *fakeStore) uploaded(path string) (uploadedObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.uploads[path]
	return obj, ok
}

var errCorrupt = errors.New("corrupt payload")

// rawDecoder accepts anything except payloads starting with "corrupt".
var rawDecoder = DecoderFunc(func(data []byte) (*Asset, error) {
	if bytes.HasPrefix(data, []byte("corrupt")) {
		return nil, errCorrupt
	}
	return New(data, "application/octet-stream", 0, 0), nil
})

// prefixEncoder tags payloads so tests can tell encoded bytes from input.
type prefixEncoder struct{}

func (prefixEncoder) Encode(data []byte) (Encoded, error) {
	if bytes.Equal(data, []byte("bad")) {
		return Encoded{}, errors.New("cannot encode")
	}
	return Encoded{
		Data:        append([]byte("jpeg:"), data...),
		ContentType: "image/jpeg",
		Extension:   ".jpg",
	}, nil
}

// newTestService wires a Service over fresh tiers rooted in a temp dir. The
// optional mutate hook adjusts Options before construction.
func newTestService(t *testing.T, store *fakeStore, mutate func(*Options)) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	disk, err := cache.NewDisk(t.TempDir(), logger)
	require.NoError(t, err)

	opts := Options{
		Store:   store,
		Disk:    disk,
		Decoder: rawDecoder,
		Encoder: prefixEncoder{},
		Logger:  logger,
	}
	if mutate != nil {
		mutate(&opts)
	}

	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc
}
