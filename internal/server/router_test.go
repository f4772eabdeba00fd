package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/asset-hub/internal/asset"
	"github.com/any-hub/asset-hub/internal/blobstore"
	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/imaging"
)

func TestResolveServesAsset(t *testing.T) {
	env := newTestEnv(t)
	env.store.put("users/1/avatar/a.txt", []byte("hello asset"))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/assets/users/1/avatar/a.txt", nil))
	body := readBody(t, resp)

	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "hello asset", body)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/plain")
	assert.Equal(t, digest.FromString("hello asset").String(), resp.Header.Get("X-Asset-Digest"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestResolveDecodesEscapedKey(t *testing.T) {
	env := newTestEnv(t)
	env.store.put("app images/pale.txt", []byte("pale"))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/assets/app%20images/pale.txt", nil))
	body := readBody(t, resp)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "pale", body)
}

func TestResolveMissReturns404(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/assets/missing.jpg", nil))
	body := readBody(t, resp)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"asset_not_found"}`, body)
}

func TestPeekOnlyReadsMemory(t *testing.T) {
	env := newTestEnv(t)
	env.store.put("a.txt", []byte("a"))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/-/peek/a.txt", nil))
	readBody(t, resp)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, env.store.fetchCount())

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/assets/a.txt", nil))
	readBody(t, resp)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/-/peek/a.txt", nil))
	assert.Equal(t, "a", readBody(t, resp))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.store.fetchCount())
}

func TestResolveKeepsDistinctKeysReachable(t *testing.T) {
	env := newTestEnv(t)
	const count = 50
	for i := 0; i < count; i++ {
		env.store.put(fmt.Sprintf("k%03d.txt", i), []byte(fmt.Sprintf("body-%03d", i)))
	}

	for i := 0; i < count; i++ {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/assets/k%03d.txt", i), nil))
		body := readBody(t, resp)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	}

	assert.Equal(t, count, env.service.Stats().MemoryEntries)
	for i := 0; i < count; i++ {
		a, ok := env.service.PeekMemory(fmt.Sprintf("k%03d.txt", i))
		require.True(t, ok, "key k%03d.txt should stay in memory", i)
		assert.Equal(t, fmt.Sprintf("body-%03d", i), string(a.Bytes()))
	}

	// 再次请求全部命中内存，不会触发新的下载。
	for i := 0; i < count; i++ {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/-/peek/k%03d.txt", i), nil))
		assert.Equal(t, fmt.Sprintf("body-%03d", i), readBody(t, resp))
	}
	assert.Equal(t, count, env.store.fetchCount())
}

func TestResolveCoalescesConcurrentHTTPRequests(t *testing.T) {
	env := newTestEnv(t)
	payload := bytes.Repeat([]byte("z"), 1024)
	env.store.put("shared.txt", payload)
	env.store.setDelay(50 * time.Millisecond)

	const callers = 10
	statuses := make([]int, callers)
	bodies := make([]string, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/assets/shared.txt", nil))
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			statuses[i], bodies[i], errs[i] = resp.StatusCode, string(body), err
		}()
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, fiber.StatusOK, statuses[i], "caller %d", i)
		assert.Equal(t, string(payload), bodies[i], "caller %d", i)
	}
	assert.Equal(t, 1, env.store.fetchCount())
}

func TestUploadAcceptsBodiesUpToFetchLimit(t *testing.T) {
	env := newTestEnv(t)

	// 4.5 MiB 超过 Fiber 默认的 4 MiB 请求体上限，但仍在默认 5 MiB 资源上限内。
	body := bytes.Repeat([]byte("x"), 4*1024*1024+512*1024)
	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/-/upload?namespace=users/1/x", bytes.NewReader(body)))
	got := readBody(t, resp)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, got)
	assert.JSONEq(t, `{"error":"invalid_image"}`, got)
}

func TestUploadRejectsBodiesAboveConfiguredLimit(t *testing.T) {
	env := newTestEnvWithBodyLimit(t, 1024)

	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/-/upload?namespace=users/1/x", bytes.NewReader(bytes.Repeat([]byte("x"), 2048))))
	readBody(t, resp)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestPreloadWarmsMemory(t *testing.T) {
	env := newTestEnv(t)
	env.store.put("a.txt", []byte("a"))
	env.store.put("b.txt", []byte("b"))

	req := httptest.NewRequest(http.MethodPost, "/-/preload", strings.NewReader(`{"keys":["a.txt","b.txt","missing.txt"]}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp := env.do(t, req)
	readBody(t, resp)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	assert.Equal(t, 2, env.service.Stats().MemoryEntries)
}

func TestPreloadRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/-/preload", strings.NewReader(`{"keys":`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp := env.do(t, req)
	body := readBody(t, resp)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"invalid_body"}`, body)
}

func TestUploadStoresJPEGAndWarmsCache(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/-/upload?namespace=users/42/avatar", bytes.NewReader(pngFixture(t)))
	req.Header.Set(fiber.HeaderContentType, "image/png")
	resp := env.do(t, req)
	body := readBody(t, resp)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)

	var payload struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.True(t, strings.HasPrefix(payload.Key, "users/42/avatar/"), payload.Key)
	assert.True(t, strings.HasSuffix(payload.Key, ".jpg"), payload.Key)

	stored, ok := env.store.get(payload.Key)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", http.DetectContentType(stored))

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/-/peek/"+payload.Key, nil))
	readBody(t, resp)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUploadErrorMapping(t *testing.T) {
	testCases := []struct {
		name      string
		namespace string
		body      []byte
		uploadErr error
		status    int
		code      string
	}{
		{"empty body", "users/1/x", nil, nil, fiber.StatusBadRequest, "empty_upload"},
		{"bad namespace", "../etc", []byte("x"), nil, fiber.StatusBadRequest, "invalid_namespace"},
		{"not an image", "users/1/x", []byte("plain text"), nil, fiber.StatusBadRequest, "invalid_image"},
		{"store failure", "users/1/x", nil, blobstore.ErrNotFound, fiber.StatusBadGateway, "upload_failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.store.uploadErr = tc.uploadErr
			body := tc.body
			if tc.uploadErr != nil {
				body = pngFixture(t)
			}

			req := httptest.NewRequest(http.MethodPost, "/-/upload?namespace="+tc.namespace, bytes.NewReader(body))
			resp := env.do(t, req)
			got := readBody(t, resp)

			assert.Equal(t, tc.status, resp.StatusCode, got)
			assert.JSONEq(t, `{"error":"`+tc.code+`"}`, got)
		})
	}
}

func TestUploadErrorStatusForUnauthenticated(t *testing.T) {
	status, code := uploadErrorStatus(asset.ErrUnauthenticated)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", code)

	status, code = uploadErrorStatus(asset.ErrNoEncoder)
	assert.Equal(t, fiber.StatusNotImplemented, status)
	assert.Equal(t, "upload_disabled", code)
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	_, err := NewApp(AppOptions{Service: &asset.Service{}, ListenPort: 5000})
	assert.Error(t, err)
	_, err = NewApp(AppOptions{Logger: logger, ListenPort: 5000})
	assert.Error(t, err)
	_, err = NewApp(AppOptions{Logger: logger, Service: &asset.Service{}})
	assert.Error(t, err)
}

type testEnv struct {
	app     *fiber.App
	store   *memoryStore
	service *asset.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithBodyLimit(t, 0)
}

func newTestEnvWithBodyLimit(t *testing.T, bodyLimit int) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	disk, err := cache.NewDisk(t.TempDir(), logger)
	require.NoError(t, err)

	store := newMemoryStore()
	svc, err := asset.NewService(asset.Options{
		Store:   store,
		Disk:    disk,
		Decoder: imaging.RawDecoder{},
		Encoder: imaging.JPEGEncoder{Quality: 90},
		Logger:  logger,
	})
	require.NoError(t, err)

	app, err := NewApp(AppOptions{Logger: logger, Service: svc, ListenPort: 5000, BodyLimit: bodyLimit})
	require.NoError(t, err)

	return &testEnv{app: app, store: store, service: svc}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// memoryStore is a minimal in-memory blobstore.Store.
type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	fetches   int
	uploadErr error
	delay     time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Fetch(_ context.Context, path string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	s.fetches++
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	if int64(len(data)) > maxBytes {
		return nil, blobstore.ErrTooLarge
	}
	return bytes.Clone(data), nil
}

func (s *memoryStore) Upload(_ context.Context, path string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[path] = bytes.Clone(data)
	return nil
}

func (s *memoryStore) put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
}

func (s *memoryStore) setDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *memoryStore) get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

func (s *memoryStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 40), B: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
