package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

const defaultTimeout = 30 * time.Second

// ErrInvalidPath 表示对象路径为空或试图跳出 bucket。
var ErrInvalidPath = errors.New("invalid blob path")

// HTTPOptions 描述对象存储端点与静态凭证。Token 优先于 Username/Password。
type HTTPOptions struct {
	Endpoint string
	Bucket   string
	Token    string
	Username string
	Password string
	// Timeout 是整个请求（含读取正文）的上限，<=0 时使用 30s。
	Timeout time.Duration
	// Client 可在测试中注入；为空时使用共享 transport。
	Client *http.Client
}

// HTTPStore 通过 <Endpoint>/<Bucket>/<path> 的 REST 约定访问对象：GET 读取，PUT 上传。
type HTTPStore struct {
	base     *url.URL
	bucket   string
	token    string
	username string
	password string
	client   *http.Client
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore 校验端点并构建 HTTP 客户端。
func NewHTTPStore(opts HTTPOptions) (*HTTPStore, error) {
	base, err := url.Parse(strings.TrimSpace(opts.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("endpoint must be http/https: %s", opts.Endpoint)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("endpoint missing host: %s", opts.Endpoint)
	}
	bucket := strings.Trim(strings.TrimSpace(opts.Bucket), "/")
	if bucket == "" {
		return nil, errors.New("bucket required")
	}

	client := opts.Client
	if client == nil {
		client = NewHTTPClient(opts.Timeout)
	}

	return &HTTPStore{
		base:     base,
		bucket:   bucket,
		token:    opts.Token,
		username: opts.Username,
		password: opts.Password,
		client:   client,
	}, nil
}

// NewHTTPClient 返回基于共享 transport 的 http.Client。
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// Fetch 先检查 Content-Length，再以 maxBytes+1 为界读取正文，超限即返回 ErrTooLarge。
func (s *HTTPStore) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("fetch %s: max bytes must be positive", path)
	}
	target, err := s.objectURL(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus("fetch", path, resp.StatusCode); err != nil {
		return nil, err
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("fetch %s: %d bytes: %w", path, resp.ContentLength, ErrTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", path, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("fetch %s: %w", path, ErrTooLarge)
	}
	return data, nil
}

// Upload 以 PUT 写入对象，并携带 Content-Type。
func (s *HTTPStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	target, err := s.objectURL(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return checkStatus("upload", path, resp.StatusCode)
}

func (s *HTTPStore) objectURL(path string) (string, error) {
	clean := strings.Trim(path, "/")
	if clean == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, segment := range strings.Split(clean, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
	}
	return s.base.JoinPath(s.bucket, clean).String(), nil
}

func (s *HTTPStore) authorize(req *http.Request) {
	switch {
	case s.token != "":
		req.Header.Set("Authorization", "Bearer "+s.token)
	case s.username != "" && s.password != "":
		req.SetBasicAuth(s.username, s.password)
	}
}

func checkStatus(op, path string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	default:
		return &StatusError{Op: op, Path: path, Status: status}
	}
}
