package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/invoicelens/invoicelens/internal/common"
)

// HTTPStore is a DocumentStore backed by an S3-compatible object endpoint:
// PUT uploads an object, DELETE removes it.
type HTTPStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPStore(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (s *HTTPStore) Put(ctx context.Context, key string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/"+key, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return common.APIError("upload document", err)
	}
	defer closeBody(resp.Body, s.logger)

	if resp.StatusCode/100 != 2 {
		return common.APIError(fmt.Sprintf("upload document: status %d", resp.StatusCode), nil)
	}
	s.logger.Debug("docstore.put", "key", key, "bytes", len(data))
	return nil
}

func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/"+key, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return common.APIError("delete document", err)
	}
	defer closeBody(resp.Body, s.logger)

	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return common.APIError(fmt.Sprintf("delete document: status %d", resp.StatusCode), nil)
	}
	s.logger.Debug("docstore.delete", "key", key)
	return nil
}

// MemoryStore is an in-process DocumentStore for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get is a test helper.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// Len is a test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
