package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/common"
)

func fakeDetectionAPI(t *testing.T, pollsUntilDone int32, finalStatus string, lines []string) (*httptest.Server, *int32) {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/text-detection/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-7"})
	})
	mux.HandleFunc("GET /v1/text-detection/jobs/job-7", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&polls, 1)
		status := "IN_PROGRESS"
		if n >= pollsUntilDone {
			status = finalStatus
		}
		body := map[string]any{"status": status}
		if status == "SUCCEEDED" {
			body["lines"] = lines
		}
		json.NewEncoder(w).Encode(body)
	})
	return httptest.NewServer(mux), &polls
}

func TestDetectTextPollsToCompletion(t *testing.T) {
	wantLines := []string{"UNITED TECHNOLINK PVT LTD", "GRAND TOTAL 3,42,200.00"}
	srv, polls := fakeDetectionAPI(t, 3, "SUCCEEDED", wantLines)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "key-1",
		PollInterval: 5 * time.Millisecond,
		MaxWait:      time.Second,
	}, srv.Client(), nil)

	lines, err := c.DetectText(context.Background(), "raw_invoices/x.pdf")
	if err != nil {
		t.Fatalf("DetectText: %v", err)
	}
	if len(lines) != 2 || lines[0] != wantLines[0] {
		t.Errorf("lines = %v", lines)
	}
	if got := atomic.LoadInt32(polls); got < 3 {
		t.Errorf("polls = %d, want at least 3", got)
	}
}

func TestDetectTextJobFailure(t *testing.T) {
	srv, _ := fakeDetectionAPI(t, 1, "FAILED", nil)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "key-1",
		PollInterval: 5 * time.Millisecond,
		MaxWait:      time.Second,
	}, srv.Client(), nil)

	_, err := c.DetectText(context.Background(), "raw_invoices/x.pdf")
	if err == nil {
		t.Fatal("expected an error for a failed job")
	}
	if common.CodeOf(err) != constants.CodeAPIError {
		t.Errorf("code = %s, want API_ERROR", common.CodeOf(err))
	}
}

func TestDetectTextBoundedWait(t *testing.T) {
	// Job never leaves IN_PROGRESS; the poll loop must give up at MaxWait.
	srv, _ := fakeDetectionAPI(t, 1<<30, "SUCCEEDED", nil)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "key-1",
		PollInterval: 5 * time.Millisecond,
		MaxWait:      30 * time.Millisecond,
	}, srv.Client(), nil)

	start := time.Now()
	_, err := c.DetectText(context.Background(), "raw_invoices/x.pdf")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if common.CodeOf(err) != constants.CodeTimeout {
		t.Errorf("code = %s, want TIMEOUT", common.CodeOf(err))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("gave up after %s, poll loop is not bounded", elapsed)
	}
}

func TestDetectTextCancellation(t *testing.T) {
	srv, _ := fakeDetectionAPI(t, 1<<30, "SUCCEEDED", nil)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "key-1",
		PollInterval: 10 * time.Millisecond,
		MaxWait:      time.Minute,
	}, srv.Client(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.DetectText(ctx, "raw_invoices/x.pdf")
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
}

func TestHTTPStorePutDelete(t *testing.T) {
	var putPath, deletePath string
	var putBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			putPath = r.URL.Path
			putBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			deletePath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "key-1", srv.Client(), nil)
	if err := s.Put(context.Background(), "raw_invoices/a.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if putPath != "/raw_invoices/a.pdf" {
		t.Errorf("put path = %q", putPath)
	}
	if !strings.HasPrefix(string(putBody), "%PDF") {
		t.Errorf("put body = %q", putBody)
	}
	if err := s.Delete(context.Background(), "raw_invoices/a.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deletePath != "/raw_invoices/a.pdf" {
		t.Errorf("delete path = %q", deletePath)
	}
}

func TestHTTPStoreDeleteMissingIsFine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "key-1", srv.Client(), nil)
	if err := s.Delete(context.Background(), "raw_invoices/gone.pdf"); err != nil {
		t.Errorf("Delete of a missing object should not error: %v", err)
	}
}
