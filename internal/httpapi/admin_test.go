package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/repository"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		MaxHeaderBytes:  1 << 20,
		MaxConnections:  50,
		ShutdownTimeout: time.Second,
	}
}

type stubObjects struct {
	repository.ObjectRepository
	videos int64
}

func (s *stubObjects) CountByClass(ctx context.Context, classPrefix string) (int64, error) {
	return s.videos, nil
}

type stubDetailCount struct {
	repository.DetailRepository
	count int64
}

func (s *stubDetailCount) Count(ctx context.Context) (int64, error) {
	return s.count, nil
}

type stubRescanner struct {
	scanning atomic.Bool
	scans    atomic.Int64
}

func (s *stubRescanner) Scanning() bool {
	return s.scanning.Load()
}

func (s *stubRescanner) ScanAll(ctx context.Context) error {
	s.scans.Add(1)
	return nil
}

func setupAdmin(t *testing.T, rescanner *stubRescanner) *httptest.Server {
	t.Helper()
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("test", "0.0.0"))

	admin := NewAdmin(
		&stubObjects{videos: 12},
		&stubDetailCount{count: 15},
		func() uint32 { return 42 },
		rescanner,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	admin.Register(api)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestAdmin_Health(t *testing.T) {
	server := setupAdmin(t, &stubRescanner{})

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.NotEmpty(t, body.Timestamp)
}

func TestAdmin_Status(t *testing.T) {
	rescanner := &stubRescanner{}
	rescanner.scanning.Store(true)
	server := setupAdmin(t, rescanner)

	resp, err := http.Get(server.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(12), body.Videos)
	assert.Equal(t, int64(15), body.Details)
	assert.Equal(t, uint32(42), body.SystemUpdateID)
	assert.True(t, body.Scanning)
}

func TestAdmin_Rescan(t *testing.T) {
	rescanner := &stubRescanner{}
	server := setupAdmin(t, rescanner)

	resp, err := http.Post(server.URL+"/api/v1/rescan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body RescanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Started)
	assert.Len(t, body.JobID, 26)

	require.Eventually(t, func() bool {
		return rescanner.scans.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAdmin_RescanConflict(t *testing.T) {
	rescanner := &stubRescanner{}
	rescanner.scanning.Store(true)
	server := setupAdmin(t, rescanner)

	resp, err := http.Post(server.URL+"/api/v1/rescan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_NotFoundIsHTML(t *testing.T) {
	server := NewServer(testServerConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/no/such/path")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<H1>Not Found</H1>")
}
