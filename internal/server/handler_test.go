package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marmos91/sharegate/internal/audit"
	"github.com/marmos91/sharegate/internal/logging"
	"github.com/marmos91/sharegate/pkg/config"
	"github.com/marmos91/sharegate/pkg/share"
	blobmemory "github.com/marmos91/sharegate/pkg/store/blob/memory"
	sharememory "github.com/marmos91/sharegate/pkg/store/share/memory"
)

const testPassword = "s3cret"

func testConfig() *config.Config {
	cfg := &config.Config{
		Logging: logging.Config{Level: "error"},
		Server: config.ServerConfig{
			ListenAddr:      ":0",
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			Password:          testPassword,
			Realm:             "ShareGate",
			MaxFailedAttempts: 5,
			BlockDuration:     5 * time.Minute,
		},
		Shares: config.SharesConfig{
			Type:          "memory",
			DefaultExpiry: 24 * time.Hour,
			Retention:     7 * 24 * time.Hour,
		},
		Upload: config.UploadConfig{Type: "memory"},
	}
	return cfg
}

type testEnv struct {
	server  *Server
	handler http.Handler
	blobs   *blobmemory.MemoryBlobStore
	shares  *share.Manager
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	blobs := blobmemory.NewMemoryBlobStore()
	shares := share.NewManager(sharememory.NewMemoryShareStore(), zap.NewNop())

	auditLog, err := audit.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	srv, err := New(Options{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Shares:   shares,
		Blobs:    blobs,
		AuditLog: auditLog,
	})
	require.NoError(t, err)

	return &testEnv{
		server:  srv,
		handler: srv.routes(),
		blobs:   blobs,
		shares:  shares,
	}
}

// do performs a request against the handler tree with Basic auth attached.
func (e *testEnv) do(method, target, password string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "203.0.113.9:44321"
	if password != "" {
		req.SetBasicAuth("", password)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) putBlob(t *testing.T, name string, data []byte) string {
	t.Helper()

	w, actual, err := e.blobs.Create(t.Context(), name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return actual
}

func TestHealthzIsOpen(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_ChallengeWithoutCredentials(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic realm=")
}

func TestGate_CorrectPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/", testPassword, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")
}

func TestGate_BlocksAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t, nil)

	for i := 0; i < 5; i++ {
		rec := env.do(http.MethodGet, "/", "wrong", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
	}

	// Crossing the threshold writes a blocked audit entry from the
	// tracker's hook, before any further request arrives.
	statuses := make([]string, 0)
	for _, e := range env.server.audit.Recent(10) {
		statuses = append(statuses, e.Status)
	}
	assert.Contains(t, statuses, "blocked")

	// Correct credentials no longer help once the block is in force.
	rec := env.do(http.MethodGet, "/", testPassword, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The refusal is uniform: no mention of blocking.
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "block")
}

func TestGate_AllowlistDenies(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.AllowedIPs = []string{"198.51.100.7"}
	})

	rec := env.do(http.MethodGet, "/", testPassword, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGate_LoopbackAlwaysAllowed(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.AllowedIPs = []string{"198.51.100.7"}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.SetBasicAuth("", testPassword)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_CrossOriginPostRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	body, contentType := multipartBody(t, "x.txt", []byte("hi"))
	req := httptest.NewRequest(http.MethodPost, "http://files.example.com/", body)
	req.RemoteAddr = "203.0.113.9:44321"
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Origin", "http://evil.example")
	req.SetBasicAuth("", testPassword)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGate_SameOriginPostAccepted(t *testing.T) {
	env := newTestEnv(t, nil)

	body, contentType := multipartBody(t, "x.txt", []byte("hi"))
	req := httptest.NewRequest(http.MethodPost, "http://files.example.com/", body)
	req.RemoteAddr = "203.0.113.9:44321"
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Origin", "http://files.example.com")
	req.SetBasicAuth("", testPassword)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func multipartBody(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadThenDownload(t *testing.T) {
	env := newTestEnv(t, nil)

	payload := []byte("uploaded contents")
	body, contentType := multipartBody(t, "report.pdf", payload)

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.RemoteAddr = "203.0.113.9:44321"
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth("", testPassword)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	get := env.do(http.MethodGet, "/report.pdf", testPassword, nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, payload, get.Body.Bytes())
	assert.Equal(t, fmt.Sprint(len(payload)), get.Header().Get("Content-Length"))
}

func TestUpload_RejectsOversizedDeclaration(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Upload.MaxBytes = 10
	})

	body, contentType := multipartBody(t, "big.bin", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.RemoteAddr = "203.0.113.9:44321"
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth("", testPassword)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_RejectsNonMultipart(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"not":"multipart"}`))
	req.RemoteAddr = "203.0.113.9:44321"
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("", testPassword)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownload_MissingFile(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/nope.txt", testPassword, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func mintLink(t *testing.T, env *testEnv, body string) linkView {
	t.Helper()

	rec := env.do(http.MethodPost, "/api/shares", testPassword, strings.NewReader(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view linkView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotEmpty(t, view.Token)
	return view
}

func TestShareFlow_MintAndDownloadWithoutAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := []byte("shared file body")
	env.putBlob(t, "doc.txt", payload)

	view := mintLink(t, env, `{"file_path":"doc.txt"}`)
	assert.Equal(t, "/s/"+view.Token, view.URL)
	assert.Equal(t, "doc.txt", view.FileName)

	// No credentials on the share download.
	rec := env.do(http.MethodGet, "/s/"+view.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "doc.txt")
}

func TestShareFlow_MintRequiresExistingFile(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/shares", testPassword,
		strings.NewReader(`{"file_path":"ghost.txt"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareFlow_DownloadLimitExhausts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.putBlob(t, "once.txt", []byte("one shot"))

	view := mintLink(t, env, `{"file_path":"once.txt","max_downloads":1}`)

	first := env.do(http.MethodGet, "/s/"+view.Token, "", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := env.do(http.MethodGet, "/s/"+view.Token, "", nil)
	assert.Equal(t, http.StatusGone, second.Code)
}

func TestShareFlow_PIN(t *testing.T) {
	env := newTestEnv(t, nil)
	env.putBlob(t, "secret.txt", []byte("pin protected"))

	view := mintLink(t, env, `{"file_path":"secret.txt","pin":"1234"}`)
	assert.True(t, view.PINProtected)

	t.Run("no pin asks for one", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/s/"+view.Token, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "secret.txt")
	})

	t.Run("wrong pin does not consume", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/s/"+view.Token+"?pin=0000", "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		stats := env.do(http.MethodGet, "/api/shares/"+view.Token+"/stats", testPassword, nil)
		var after linkView
		require.NoError(t, json.Unmarshal(stats.Body.Bytes(), &after))
		assert.Equal(t, 0, after.DownloadCount)
	})

	t.Run("correct pin downloads", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/s/"+view.Token+"?pin=1234", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pin protected", rec.Body.String())
	})
}

func TestShareFlow_RevokeTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.putBlob(t, "r.txt", []byte("x"))

	view := mintLink(t, env, `{"file_path":"r.txt"}`)

	first := env.do(http.MethodDelete, "/api/shares/"+view.Token, testPassword, nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `"revoked":true`)

	second := env.do(http.MethodDelete, "/api/shares/"+view.Token, testPassword, nil)
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Contains(t, second.Body.String(), `"revoked":false`)

	// The revoked link is gone for downloaders.
	dl := env.do(http.MethodGet, "/s/"+view.Token, "", nil)
	assert.Equal(t, http.StatusGone, dl.Code)
}

func TestShareFlow_ListNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	env.putBlob(t, "a.txt", []byte("a"))
	env.putBlob(t, "b.txt", []byte("b"))

	mintLink(t, env, `{"file_path":"a.txt"}`)
	time.Sleep(5 * time.Millisecond)
	mintLink(t, env, `{"file_path":"b.txt"}`)

	rec := env.do(http.MethodGet, "/api/shares", testPassword, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Links []linkView `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 2)
	assert.Equal(t, "b.txt", resp.Links[0].FileName)
	assert.Equal(t, "a.txt", resp.Links[1].FileName)
}

func TestShareFlow_NoPINMaterialInResponses(t *testing.T) {
	env := newTestEnv(t, nil)
	env.putBlob(t, "p.txt", []byte("x"))

	view := mintLink(t, env, `{"file_path":"p.txt","pin":"9999"}`)

	for _, target := range []string{
		"/api/shares",
		"/api/shares/" + view.Token + "/stats",
	} {
		rec := env.do(http.MethodGet, target, testPassword, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.NotContains(t, body, "9999")
		assert.NotContains(t, body, "pin_hash")
		assert.NotContains(t, body, "pin_salt")
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodGet, "/healthz", "", nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	// One failed and one successful request leave entries.
	env.do(http.MethodGet, "/", "wrong", nil)
	env.do(http.MethodGet, "/", testPassword, nil)

	rec := env.do(http.MethodGet, "/api/audit", testPassword, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []audit.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Entries)
	assert.Equal(t, "auth_failed", resp.Entries[0].Status)
}
