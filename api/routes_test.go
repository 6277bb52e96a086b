package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/identity"
	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/SlpAus/trailhead-backend/internal/platform/startup"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret     = "s3cret"
	serviceKey = "comments-key"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", Cors: config.CorsConfig{AllowedOrigins: []string{"http://localhost:5173"}}},
		Remote: config.RemoteConfig{
			Driver:  config.DriverSQLite,
			Timeout: 2 * time.Second,
			SQLite:  config.SQLiteConfig{Path: filepath.Join(dir, "remote.db")},
		},
		Local:  config.LocalConfig{Path: filepath.Join(dir, "local.db")},
		Vote:   config.VoteConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Auth:   config.AuthConfig{JWTSecret: secret, ServiceKey: serviceKey},
		Health: config.HealthConfig{Interval: time.Minute, PingTimeout: time.Second},
		Client: config.ClientConfig{BusyPolicy: "queue"},
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	app, err := startup.Build(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return NewRouter(app)
}

func call(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := identity.IssueToken(secret, "", user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestContentAndVoteRoutes(t *testing.T) {
	r := newTestRouter(t)

	w := call(t, r, http.MethodPost, "/api/content/tips", "A", `{"title":"Hang food 4m up","body":"bears"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(t, r, http.MethodPost, "/api/content/tips/"+created.ID+"/vote", "B", `{"voteType":"down"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"score":-1`)

	w = call(t, r, http.MethodGet, "/api/content/tips/"+created.ID+"/vote", "B", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"down"}`, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/content/tips?sort=top", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	w = call(t, r, http.MethodDelete, "/api/content/tips/"+created.ID, "B", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTripRoutesAndHealth(t *testing.T) {
	r := newTestRouter(t)

	w := call(t, r, http.MethodPost, "/api/trips/trip-1/packing", "A", `{"name":"stove","quantity":1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/trips/trip-1/packing", "A", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"stove"`)

	w = call(t, r, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"failedOver":[]`)
}

func TestCommentCountersNeedServiceKey(t *testing.T) {
	r := newTestRouter(t)

	w := call(t, r, http.MethodPost, "/api/content/questions", "A", `{"title":"Best water filter?"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/api/content/questions/" + created.ID + "/comments"

	// a signed-in user is not the comment service
	w = call(t, r, http.MethodPost, path, "A", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set(identity.ServiceKeyHeader, "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set(identity.ServiceKeyHeader, serviceKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"commentCount":1`)
}

func TestAuthorCannotUnhideThroughPatch(t *testing.T) {
	r := newTestRouter(t)

	w := call(t, r, http.MethodPost, "/api/content/tips", "A", `{"title":"Leave no trace"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(t, r, http.MethodPatch, "/api/content/tips/"+created.ID, "A", `{"hidden":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
