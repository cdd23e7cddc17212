package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent/api"
	"github.com/tendant/site-content/pkg/sitecontent/config"
)

func newTestServer(t *testing.T, opts ...config.Option) (*HTTPServer, *config.Runtime) {
	t.Helper()
	opts = append([]config.Option{
		config.WithEnvironment("testing"),
		config.WithMemoryStorage(),
		config.WithInvalidationLogging(false),
	}, opts...)
	cfg, err := config.Load(opts...)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rt, err := cfg.Build(context.Background(), nil, reg)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	return NewHTTPServer(rt, cfg, nil, reg), rt
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()

	for _, path := range []string{"/", "/health", "/healthz"} {
		rr := do(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String(), path)
	}

	rr := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSeedThenMerge(t *testing.T) {
	dir := t.TempDir()
	seedFile := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedFile, []byte(`{"hero":{"title":"Welcome","subtitle":"Hi"}}`), 0o644))

	s, rt := newTestServer(t, config.WithSeedFile(seedFile))
	require.NoError(t, seed(context.Background(), s.config, rt))
	h := s.Routes()

	rr := do(t, h, http.MethodPost, "/api/content", `{"hero":{"title":"Hello"}}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/content/sections/hero", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"title":"Hello","subtitle":"Hi"}`, rr.Body.String())
	assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", rr.Header().Get("Cache-Control"))

	// A second seed must not overwrite the merged document
	require.NoError(t, seed(context.Background(), s.config, rt))
	rr = do(t, h, http.MethodGet, "/api/content", "", nil)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "Hello", doc["hero"].(map[string]interface{})["title"])

	rt.Service.Wait()
}

func TestAdminRoutesRequireToken(t *testing.T) {
	const secret = "test-secret"
	s, rt := newTestServer(t, config.WithJWTSecret(secret))
	h := s.Routes()

	rr := do(t, h, http.MethodPut, "/api/content/sections/hero", `{"title":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	_, token, err := api.NewTokenAuth(secret).Encode(map[string]interface{}{"sub": "admin"})
	require.NoError(t, err)
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	rr = do(t, h, http.MethodPut, "/api/content/sections/hero", `{"title":"x"}`, header)
	// Updates need a seeded document
	assert.Equal(t, http.StatusInternalServerError, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"error":"Failed to update content"}`, rr.Body.String())

	_, err = rt.Service.Seed(context.Background(), s.config.DocumentKey, map[string]interface{}{"hero": map[string]interface{}{}})
	require.NoError(t, err)
	rr = do(t, h, http.MethodPut, "/api/content/sections/hero", `{"title":"x"}`, header)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Reads stay public
	rr = do(t, h, http.MethodGet, "/api/content/sections/hero", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rt.Service.Wait()
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, config.WithAllowedOrigins(api.ExpandOrigins("example.org")...))
	h := s.Routes()

	preflight := func(origin string) http.Header {
		return http.Header{
			"Origin":                        []string{origin},
			"Access-Control-Request-Method": []string{http.MethodPost},
		}
	}

	rr := do(t, h, http.MethodOptions, "/api/content", "", preflight("https://example.org"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://example.org", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = do(t, h, http.MethodOptions, "/api/content", "", preflight("https://evil.example"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
