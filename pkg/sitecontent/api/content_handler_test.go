package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/store/memory"
	"github.com/tendant/site-content/pkg/sitecontent/viewcache"
)

const seedJSON = `{"hero":{"slides":[1,2]},"welcome":{"title":"Old"},"about":{"text":"Us"}}`

// setupContentHandlerTest creates a router over an in-memory store seeded
// with seedJSON
func setupContentHandlerTest(t *testing.T, opts ...HandlerOption) (http.Handler, sitecontent.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	doc, err := sitecontent.ParseDocument([]byte(seedJSON))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sitecontent.DefaultDocumentKey, doc))

	service, err := sitecontent.New(
		sitecontent.WithStore(store),
		sitecontent.WithPageCache(viewcache.New(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(service.Wait)

	router := chi.NewRouter()
	router.Mount("/api", NewContentHandler(service, opts...).Routes())
	return router, service, store
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestContentHandler_GetContent(t *testing.T) {
	router, _, _ := setupContentHandlerTest(t)

	for _, path := range []string{"/api/content", "/api/content/full"} {
		w := doRequest(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", w.Header().Get("Cache-Control"))
		assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
		assert.Equal(t, "0", w.Header().Get("Expires"))
		assert.JSONEq(t, seedJSON, w.Body.String())
	}
}

func TestContentHandler_GetContent_StoreFailure(t *testing.T) {
	service, err := sitecontent.New(sitecontent.WithStore(memory.New()))
	require.NoError(t, err)
	router := chi.NewRouter()
	router.Mount("/api", NewContentHandler(service).Routes())

	w := doRequest(t, router, http.MethodGet, "/api/content", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to read content"}`, w.Body.String())
}

func TestContentHandler_UpdateContent(t *testing.T) {
	router, service, _ := setupContentHandlerTest(t)

	w := doRequest(t, router, http.MethodPost, "/api/content", `{"welcome":{"title":"New"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	expected := `{"hero":{"slides":[1,2]},"welcome":{"title":"New"},"about":{"text":"Us"}}`
	assert.JSONEq(t, `{"success":true,"data":`+expected+`}`, w.Body.String())

	doc, err := service.Get(context.Background(), sitecontent.DefaultDocumentKey)
	require.NoError(t, err)
	stored, _ := doc.Encode()
	assert.JSONEq(t, expected, string(stored))
}

func TestContentHandler_UpdateContent_InvalidPayload(t *testing.T) {
	router, _, store := setupContentHandlerTest(t)
	before, _ := store.Raw(sitecontent.DefaultDocumentKey)

	for _, body := range []string{`{"welcome":`, `[1,2]`, `"text"`, `null`, ``} {
		w := doRequest(t, router, http.MethodPost, "/api/content", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"Invalid JSON payload"}`, w.Body.String())
	}

	after, _ := store.Raw(sitecontent.DefaultDocumentKey)
	assert.Equal(t, string(before), string(after))
}

func TestContentHandler_UpdateContent_MissingDocument(t *testing.T) {
	service, err := sitecontent.New(sitecontent.WithStore(memory.New()))
	require.NoError(t, err)
	router := chi.NewRouter()
	router.Mount("/api", NewContentHandler(service).Routes())

	w := doRequest(t, router, http.MethodPost, "/api/content", `{"a":1}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to update content"}`, w.Body.String())
}

func TestContentHandler_UpdateContent_Rejected(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Save(context.Background(), sitecontent.DefaultDocumentKey, sitecontent.Document{}))
	service, err := sitecontent.New(
		sitecontent.WithStore(store),
		sitecontent.WithHooks(&sitecontent.Hooks{
			BeforeUpdate: []sitecontent.BeforeUpdateHook{sitecontent.ProtectSections("header")},
		}),
	)
	require.NoError(t, err)
	router := chi.NewRouter()
	router.Mount("/api", NewContentHandler(service).Routes())

	w := doRequest(t, router, http.MethodPost, "/api/content", `{"header":{"logo":"x"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestContentHandler_Sections(t *testing.T) {
	router, _, _ := setupContentHandlerTest(t)

	w := doRequest(t, router, http.MethodGet, "/api/content/sections/welcome", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Old"}`, w.Body.String())

	w = doRequest(t, router, http.MethodGet, "/api/content/sections/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodPut, "/api/content/sections/hero", `{"title":"Only"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]interface{}{"title": "Only"}, body["data"].(map[string]interface{})["hero"])

	w = doRequest(t, router, http.MethodPut, "/api/content/sections/gallery", `["a.jpg","b.jpg"]`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/content/sections/gallery", "")
	assert.JSONEq(t, `["a.jpg","b.jpg"]`, w.Body.String())

	w = doRequest(t, router, http.MethodPut, "/api/content/sections/hero", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentHandler_BatchSections(t *testing.T) {
	router, _, _ := setupContentHandlerTest(t)

	w := doRequest(t, router, http.MethodPost, "/api/content/sections",
		`{"sections":{"about":{"text":"New"},"contact":{"phone":"123"}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["updated"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"text": "New"}, data["about"])
	assert.Equal(t, map[string]interface{}{"phone": "123"}, data["contact"])
	assert.Contains(t, data, "hero")

	w = doRequest(t, router, http.MethodPost, "/api/content/sections", `{"sections":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No sections provided"}`, w.Body.String())

	w = doRequest(t, router, http.MethodPost, "/api/content/sections", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/pages/about/batch", `{"sections":{"about":{"text":"Page"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/pages/blog/batch", `{"sections":{"about":{}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentHandler_GetPage(t *testing.T) {
	router, service, _ := setupContentHandlerTest(t)

	w := doRequest(t, router, http.MethodGet, "/api/pages/home", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hero":{"slides":[1,2]},"welcome":{"title":"Old"}}`, w.Body.String())

	w = doRequest(t, router, http.MethodPut, "/api/pages/home/welcome", `{"title":"Fresh"}`)
	require.Equal(t, http.StatusOK, w.Code)
	service.Wait()

	w = doRequest(t, router, http.MethodGet, "/api/pages/home", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hero":{"slides":[1,2]},"welcome":{"title":"Fresh"}}`, w.Body.String())

	w = doRequest(t, router, http.MethodGet, "/api/pages/blog", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodPut, "/api/pages/blog/welcome", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentHandler_PageScopedWrites(t *testing.T) {
	router, service, store := setupContentHandlerTest(t)

	// A section written through a page reads back through that page
	w := doRequest(t, router, http.MethodPut, "/api/pages/about/about", `{"text":"Ours"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	service.Wait()

	w = doRequest(t, router, http.MethodGet, "/api/pages/about", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"about":{"text":"Ours"}}`, w.Body.String())

	// Sections the page does not render are refused and nothing is stored
	before, _ := store.Raw(sitecontent.DefaultDocumentKey)

	w = doRequest(t, router, http.MethodPut, "/api/pages/about/mission", `{"text":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"Section is not part of this page"}`, w.Body.String())

	w = doRequest(t, router, http.MethodPost, "/api/pages/about/batch",
		`{"sections":{"about":{"text":"y"},"mission":{"text":"x"}}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	after, _ := store.Raw(sitecontent.DefaultDocumentKey)
	assert.Equal(t, string(before), string(after))

	// The unscoped routes still accept any section
	w = doRequest(t, router, http.MethodPut, "/api/content/sections/mission", `{"text":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContentHandler_AdminGuard(t *testing.T) {
	tokenAuth := NewTokenAuth("test-secret")
	router, _, _ := setupContentHandlerTest(t, WithAdminGuard(AdminGuard(tokenAuth)))

	// Reads stay public.
	w := doRequest(t, router, http.MethodGet, "/api/content", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/content", `{"a":1}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": "editor"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/content", bytes.NewReader([]byte(`{"a":1}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, forged, err := NewTokenAuth("other-secret").Encode(map[string]interface{}{"sub": "editor"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, "/api/content/sections/a", bytes.NewReader([]byte(`1`)))
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContentHandler_BodyLimit(t *testing.T) {
	router, _, _ := setupContentHandlerTest(t)
	limited := RequestSizeLimitMiddleware(16)(router)

	w := doRequest(t, limited, http.MethodPost, "/api/content", `{"welcome":{"title":"this is far too long"}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type brokenService struct {
	sitecontent.Service
}

func (brokenService) Update(ctx context.Context, key string, patch sitecontent.Document) (sitecontent.Document, error) {
	return nil, &sitecontent.UpdateError{Key: key, Op: "save", Err: sitecontent.NewStoreError("test", key, "save", errors.New("secret detail"))}
}

func TestContentHandler_ErrorDetailNotLeaked(t *testing.T) {
	router := chi.NewRouter()
	router.Mount("/api", NewContentHandler(brokenService{}).Routes())

	w := doRequest(t, router, http.MethodPost, "/api/content", `{"a":1}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
}
