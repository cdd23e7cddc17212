package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/site-content/pkg/sitecontent"
)

func TestMemoryStore_LoadSave(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Load(ctx, "site-content")
	assert.ErrorIs(t, err, sitecontent.ErrDocumentNotFound)

	doc := sitecontent.Document{"welcome": map[string]interface{}{"title": "Hi"}}
	require.NoError(t, s.Save(ctx, "site-content", doc))

	got, err := s.Load(ctx, "site-content")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	raw, ok := s.Raw("site-content")
	require.True(t, ok)
	assert.Equal(t, "{\n  \"welcome\": {\n    \"title\": \"Hi\"\n  }\n}\n", string(raw))
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	doc := sitecontent.Document{"a": map[string]interface{}{"b": "c"}}
	require.NoError(t, s.Save(ctx, "k", doc))

	// Mutating the saved or loaded maps does not reach the store.
	doc["a"].(map[string]interface{})["b"] = "mutated"
	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	loaded["a"] = "mutated"

	again, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sitecontent.Document{"a": map[string]interface{}{"b": "c"}}, again)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, "k", sitecontent.Document{}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, "k", sitecontent.Document{"n": "x"}))
		}()
		go func() {
			defer wg.Done()
			_, err := s.Load(ctx, "k")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
