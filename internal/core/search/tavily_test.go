package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmetic-analyzer/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tavilyServer(t *testing.T, results []map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)

		var req tavilySearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.Contains(t, req.Query, "cosmetic skincare ingredient safety")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}))
	t.Cleanup(server.Close)
	return server
}

func tavilyTestClient(url string) *TavilyClient {
	return NewTavilyClient(&config.TavilyConfig{
		Enabled:    true,
		APIKey:     "test-key",
		BaseURL:    url,
		MaxResults: 3,
		Timeout:    time.Second,
	})
}

func TestTavilySearchKeywordHeuristics(t *testing.T) {
	server := tavilyServer(t, []map[string]string{
		{"title": "a", "content": "This preservative can cause irritation and allergic reactions."},
		{"title": "b", "content": "Known antimicrobial used widely."},
	})
	client := tavilyTestClient(server.URL)

	result, err := client.Search(context.Background(), "Methylparaben")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Methylparaben", result.Name)
	assert.Equal(t, "Preservative", result.Purpose)
	assert.Contains(t, result.Concerns, "potential irritation")
	assert.Equal(t, 6, result.SafetyScore)
	// 兩筆以上結果給較高信心
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
}

func TestTavilySearchSafeContentLowersScore(t *testing.T) {
	server := tavilyServer(t, []map[string]string{
		{"title": "a", "content": "A gentle moisturizer, safe and mild for all skin types."},
	})
	client := tavilyTestClient(server.URL)

	result, err := client.Search(context.Background(), "Glycerin")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Moisturizing agent", result.Purpose)
	assert.Equal(t, 3, result.SafetyScore)
	assert.Contains(t, result.Concerns, "generally safe")
	// 單筆結果給較低信心
	assert.InDelta(t, 0.4, result.Confidence, 1e-9)
}

func TestTavilySearchNoResults(t *testing.T) {
	server := tavilyServer(t, []map[string]string{})
	client := tavilyTestClient(server.URL)

	result, err := client.Search(context.Background(), "Unknownium")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTavilySearchDisabled(t *testing.T) {
	client := NewTavilyClient(&config.TavilyConfig{Enabled: false, BaseURL: "http://localhost:0"})

	result, err := client.Search(context.Background(), "Water")
	require.NoError(t, err)
	assert.Nil(t, result)
}
