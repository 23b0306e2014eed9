package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) (*OpenAI, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewOpenAI("test-key", func(o *OpenAIOptions) {
		o.BaseURL = server.URL
		o.Dimensions = 3
		o.MaxRetries = 2
	})
	return provider, server
}

func TestOpenAIEmbed(t *testing.T) {
	provider, _ := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// Respond out of order; the client must reorder by index.
		resp := openAIEmbedResponse{Data: []openAIEmbedData{
			{Index: 1, Embedding: []float32{4, 5, 6}},
			{Index: 0, Embedding: []float32{1, 2, 3}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	vectors, err := provider.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 2, 3}, vectors[0])
	assert.Equal(t, []float32{4, 5, 6}, vectors[1])
}

func TestOpenAIEmbedEmptyInput(t *testing.T) {
	provider := NewOpenAI("test-key")

	vectors, err := provider.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestOpenAIEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	provider, _ := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream sad", http.StatusBadGateway)
			return
		}
		resp := openAIEmbedResponse{Data: []openAIEmbedData{
			{Index: 0, Embedding: []float32{1, 2, 3}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	vectors, err := provider.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIEmbedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	provider, _ := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad api key", http.StatusUnauthorized)
	})

	_, err := provider.Embed(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmbedCountMismatch(t *testing.T) {
	provider, _ := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		resp := openAIEmbedResponse{Data: []openAIEmbedData{
			{Index: 0, Embedding: []float32{1, 2, 3}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	_, err := provider.Embed(context.Background(), []string{"one", "two"})
	assert.Error(t, err)
}

func TestOpenAIName(t *testing.T) {
	provider := NewOpenAI("key", func(o *OpenAIOptions) {
		o.Model = "text-embedding-3-large"
	})
	assert.Equal(t, "openai:text-embedding-3-large", provider.Name())
}
