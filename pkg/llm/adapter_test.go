package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/labtest/pkg/llm"
)

func TestAdapterModelName(t *testing.T) {
	assert.Equal(t, "merlinite-7b-adapters", llm.AdapterModelName("merlinite-7b", "/tmp/model/adapters.npz"))
	assert.Equal(t, "merlinite-latest-adapters", llm.AdapterModelName("merlinite:latest", "adapters.npz"))
}

func TestAdapterRegistrar_Register(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/create", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	name, err := llm.NewAdapterRegistrar(srv.URL).Register(context.Background(), "base", "adapters.npz")
	require.NoError(t, err)
	assert.Equal(t, "base-adapters", name)
	assert.Equal(t, "base-adapters", body["model"])
	assert.Equal(t, false, body["stream"])

	modelfile, _ := body["modelfile"].(string)
	assert.True(t, strings.HasPrefix(modelfile, "FROM base\nADAPTER "))
	assert.True(t, strings.HasSuffix(modelfile, "adapters.npz\n"))
}

func TestAdapterRegistrar_RegisterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid adapter"}`))
	}))
	defer srv.Close()

	_, err := llm.NewAdapterRegistrar(srv.URL).Register(context.Background(), "base", "adapters.npz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid adapter")
}
