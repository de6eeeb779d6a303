package modrinth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc-resource-manager/config"
)

const knownHash = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

func newTestServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/version_file/{hash}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "sha1", r.URL.Query().Get("algorithm"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if r.PathValue("hash") != knownHash {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(Version{ID: "OihdIimA", ProjectID: "AANobbMI", VersionNumber: "mc1.20.1-0.5.3"})
	})
	mux.HandleFunc("/project/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Project{ID: r.PathValue("id"), Slug: "sodium", Title: "Sodium", Color: 0x8bc34a})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(config.Config{UserAgent: "test-agent"})
	require.NoError(t, err)
	c.BaseURL = srv.URL
	return c
}

func TestNewClientRequiresUserAgent(t *testing.T) {
	_, err := NewClient(config.Config{})
	assert.Error(t, err)
}

func TestGetVersionByHash(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, newTestServer(t, &calls))

	v, err := c.GetVersionByHash(context.Background(), knownHash)
	require.NoError(t, err)
	assert.Equal(t, "AANobbMI", v.ProjectID)

	_, err = c.GetVersionByHash(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProject(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, newTestServer(t, &calls))

	p, err := c.GetProject(context.Background(), "AANobbMI")
	require.NoError(t, err)
	assert.Equal(t, "Sodium", p.Title)

	_, err = c.GetProject(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "status 500")
}

func TestProvenanceLookupCaches(t *testing.T) {
	var calls atomic.Int32
	p := NewProvenance(newTestClient(t, newTestServer(t, &calls)), 16, time.Minute)
	ctx := context.Background()

	src, err := p.Lookup(ctx, knownHash)
	require.NoError(t, err)
	require.NotNil(t, src.Modrinth)
	assert.Equal(t, "OihdIimA", src.Modrinth.VersionID)

	src.Modrinth.VersionID = "mutated"
	again, err := p.Lookup(ctx, knownHash)
	require.NoError(t, err)
	assert.Equal(t, "OihdIimA", again.Modrinth.VersionID)

	unknown, err := p.Lookup(ctx, "ffff")
	require.NoError(t, err)
	assert.Nil(t, unknown)
	unknown, err = p.Lookup(ctx, "ffff")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	assert.Equal(t, int32(2), calls.Load())
}

func TestProvenanceLookupCancelled(t *testing.T) {
	var calls atomic.Int32
	p := NewProvenance(newTestClient(t, newTestServer(t, &calls)), 16, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Lookup(ctx, knownHash)
	assert.ErrorIs(t, err, context.Canceled)
}
