package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestParsesTagAndNotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widget/releases/latest", r.URL.Path)
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v1.5.0","body":"## Fixes\n- things"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	rel, err := c.Latest(context.Background(), "acme", "widget")
	require.NoError(t, err)
	assert.Equal(t, "v1.5.0", rel.Tag)
	assert.Equal(t, "## Fixes\n- things", rel.Notes)
}

func TestLatestSendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"tag_name":"v1.0.0"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, WithToken("tok"))
	_, err := c.Latest(context.Background(), "acme", "widget")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestLatestNotFoundIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	rel, err := c.Latest(context.Background(), "acme", "missing")
	assert.Nil(t, rel)
	require.ErrorIs(t, err, ErrNoRelease)
}

func TestLatestEmptyTagIsNoRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	_, err := c.Latest(context.Background(), "acme", "widget")
	require.ErrorIs(t, err, ErrNoRelease)
}

func TestLatestServerErrorIsHard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	_, err := c.Latest(context.Background(), "acme", "widget")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRelease)
}

func TestFetchArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/widget/v1.5.0/Plugins/widget.dll", r.URL.Path)
		_, _ = w.Write([]byte("artifact-bytes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	body, err := c.FetchArtifact(context.Background(), "acme", "widget", "v1.5.0", "Plugins/widget.dll")
	require.NoError(t, err)
	assert.Equal(t, []byte("artifact-bytes"), body)
}

func TestFetchArtifactMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	_, err := c.FetchArtifact(context.Background(), "acme", "widget", "v1.5.0", "Plugins/widget.dll")
	require.Error(t, err)
}
