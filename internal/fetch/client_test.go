package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geopop/harvester/internal/harvest"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:      baseURL,
		APIKey:       "sekrit",
		MaxRetries:   2,
		BackoffBase:  time.Millisecond,
		BackoffLimit: 5 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestFetchPostsParsesPayload(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"author_handle":"vecina_madrid","posted_at":"2012-01-02T09:15:00Z","text":"menuda lluvia"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	window := harvest.DayWindow{Date: time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)}

	posts, err := client.FetchPosts(context.Background(), "vecina_madrid", window)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "vecina_madrid", posts[0].AuthorHandle)
	assert.Equal(t, "menuda lluvia", posts[0].Text)

	assert.Equal(t, "/users/vecina_madrid/posts", gotPath)
	assert.Equal(t, "since=2012-01-02&until=2012-01-03", gotQuery)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}

func TestFetchNeighborsMergesAndDedupes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"followers": [
				{"id":"2","handle":"amiga","location":"madrid"},
				{"id":"3","handle":"otra","location":"barcelona"}
			],
			"following": [
				{"id":"2","handle":"amiga","location":"madrid"},
				{"id":"4","handle":"tercera","location":"valencia"}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	neighbors, err := client.FetchNeighbors(context.Background(), "vecina_madrid")
	require.NoError(t, err)

	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"2", "3", "4"}, ids)
}

func TestLookupAccount(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/vecina_madrid", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","handle":"vecina_madrid","followers":410,"location":"Madrid"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	candidate, err := client.LookupAccount(context.Background(), "vecina_madrid")
	require.NoError(t, err)
	assert.Equal(t, "1", candidate.ID)
	assert.Equal(t, int64(410), candidate.Followers)
}

func TestRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	window := harvest.DayWindow{Date: time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)}

	_, err := client.FetchPosts(context.Background(), "h", window)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.LookupAccount(context.Background(), "nadie")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMalformedJSONIsAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	window := harvest.DayWindow{Date: time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)}
	_, err := client.FetchPosts(context.Background(), "h", window)
	require.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestRetryPolicyClassification(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(3, time.Millisecond, time.Second)

	assert.True(t, p.shouldRetry(&statusError{code: 500}, 0))
	assert.True(t, p.shouldRetry(&statusError{code: 429}, 0))
	assert.False(t, p.shouldRetry(&statusError{code: 403}, 0))
	assert.False(t, p.shouldRetry(&statusError{code: 500}, 3))
	assert.True(t, p.shouldRetry(assertNetErr{}, 1))
}

type assertNetErr struct{}

func (assertNetErr) Error() string { return "dial tcp: connection refused" }
