package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"concierge/pkg/store"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

// fakeSupabase captures PostgREST requests and serves scripted responses
// keyed by method+table.
type fakeSupabase struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string
	status    map[string]int
}

func (f *fakeSupabase) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  map[string]string{},
		}
		for key, values := range r.URL.Query() {
			rec.query[key] = values[0]
		}
		if r.Body != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.body = body
			}
		}

		if got := r.Header.Get("apikey"); got != "service-key" {
			t.Errorf("apikey header = %q, want %q", got, "service-key")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Errorf("authorization header = %q, want bearer token", got)
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		key := r.Method + " " + r.URL.Path
		response, ok := f.responses[key]
		status := f.status[key]
		f.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if ok {
			_, _ = w.Write([]byte(response))
		} else {
			_, _ = w.Write([]byte("[]"))
		}
	}
}

func (f *fakeSupabase) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestStore(t *testing.T, fake *fakeSupabase) *Store {
	t.Helper()

	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	s, err := New(server.URL, "service-key", 20, nil)
	require.NoError(t, err)

	return s
}

func TestNewValidatesSettings(t *testing.T) {
	_, err := New("", "key", 20, nil)
	require.Error(t, err)

	_, err = New("https://example.supabase.co", "", 20, nil)
	require.Error(t, err)

	_, err = New("https://example.supabase.co", "key", 0, nil)
	require.Error(t, err)
}

func TestLookupNamespace(t *testing.T) {
	fake := &fakeSupabase{responses: map[string]string{
		"GET /rest/v1/users": `[{"pinecone_namespace":"guest-house-a"}]`,
	}}
	s := newTestStore(t, fake)

	namespace, err := s.LookupNamespace(context.Background(), "15551230001")
	require.NoError(t, err)
	require.Equal(t, "guest-house-a", namespace)

	requests := fake.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, "pinecone_namespace", requests[0].query["select"])
	require.Equal(t, "eq.15551230001", requests[0].query["phone_number"])
}

func TestLookupNamespaceNotFound(t *testing.T) {
	fake := &fakeSupabase{responses: map[string]string{
		"GET /rest/v1/users": `[]`,
	}}
	s := newTestStore(t, fake)

	_, err := s.LookupNamespace(context.Background(), "15559999999")
	require.True(t, errors.Is(err, store.ErrUserNotFound))
}

func TestRecentHistoryReversesDescendingRows(t *testing.T) {
	fake := &fakeSupabase{responses: map[string]string{
		"GET /rest/v1/conversation_history": `[
			{"sender":"bot","message":"newest"},
			{"sender":"user","message":"older"},
			{"sender":"user","message":"oldest"}
		]`,
	}}
	s := newTestStore(t, fake)

	entries, err := s.RecentHistory(context.Background(), "15551230001", 20)
	require.NoError(t, err)
	require.Equal(t, []store.Entry{
		{Sender: store.RoleUser, Message: "oldest"},
		{Sender: store.RoleUser, Message: "older"},
		{Sender: store.RoleBot, Message: "newest"},
	}, entries)

	requests := fake.recorded()
	require.Len(t, requests, 1)
	require.True(t, strings.HasPrefix(requests[0].query["order"], "timestamp.desc"),
		"order = %q, want timestamp.desc ordering", requests[0].query["order"])
	require.Equal(t, "20", requests[0].query["limit"])
}

func TestAppendHistoryWithinLimitDoesNotDelete(t *testing.T) {
	fake := &fakeSupabase{responses: map[string]string{
		"GET /rest/v1/conversation_history": `[{"id":1},{"id":2}]`,
	}}
	s := newTestStore(t, fake)

	err := s.AppendHistory(context.Background(), "15551230001", store.RoleUser, "hello")
	require.NoError(t, err)

	requests := fake.recorded()
	require.Len(t, requests, 2)
	require.Equal(t, http.MethodPost, requests[0].method)
	require.Equal(t, "15551230001", requests[0].body["user_phone_number"])
	require.Equal(t, "user", requests[0].body["sender"])
	require.Equal(t, "hello", requests[0].body["message"])
	require.Equal(t, http.MethodGet, requests[1].method)
}

func TestAppendHistoryDeletesOldestExcess(t *testing.T) {
	// 22 rows after insert with limit 20: the first two ids (oldest) go.
	ids := "["
	for i := 1; i <= 22; i++ {
		if i > 1 {
			ids += ","
		}
		ids += `{"id":` + strconv.Itoa(i) + `}`
	}
	ids += "]"

	fake := &fakeSupabase{responses: map[string]string{
		"GET /rest/v1/conversation_history": ids,
	}}
	s := newTestStore(t, fake)

	err := s.AppendHistory(context.Background(), "15551230001", store.RoleBot, "reply")
	require.NoError(t, err)

	requests := fake.recorded()
	require.Len(t, requests, 3)
	require.Equal(t, http.MethodDelete, requests[2].method)
	require.Equal(t, "in.(1,2)", requests[2].query["id"])
}

func TestBackendErrorSurfaces(t *testing.T) {
	fake := &fakeSupabase{
		responses: map[string]string{"GET /rest/v1/users": `{"message":"permission denied"}`},
		status:    map[string]int{"GET /rest/v1/users": http.StatusUnauthorized},
	}
	s := newTestStore(t, fake)

	_, err := s.LookupNamespace(context.Background(), "15551230001")
	require.Error(t, err)
	require.False(t, errors.Is(err, store.ErrUserNotFound))
}
