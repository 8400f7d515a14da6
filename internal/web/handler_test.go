// internal/web/handler_test.go
package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weblibrary/internal/config"
	"weblibrary/internal/library"
	"weblibrary/internal/persistence"
)

func newTestServer(t *testing.T) (*httptest.Server, *persistence.Manager) {
	t.Helper()

	store, err := persistence.Open(persistence.DriverSQLite, "file::memory:?_loc=UTC")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))

	lib := library.New()
	lib.AddBook(library.Book{Title: "Clean Code", Author: "R.C. Martin"})
	lib.AddBook(library.Book{Title: "Clean Architecture", Author: "R.C. Martin"})
	lib.AddUser(library.User{Username: "AB", Email: "ab@ab.pl"})
	lib.AddUser(library.User{Username: "CD", Email: "cd@cd.com"})
	require.NoError(t, store.Store(context.Background(), lib))

	cfg := config.Config{PageTitle: "Test Library", CheckoutDays: 30}
	srv := httptest.NewServer(NewHandler(store, cfg).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

// postForm submits a form action without following the redirect, so tests
// can assert on the raw status code.
func postForm(t *testing.T, srv *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Post(srv.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func listBooks(t *testing.T, srv *httptest.Server) map[string]Entry {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/books")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	byTitle := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byTitle[e.Title] = e
	}
	return byTitle
}

func TestIndexPage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "Test Library")
	assert.Contains(t, body, "Clean Code")
	assert.Contains(t, body, "Clean Architecture")
}

func TestCheckOutFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/checkout", url.Values{"title": {"Clean Architecture"}, "username": {"AB"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	books := listBooks(t, srv)
	entry := books["Clean Architecture"]
	assert.False(t, entry.Available)
	assert.Equal(t, "AB", entry.Borrower)
	assert.NotEmpty(t, entry.DueDate)
	assert.True(t, books["Clean Code"].Available)
}

func TestCheckOutConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/checkout", url.Values{"title": {"Clean Architecture"}, "username": {"AB"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = postForm(t, srv, "/checkout", url.Values{"title": {"Clean Architecture"}, "username": {"CD"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The original borrower keeps the book.
	assert.Equal(t, "AB", listBooks(t, srv)["Clean Architecture"].Borrower)
}

func TestCheckOutUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/checkout", url.Values{"title": {"Clean Code"}, "username": {"AG"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.True(t, listBooks(t, srv)["Clean Code"].Available)
}

func TestHoldAndRemoveHold(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/checkout", url.Values{"title": {"Clean Architecture"}, "username": {"AB"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = postForm(t, srv, "/hold", url.Values{"title": {"Clean Architecture"}, "username": {"CD"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "CD", listBooks(t, srv)["Clean Architecture"].Holder)

	resp = postForm(t, srv, "/remove-hold", url.Values{"title": {"Clean Architecture"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Empty(t, listBooks(t, srv)["Clean Architecture"].Holder)
}

func TestHoldAvailableBookConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/hold", url.Values{"title": {"Clean Code"}, "username": {"CD"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	// A caller-supplied id is echoed back unchanged.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	tagged, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer tagged.Body.Close()
	assert.Equal(t, "abc-123", tagged.Header.Get("X-Request-ID"))
}

func TestReturnFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/checkout", url.Values{"title": {"Clean Code"}, "username": {"CD"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = postForm(t, srv, "/return", url.Values{"title": {"Clean Code"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, listBooks(t, srv)["Clean Code"].Available)

	resp = postForm(t, srv, "/return", url.Values{"title": {"Clean Code"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
