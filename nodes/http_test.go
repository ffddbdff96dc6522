package nodes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNodeDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	n, err := NewHTTPNode("h", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{"url": srv.URL})

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
}

func TestHTTPNodeExpandsURLTemplate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	n, err := NewHTTPNode("h", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"url":    srv.URL + "/users/{id}",
		"params": map[string]any{"id": "42"},
	})

	_, err = n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, "/users/42", gotPath)
}

func TestHTTPNodeExtractsWithSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1 class="title">Hello</h1><p>rest</p></body></html>`))
	}))
	defer srv.Close()

	n, err := NewHTTPNode("h", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"url":     srv.URL,
		"extract": "h1.title",
	})

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"extracted": []string{"Hello"}}, out)
}

func TestHTTPNodeFollowsCursorPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"items": ["a"], "next_cursor": "c2"}`)
		case "c2":
			fmt.Fprint(w, `{"items": ["b"], "next_cursor": ""}`)
		default:
			http.Error(w, "bad cursor", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	n, err := NewHTTPNode("h", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{
		"url":      srv.URL,
		"paginate": map[string]any{"limit": 1},
	})

	out, err := n.Run(runContext(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"a", "b"}}, out)
}

func TestHTTPNodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, err := NewHTTPNode("h", nil)
	require.NoError(t, err)
	n.SetResolvedConfig(map[string]any{"url": srv.URL})

	_, err = n.Run(runContext(t))
	assert.Error(t, err)
}
