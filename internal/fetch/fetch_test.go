package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/testutil"
	"github.com/hlop3z/formsandbox/internal/validation"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"method": %q, "auth": %q, "lang": %q, "x": %q, "body": %q}`,
			r.Method, r.Header.Get("Authorization"), r.Header.Get("Accept-Language"), r.Header.Get("X-Key"), string(body))
	}))
	defer srv.Close()

	tests := []struct {
		name  string
		fetch form.Fetch
		want  string
	}{
		{
			name:  "get forwards token and headers",
			fetch: form.Fetch{URL: srv.URL},
			want:  "map[auth:Bearer tok body: lang:es method:GET x:]",
		},
		{
			name:  "component headers win",
			fetch: form.Fetch{URL: srv.URL, Headers: map[string]string{"Accept-Language": "en", "X-Key": "k"}},
			want:  "map[auth:Bearer tok body: lang:en method:GET x:k]",
		},
		{
			name:  "post sends data",
			fetch: form.Fetch{URL: srv.URL, Method: "post"},
			want:  `map[auth:Bearer tok body:{"data":{"q":1}} lang:es method:POST x:]`,
		},
	}
	c := New(WithRetries(0))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Fetch(context.Background(), validation.FetchRequest{
				Path:    "ds",
				Fetch:   tt.fetch,
				Token:   "tok",
				Headers: map[string]string{"Accept-Language": "es"},
				Data:    map[string]any{"q": 1},
			})
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, fmt.Sprint(out), tt.want)
		})
	}
}

func TestFetchRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[1, 2]`)
	}))
	defer srv.Close()

	out, err := New().Fetch(context.Background(), validation.FetchRequest{Fetch: form.Fetch{URL: srv.URL}})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, fmt.Sprint(out), "[1 2]")
	testutil.AssertEqual(t, calls.Load(), int32(2))
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			fmt.Fprint(w, `{not json`)
		}
	}))
	defer srv.Close()

	c := New(WithRetries(0))
	for _, url := range []string{"", srv.URL + "/missing", srv.URL + "/garbage"} {
		_, err := c.Fetch(context.Background(), validation.FetchRequest{Path: "ds", Fetch: form.Fetch{URL: url}})
		testutil.AssertError(t, err, fserr.ErrFetch)
	}
}
