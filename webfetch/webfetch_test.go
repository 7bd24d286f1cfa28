package webfetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/webfetch"
)

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := webfetch.New(zap.NewNop())
	body, err := f.Fetch(ctxWithTimeout(t), "baekjoon", srv.URL)
	require.NoError(t, err)
	require.Contains(t, body, "hello")
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := webfetch.New(zap.NewNop())
	body, err := f.Fetch(ctxWithTimeout(t), "codeforces", srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", body)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestExtractTextStripsTags(t *testing.T) {
	text, err := webfetch.ExtractText(`<html><head><style>.x{}</style></head><body><h1>Title</h1><p>Body text</p></body></html>`)
	require.NoError(t, err)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "Body text")
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
