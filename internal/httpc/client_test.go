package httpc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mode":"TRACKING","ticks":7}`))
	}))
	defer srv.Close()

	var got struct {
		Mode  string `json:"mode"`
		Ticks int    `json:"ticks"`
	}
	if err := GetJSON(context.Background(), nil, srv.URL, &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Mode != "TRACKING" || got.Ticks != 7 {
		t.Errorf("got %+v", got)
	}
}

func TestDownload(t *testing.T) {
	body := []byte{0xff, 0xd8, 0xff, 0xd9}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := Download(context.Background(), NewClient(DefaultTimeout), srv.URL, &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len(body)) || !bytes.Equal(buf.Bytes(), body) {
		t.Errorf("downloaded %d bytes %x", n, buf.Bytes())
	}
}

func TestNon2xxIsErrStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no frame", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if _, err := Download(context.Background(), nil, srv.URL, &buf); !errors.Is(err, ErrStatus) {
		t.Errorf("err = %v, want ErrStatus", err)
	}
	var v map[string]any
	if err := GetJSON(context.Background(), nil, srv.URL, &v); !errors.Is(err, ErrStatus) {
		t.Errorf("err = %v, want ErrStatus", err)
	}
}
