package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	var imageServer *httptest.Server
	imageServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer imageServer.Close()

	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "cats", r.URL.Query().Get("q"))
		// first candidate 404s, second resolves
		_, _ = w.Write([]byte(`"murl":"` + imageServer.URL + `/missing.jpg"` +
			` "murl":"` + imageServer.URL + `/ok.jpg?x=1"`))
	}))
	defer pageServer.Close()

	client := &Client{
		http:     &http.Client{Timeout: 5 * time.Second},
		endpoint: pageServer.URL,
	}

	data, name, err := client.Fetch(context.Background(), "cats", 1)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), data)
	require.Equal(t, "ok", name)
}

func TestClient_Fetch_NoCandidates(t *testing.T) {
	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("nothing here"))
	}))
	defer pageServer.Close()

	client := &Client{
		http:     &http.Client{Timeout: 5 * time.Second},
		endpoint: pageServer.URL,
	}

	_, _, err := client.Fetch(context.Background(), "void", 1)
	require.Error(t, err)
}

func TestClient_Fetch_SourceDown(t *testing.T) {
	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer pageServer.Close()

	client := &Client{
		http:     &http.Client{Timeout: 5 * time.Second},
		endpoint: pageServer.URL,
	}

	_, _, err := client.Fetch(context.Background(), "cats", 1)
	require.Error(t, err)
}

func TestNameFromURL(t *testing.T) {
	require.Equal(t, "sunset", nameFromURL("https://img.example.com/a/sunset.jpg"))
	require.Equal(t, "picture", nameFromURL("https://img.example.com/"))
}
