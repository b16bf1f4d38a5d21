package service

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sourcedesk/internal/config"
)

func TestHTMLInspector_PrefersOpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<title>Plain   title</title>
			<meta property="og:title" content="OG title">
			<meta name="description" content="  Plain
			description ">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	meta, err := NewHTMLInspector(time.Second).Inspect(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "OG title", meta.Title)
	assert.Equal(t, "Plain description", meta.Description)
}

func TestHTMLInspector_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTMLInspector(time.Second).Inspect(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPImageProber_PNG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, image.NewRGBA(image.Rect(0, 0, 64, 32)))
	}))
	defer srv.Close()

	width, height, err := NewHTTPImageProber(time.Second).Dimensions(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 64, width)
	assert.Equal(t, 32, height)
}

func TestHTTPImageProber_NotAnImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	_, _, err := NewHTTPImageProber(time.Second).Dimensions(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestResearchService_SearchPapers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)
		assert.Equal(t, "llm agents", r.URL.Query().Get("query"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"paperId":"p1","title":"Agents","url":"https://s2/p1","year":2024,
			"authors":[{"name":"A. Author"}],"openAccessPdf":{"url":"https://s2/p1.pdf"}}]}`))
	}))
	defer srv.Close()

	svc := NewResearchService(&config.ResearchConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	papers, err := svc.SearchPapers(context.Background(), " llm agents ", 3)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "p1", papers[0].PaperID)
	assert.Equal(t, "https://s2/p1.pdf", papers[0].PDFURL)
	assert.Equal(t, []string{"A. Author"}, papers[0].Authors)
}

func TestResearchService_EmptyQuery(t *testing.T) {
	svc := NewResearchService(&config.ResearchConfig{BaseURL: "http://unused"})
	_, err := svc.SearchPapers(context.Background(), "  ", 0)
	assert.True(t, IsInputError(err))
}
