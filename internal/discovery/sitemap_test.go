package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/harvest-cli/internal/fetch"
)

func TestFromSitemap(t *testing.T) {
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>` + base + `/black-owned-business/acme-bakery/</loc></url>
  <url><loc>` + base + `/black-owned-business/soul-food-kitchen/</loc></url>
  <url><loc>` + base + `/black-owned-business/acme-bakery/</loc></url>
  <url><loc>` + base + `/black-owned-businesses/</loc></url>
  <url><loc>` + base + `/about/</loc></url>
</urlset>`))
	}))
	defer srv.Close()
	base = srv.URL

	client := fetch.NewClient(fetch.Options{RatePerSec: 1000, Burst: 100, Retries: 1})
	res, err := FromSitemap(context.Background(), client, srv.URL+"/businesses-sitemap.xml", LinkFilter{})

	require.NoError(t, err)
	assert.Equal(t, []string{
		base + "/black-owned-business/acme-bakery/",
		base + "/black-owned-business/soul-food-kitchen/",
	}, res.URLs)
}

func TestFromSitemap_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.Options{RatePerSec: 1000, Burst: 100, Retries: 1})
	_, err := FromSitemap(context.Background(), client, srv.URL+"/businesses-sitemap.xml", LinkFilter{})

	assert.Error(t, err)
}
