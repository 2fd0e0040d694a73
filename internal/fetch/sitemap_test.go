package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const businessSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://example.com/black-owned-business/acme-catering/</loc>
    <lastmod>2024-03-01</lastmod>
  </url>
  <url>
    <loc>https://example.com/black-owned-business/joes-barbershop/</loc>
  </url>
  <url>
    <loc> </loc>
  </url>
</urlset>`

func TestDecodeSitemap_URLSet(t *testing.T) {
	pages, children, err := decodeSitemap(strings.NewReader(businessSitemap))
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, []string{
		"https://example.com/black-owned-business/acme-catering/",
		"https://example.com/black-owned-business/joes-barbershop/",
	}, pages)
}

func TestDecodeSitemap_Index(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/businesses-sitemap.xml</loc></sitemap>
  <sitemap><loc>https://example.com/pages-sitemap.xml</loc></sitemap>
</sitemapindex>`

	pages, children, err := decodeSitemap(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, []string{
		"https://example.com/businesses-sitemap.xml",
		"https://example.com/pages-sitemap.xml",
	}, children)
}

func TestDecodeSitemap_NonUTF8Charset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<urlset><url><loc>https://example.com/caf\xe9/</loc></url></urlset>"

	pages, _, err := decodeSitemap(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://example.com/café/", pages[0])
}

func TestDecodeSitemap_Malformed(t *testing.T) {
	_, _, err := decodeSitemap(strings.NewReader("<urlset><url><loc>x</url>"))
	assert.Error(t, err)
}

func TestSitemapLocs_FollowsIndex(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<sitemapindex>
  <sitemap><loc>` + srv.URL + `/businesses-sitemap.xml</loc></sitemap>
</sitemapindex>`))
	})
	mux.HandleFunc("/businesses-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset>
  <url><loc>https://example.com/black-owned-business/one/</loc></url>
  <url><loc>https://example.com/black-owned-business/two/</loc></url>
</urlset>`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(1)
	locs, err := c.SitemapLocs(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/black-owned-business/one/",
		"https://example.com/black-owned-business/two/",
	}, locs)
}

func TestSitemapLocs_RejectsDeepNesting(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/loop.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<sitemapindex>
  <sitemap><loc>` + srv.URL + `/loop.xml</loc></sitemap>
</sitemapindex>`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(1)
	_, err := c.SitemapLocs(context.Background(), srv.URL+"/loop.xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting")
}

func TestSitemapLocs_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(1)
	_, err := c.SitemapLocs(context.Background(), srv.URL+"/sitemap.xml")
	assert.Error(t, err)
}
