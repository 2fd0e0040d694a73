package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// detailPage mirrors the structure of a real business detail page:
// JSON-LD block, entry title, category anchors, contact anchors, and
// footer chrome that extraction must ignore.
const detailPage = `<html>
<head>
<title>Acme Bakery | The Voice of Black Cincinnati</title>
<script type="application/ld+json">
{"@type":"LocalBusiness","name":"Acme Bakery","description":"Fresh bread and pastries baked daily in Walnut Hills.","telephone":"(513) 555-0199","url":"https://acmebakery.com","address":{"streetAddress":"123 Main Street","addressLocality":"Cincinnati","addressRegion":"OH","postalCode":"45202"}}
</script>
</head>
<body>
<h1 class="entry-title">Acme Bakery</h1>
<div class="entry-content">
<p>Acme Bakery has served fresh bread and pastries to Walnut Hills for more than twenty years.</p>
<a href="/black-owned-business-type/restaurants/">Restaurants</a>
<a href="/black-owned-business-type/catering/">Catering</a>
<a href="https://www.facebook.com/acmebakery">Facebook</a>
<a href="https://acmebakery.com">Visit our website</a>
<a href="tel:+15135550199">(513) 555-0199</a>
<a href="mailto:owner@acmebakery.com">owner@acmebakery.com</a>
</div>
<div class="post-navigation"><p>Post navigation</p></div>
<footer><p>Copyright 2024. All rights reserved.</p></footer>
</body>
</html>`

func TestExtractor_Record_FullPage(t *testing.T) {
	p := mustPage(t, detailPage, detailURL)

	rec := New(Options{}).Record(p)

	assert.Equal(t, "Acme Bakery", rec.Name)
	assert.False(t, rec.Incomplete)
	assert.Equal(t, "Restaurants, Catering", rec.Category)
	assert.Equal(t, "Fresh bread and pastries baked daily in Walnut Hills.", rec.Description)
	assert.Equal(t, "513-555-0199", rec.Phone)
	assert.Equal(t, "owner@acmebakery.com", rec.Email)
	assert.Equal(t, "https://acmebakery.com", rec.Website)
	assert.Equal(t, "123 Main Street, Cincinnati, OH 45202", rec.Address)
	assert.Equal(t, detailURL, rec.SourceURL)
	assert.True(t, rec.HasContact())
}

func TestExtractor_Record_NoJSONLD_UsesFallbacks(t *testing.T) {
	html := `<html>
<head><title>Soul Food Kitchen | The Voice of Black Cincinnati</title></head>
<body>
<div class="entry-content">
<p>Soul Food Kitchen plates classic southern comfort food with recipes passed down three generations.</p>
</div>
<h3>4021 Reading Road<br>Cincinnati, OH 45229</h3>
<p>Call (513) 555-0142 or write to Orders@SoulFoodKitchen.com.</p>
</body>
</html>`
	p := mustPage(t, html, "https://thevoiceofblackcincinnati.com/black-owned-business/soul-food-kitchen/")

	rec := New(Options{}).Record(p)

	assert.Equal(t, "Soul Food Kitchen", rec.Name)
	assert.False(t, rec.Incomplete)
	assert.Equal(t, "513-555-0142", rec.Phone)
	assert.Equal(t, "orders@soulfoodkitchen.com", rec.Email)
	assert.Equal(t, "4021 Reading Road, Cincinnati, OH 45229", rec.Address)
	assert.Contains(t, rec.Description, "southern comfort food")
}

func TestExtractor_Record_BarePage_SlugNameAndIncomplete(t *testing.T) {
	p := mustPage(t, "<html><body></body></html>", "https://thevoiceofblackcincinnati.com/black-owned-business/corner-store/")

	rec := New(Options{}).Record(p)

	assert.Equal(t, "Corner Store", rec.Name)
	assert.True(t, rec.Incomplete)
	assert.Empty(t, rec.Category)
	assert.Empty(t, rec.Phone)
	assert.Empty(t, rec.Email)
	assert.Empty(t, rec.Website)
	assert.Empty(t, rec.Address)
	assert.False(t, rec.HasContact())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()

	assert.Equal(t, DefaultSiteHosts, opts.SiteHosts)
	assert.Equal(t, DefaultTaxonomy, opts.Taxonomy)
	assert.Equal(t, DefaultCategoryLinkPath, opts.CategoryLinkPath)
}

func TestOptions_WithDefaults_KeepsExplicit(t *testing.T) {
	opts := Options{
		SiteHosts:        []string{"example.org"},
		Taxonomy:         []string{"Bookstores"},
		CategoryLinkPath: "/types/",
	}.withDefaults()

	assert.Equal(t, []string{"example.org"}, opts.SiteHosts)
	assert.Equal(t, []string{"Bookstores"}, opts.Taxonomy)
	assert.Equal(t, "/types/", opts.CategoryLinkPath)
}

func TestSiteHostsFrom(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []string
	}{
		{
			name: "directory root",
			url:  "https://thevoiceofblackcincinnati.com/black-owned-businesses/",
			want: []string{"thevoiceofblackcincinnati.com", "voiceofblackcincinnati.com"},
		},
		{
			name: "www stripped",
			url:  "https://www.example.com/page",
			want: []string{"example.com"},
		},
		{
			name: "no the prefix",
			url:  "https://example.com",
			want: []string{"example.com"},
		},
		{
			name: "empty falls back",
			url:  "",
			want: DefaultSiteHosts,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SiteHostsFrom(tt.url))
		})
	}
}

func TestLoadTaxonomy(t *testing.T) {
	path := writeTaxonomy(t, "categories:\n  - Bookstores\n  - Vegan Dining\n")

	cats, err := LoadTaxonomy(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"Bookstores", "Vegan Dining"}, cats)
}

func TestLoadTaxonomy_Empty(t *testing.T) {
	path := writeTaxonomy(t, "categories: []\n")

	_, err := LoadTaxonomy(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no categories")
}

func TestLoadTaxonomy_Malformed(t *testing.T) {
	path := writeTaxonomy(t, "categories: {not: [valid\n")

	_, err := LoadTaxonomy(path)

	assert.Error(t, err)
}

func TestLoadTaxonomy_MissingFile(t *testing.T) {
	_, err := LoadTaxonomy("/nonexistent/taxonomy.yaml")

	assert.Error(t, err)
}
