package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ldObjectPage = `<html><head>
<script type="application/ld+json">
{"@type":"LocalBusiness","name":"Acme Bakery","description":"Fresh bread daily.","telephone":"(513) 555-0199","url":"https://acmebakery.com","address":{"streetAddress":"123 Main Street","addressLocality":"Cincinnati","addressRegion":"OH","postalCode":"45202"}}
</script>
</head><body></body></html>`

const ldArrayPage = `<html><head>
<script type="application/ld+json">
[{"@type":"WebSite","name":"The Directory"},{"@type":"LocalBusiness","name":"From Array","telephone":"513-555-0101"}]
</script>
</head><body></body></html>`

const ldMalformedThenValidPage = `<html><head>
<script type="application/ld+json">{not valid json</script>
<script type="application/ld+json">{"@type":"LocalBusiness","name":"Second Block"}</script>
</head><body></body></html>`

func TestPage_Business_Object(t *testing.T) {
	p := mustPage(t, ldObjectPage, detailURL)

	b := p.business()
	require.NotNil(t, b)
	assert.Equal(t, "Acme Bakery", b.Name)
	assert.Equal(t, "Fresh bread daily.", b.Description)
	assert.Equal(t, "(513) 555-0199", b.Telephone)
	assert.Equal(t, "https://acmebakery.com", b.URL)

	addr := b.postal()
	require.NotNil(t, addr)
	assert.Equal(t, "123 Main Street", addr.StreetAddress)
	assert.Equal(t, "Cincinnati", addr.AddressLocality)
	assert.Equal(t, "OH", addr.AddressRegion)
	assert.Equal(t, "45202", addr.PostalCode)
}

func TestPage_Business_Array(t *testing.T) {
	p := mustPage(t, ldArrayPage, detailURL)

	b := p.business()
	require.NotNil(t, b)
	assert.Equal(t, "From Array", b.Name)
}

func TestPage_Business_SkipsMalformedBlocks(t *testing.T) {
	p := mustPage(t, ldMalformedThenValidPage, detailURL)

	b := p.business()
	require.NotNil(t, b)
	assert.Equal(t, "Second Block", b.Name)
}

func TestPage_Business_WrongType(t *testing.T) {
	html := `<html><head><script type="application/ld+json">{"@type":"WebSite","name":"Not a business"}</script></head><body></body></html>`
	p := mustPage(t, html, detailURL)

	assert.Nil(t, p.business())
}

func TestPage_Business_NoBlocks(t *testing.T) {
	p := mustPage(t, "<html><body><p>plain page</p></body></html>", detailURL)

	assert.Nil(t, p.business())
}

func TestPage_Business_Cached(t *testing.T) {
	p := mustPage(t, ldObjectPage, detailURL)

	assert.Same(t, p.business(), p.business())
}

func TestLocalBusiness_Postal_StringAddress(t *testing.T) {
	b := &localBusiness{Address: []byte(`"123 Main Street, Cincinnati"`)}

	assert.Nil(t, b.postal())
}

func TestLocalBusiness_Postal_MissingStreet(t *testing.T) {
	b := &localBusiness{Address: []byte(`{"addressLocality":"Cincinnati"}`)}

	assert.Nil(t, b.postal())
}
