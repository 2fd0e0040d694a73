package fetch

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// maxSitemapDepth bounds sitemap index nesting. The sitemaps.org spec
// allows one level; anything deeper is a loop or misconfiguration.
const maxSitemapDepth = 2

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// SitemapLocs fetches a sitemap and returns every page <loc> it lists.
// Sitemap index files are followed.
func (c *Client) SitemapLocs(ctx context.Context, rawURL string) ([]string, error) {
	return c.sitemapLocs(ctx, rawURL, 0)
}

func (c *Client) sitemapLocs(ctx context.Context, rawURL string, depth int) ([]string, error) {
	if depth > maxSitemapDepth {
		return nil, eris.Errorf("fetch: sitemap nesting deeper than %d at %s", maxSitemapDepth, rawURL)
	}

	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	pages, children, err := decodeSitemap(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: sitemap %s", rawURL)
	}

	for _, child := range children {
		childPages, err := c.sitemapLocs(ctx, child, depth+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, childPages...)
	}
	return pages, nil
}

// decodeSitemap streams a sitemaps.org document, splitting page locs
// from child sitemap locs. Charset declarations other than UTF-8 are
// honored via the HTML encoding index.
func decodeSitemap(r io.Reader) ([]string, []string, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var pages, children []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "url", "sitemap":
			var entry sitemapEntry
			if err := decoder.DecodeElement(&entry, &se); err != nil {
				return nil, nil, eris.Wrap(err, "decode entry")
			}
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" {
				continue
			}
			if se.Name.Local == "url" {
				pages = append(pages, loc)
			} else {
				children = append(children, loc)
			}
		}
	}
	return pages, children, nil
}
