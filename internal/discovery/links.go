package discovery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// LinkFilter decides which anchors on a directory page are business
// detail links. The zero value is replaced by DefaultLinkFilter.
type LinkFilter struct {
	// DetailPath is the substring that marks a detail-page URL.
	DetailPath string
	// ListingSuffix marks the listing page itself, which links back to
	// its own URL and must not be collected.
	ListingSuffix string
	// MinSlashes rejects section roots that share the detail path but
	// are not a business page.
	MinSlashes int
}

func DefaultLinkFilter() LinkFilter {
	return LinkFilter{
		DetailPath:    "black-owned-business/",
		ListingSuffix: "black-owned-businesses/",
		MinSlashes:    5,
	}
}

func (f LinkFilter) withDefaults() LinkFilter {
	if f == (LinkFilter{}) {
		return DefaultLinkFilter()
	}
	return f
}

// Match reports whether a canonical URL is a business detail page.
func (f LinkFilter) Match(u string) bool {
	if !strings.Contains(u, f.DetailPath) {
		return false
	}
	if strings.HasSuffix(u, f.ListingSuffix) {
		return false
	}
	return strings.Count(u, "/") >= f.MinSlashes
}

// Canonicalize resolves href against base and strips query and
// fragment. Listing identity is the canonical URL, so two anchors that
// differ only in tracking parameters collapse to one identifier.
func Canonicalize(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

// DetailLinks extracts the canonical business detail URLs present in
// html, deduplicated, in document order.
func DetailLinks(html string, base *url.URL, f LinkFilter) ([]string, error) {
	return scanLinks(html, base, f.Match)
}

// CategoryPages extracts the canonical category listing URLs present
// in html, deduplicated, in document order.
func CategoryPages(html string, base *url.URL, linkPath string) ([]string, error) {
	return scanLinks(html, base, func(u string) bool {
		return strings.Contains(u, linkPath)
	})
}

func scanLinks(html string, base *url.URL, match func(string) bool) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse page")
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		canonical, ok := Canonicalize(base, s.AttrOr("href", ""))
		if !ok || !match(canonical) || seen[canonical] {
			return
		}
		seen[canonical] = true
		links = append(links, canonical)
	})
	return links, nil
}
