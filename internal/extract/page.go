// Package extract pulls business fields out of rendered detail pages.
// Every field runs through an ordered fallback chain of pure
// strategies; a strategy that finds nothing is a miss, never an error.
package extract

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Page is the single parsed representation of one rendered document.
// All strategies share it, so the HTML is parsed once per page.
type Page struct {
	Doc *goquery.Document

	// Text is the whitespace-collapsed visible text of the document.
	Text string

	// URL is the page's source URL.
	URL string

	ldOnce sync.Once
	ld     *localBusiness
}

// NewPage parses rendered HTML into a Page.
func NewPage(html, url string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	return &Page{
		Doc:  doc,
		Text: collapseSpace(doc.Text()),
		URL:  url,
	}, nil
}

// business returns the page's LocalBusiness JSON-LD block, parsed once
// and cached. Nil when the page has none.
func (p *Page) business() *localBusiness {
	p.ldOnce.Do(func() {
		p.ld = findLocalBusiness(p.Doc)
	})
	return p.ld
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
