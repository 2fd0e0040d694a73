package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const minAddressLen = 10

var addressBoilerplate = []string{
	"post navigation",
	"previous business",
	"next business",
	"share this",
}

func addressFromLD(p *Page) (string, bool) {
	b := p.business()
	if b == nil {
		return "", false
	}
	addr := b.postal()
	if addr == nil {
		return "", false
	}
	parts := []string{addr.StreetAddress}
	if addr.AddressLocality != "" {
		parts = append(parts, addr.AddressLocality)
	}
	if tail := strings.TrimSpace(addr.AddressRegion + " " + addr.PostalCode); tail != "" {
		parts = append(parts, tail)
	}
	return validAddress(strings.Join(parts, ", "))
}

// addressFromHeadings reads <h3> blocks whose text nodes form an
// address, one line per node with <br> separators stripped by the
// parser.
func addressFromHeadings(p *Page) (string, bool) {
	var out string
	p.Doc.Find("h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var lines []string
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) != "#text" {
				return
			}
			if t := collapseSpace(c.Text()); t != "" {
				lines = append(lines, t)
			}
		})
		if len(lines) == 0 || !streetStart.MatchString(lines[0]) {
			return true
		}
		if v, ok := validAddress(strings.Join(lines, ", ")); ok {
			out = v
			return false
		}
		return true
	})
	return out, out != ""
}

func addressFromText(p *Page) (string, bool) {
	for _, candidate := range addressPattern.FindAllString(p.Text, -1) {
		if v, ok := validAddress(candidate); ok {
			return v, true
		}
	}
	return "", false
}

// validAddress collapses whitespace and rejects candidates that are too
// short or are navigation chrome picked up next to real addresses.
func validAddress(s string) (string, bool) {
	addr := collapseSpace(s)
	if utf8.RuneCountInString(addr) < minAddressLen || hasBoilerplate(addr, addressBoilerplate) {
		return "", false
	}
	return addr, true
}
