package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// excludedWebsiteHosts filters anchors that point at socials, mailing
// lists, and booking platforms rather than the business's own site.
var excludedWebsiteHosts = []string{
	"facebook",
	"instagram",
	"twitter",
	"linkedin",
	"youtube",
	"mailchi.mp",
	"list-manage",
	"google.com",
	"yelp.com",
	"opentable.com/restref",
}

func phoneFromLD(p *Page) (string, bool) {
	b := p.business()
	if b == nil {
		return "", false
	}
	return NormalizePhone(b.Telephone)
}

func phoneFromTelLinks(p *Page) (string, bool) {
	var phone string
	p.Doc.Find(`a[href^="tel:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimPrefix(s.AttrOr("href", ""), "tel:")
		if v, ok := NormalizePhone(raw); ok {
			phone = v
			return false
		}
		if v, ok := NormalizePhone(s.Text()); ok {
			phone = v
			return false
		}
		return true
	})
	return phone, phone != ""
}

func phoneFromText(p *Page) (string, bool) {
	for _, candidate := range phonePattern.FindAllString(p.Text, -1) {
		if v, ok := NormalizePhone(candidate); ok {
			return v, true
		}
	}
	return "", false
}

// emailFromMailto prefers the mailto target and falls back to the link
// text when the href is a placeholder.
func emailFromMailto(siteHosts []string) func(*Page) (string, bool) {
	return func(p *Page) (string, bool) {
		var email string
		p.Doc.Find(`a[href^="mailto:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			addr := strings.TrimPrefix(s.AttrOr("href", ""), "mailto:")
			addr, _, _ = strings.Cut(addr, "?")
			if v, ok := normalizeEmail(addr, siteHosts); ok {
				email = v
				return false
			}
			if text := s.Text(); strings.Contains(text, "@") {
				if v, ok := normalizeEmail(text, siteHosts); ok {
					email = v
					return false
				}
			}
			return true
		})
		return email, email != ""
	}
}

func emailFromText(siteHosts []string) func(*Page) (string, bool) {
	return func(p *Page) (string, bool) {
		for _, candidate := range emailPattern.FindAllString(p.Text, -1) {
			if v, ok := normalizeEmail(candidate, siteHosts); ok {
				return v, true
			}
		}
		return "", false
	}
}

func websiteFromLD(siteHosts []string) func(*Page) (string, bool) {
	return func(p *Page) (string, bool) {
		b := p.business()
		if b == nil {
			return "", false
		}
		href := strings.TrimSpace(b.URL)
		if !externalWebsite(href, siteHosts) {
			return "", false
		}
		return href, true
	}
}

func websiteFromAnchors(siteHosts []string) func(*Page) (string, bool) {
	return func(p *Page) (string, bool) {
		var site string
		p.Doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			if externalWebsite(href, siteHosts) {
				site = href
				return false
			}
			return true
		})
		return site, site != ""
	}
}

// externalWebsite reports whether href plausibly points at the
// business's own site.
func externalWebsite(href string, siteHosts []string) bool {
	lower := strings.ToLower(href)
	if !strings.HasPrefix(lower, "http") {
		return false
	}
	for _, host := range siteHosts {
		if strings.Contains(lower, host) {
			return false
		}
	}
	for _, host := range excludedWebsiteHosts {
		if strings.Contains(lower, host) {
			return false
		}
	}
	return true
}
