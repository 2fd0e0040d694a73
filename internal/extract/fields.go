package extract

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minNameLen = 3
	maxNameLen = 100

	descriptionCap    = 500
	minContentParaLen = 20
	minLooseParaLen   = 50
)

// descriptionBoilerplate marks paragraphs that belong to the page
// chrome rather than the business copy.
var descriptionBoilerplate = []string{
	"post navigation",
	"copyright",
	"all rights reserved",
	"subscribe",
}

func validName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= minNameLen && n <= maxNameLen
}

func headingName(sel *goquery.Selection) (string, bool) {
	var name string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := collapseSpace(s.Text()); validName(t) {
			name = t
			return false
		}
		return true
	})
	return name, name != ""
}

func nameFromEntryTitle(p *Page) (string, bool) {
	return headingName(p.Doc.Find("h1.entry-title"))
}

func nameFromHeading(p *Page) (string, bool) {
	return headingName(p.Doc.Find("h1"))
}

// nameFromTitle takes the part of the <title> before the site suffix.
func nameFromTitle(p *Page) (string, bool) {
	title, _, _ := strings.Cut(p.Doc.Find("title").First().Text(), "|")
	title = collapseSpace(title)
	if !validName(title) {
		return "", false
	}
	return title, true
}

// SlugName derives a display name from the last path segment of a
// detail URL. It is the last resort for pages with no usable heading
// and never returns an empty string.
func SlugName(rawURL string) string {
	const unknown = "Unknown Business"

	u, err := url.Parse(rawURL)
	if err != nil {
		return unknown
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	slug := segs[len(segs)-1]
	slug = strings.ReplaceAll(slug, "-", " ")
	slug = strings.ReplaceAll(slug, "_", " ")
	slug = collapseSpace(slug)
	if slug == "" {
		return unknown
	}
	return cases.Title(language.AmericanEnglish).String(slug)
}

// categoryFromLinks collects the distinct texts of taxonomy anchors in
// document order.
func categoryFromLinks(linkPath string) func(*Page) (string, bool) {
	return func(p *Page) (string, bool) {
		var cats []string
		seen := make(map[string]bool)
		p.Doc.Find(`a[href*=` + cssQuote(linkPath) + `]`).Each(func(_ int, s *goquery.Selection) {
			t := collapseSpace(s.Text())
			if utf8.RuneCountInString(t) <= 3 || seen[t] {
				return
			}
			seen[t] = true
			cats = append(cats, t)
		})
		if len(cats) == 0 {
			return "", false
		}
		return strings.Join(cats, ", "), true
	}
}

// categoryFromText matches page text against the taxonomy. The
// taxonomy's own ordering decides ties, so more specific entries must
// come before their substrings.
func categoryFromText(taxonomy []string) func(*Page) (string, bool) {
	return func(p *Page) (string, bool) {
		for _, cat := range taxonomy {
			if strings.Contains(p.Text, cat) {
				return cat, true
			}
		}
		return "", false
	}
}

func descriptionFromLD(p *Page) (string, bool) {
	b := p.business()
	if b == nil {
		return "", false
	}
	desc := collapseSpace(b.Description)
	if desc == "" {
		return "", false
	}
	return truncate(desc, descriptionCap), true
}

// descriptionFromContent joins the substantial paragraphs among the
// first three of the post body.
func descriptionFromContent(p *Page) (string, bool) {
	var parts []string
	p.Doc.Find("div.entry-content p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		if t := collapseSpace(s.Text()); utf8.RuneCountInString(t) > minContentParaLen {
			parts = append(parts, t)
		}
		return true
	})
	if len(parts) == 0 {
		return "", false
	}
	return truncate(strings.Join(parts, " "), descriptionCap), true
}

// descriptionFromParagraph falls back to the first long paragraph
// anywhere on the page that is not navigation or footer boilerplate.
func descriptionFromParagraph(p *Page) (string, bool) {
	var out string
	p.Doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := collapseSpace(s.Text())
		if utf8.RuneCountInString(t) <= minLooseParaLen || hasBoilerplate(t, descriptionBoilerplate) {
			return true
		}
		out = truncate(t, descriptionCap)
		return false
	})
	return out, out != ""
}

func hasBoilerplate(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, pat := range patterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// cssQuote quotes a value for use inside a CSS attribute selector.
func cssQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
