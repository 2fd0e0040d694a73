package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// localBusiness is the subset of schema.org LocalBusiness the site
// embeds on detail pages.
type localBusiness struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Telephone   string          `json:"telephone"`
	URL         string          `json:"url"`
	Address     json.RawMessage `json:"address"`
}

type postalAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	PostalCode      string `json:"postalCode"`
}

// postal decodes the address member, which schema.org allows to be an
// object or a bare string. Only the object form carries usable parts.
func (b *localBusiness) postal() *postalAddress {
	if len(b.Address) == 0 {
		return nil
	}
	var addr postalAddress
	if err := json.Unmarshal(b.Address, &addr); err != nil {
		return nil
	}
	if addr.StreetAddress == "" {
		return nil
	}
	return &addr
}

// findLocalBusiness scans the page's ld+json blocks for the first
// LocalBusiness, either top-level or inside a top-level array.
// Malformed blocks are skipped; structured data is best-effort.
func findLocalBusiness(doc *goquery.Document) *localBusiness {
	var found *localBusiness
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		if b := parseLocalBusiness([]byte(raw)); b != nil {
			found = b
			return false
		}
		return true
	})
	return found
}

func parseLocalBusiness(raw []byte) *localBusiness {
	var one localBusiness
	if err := json.Unmarshal(raw, &one); err == nil && one.Type == "LocalBusiness" {
		return &one
	}

	var many []localBusiness
	if err := json.Unmarshal(raw, &many); err == nil {
		for i := range many {
			if many[i].Type == "LocalBusiness" {
				return &many[i]
			}
		}
	}
	return nil
}
