package extract

import (
	"net/url"
	"strings"

	"github.com/sells-group/harvest-cli/internal/model"
)

// DefaultSiteHosts are the directory's own domains, excluded from email
// and website candidates so record fields never point back at the
// directory itself.
var DefaultSiteHosts = []string{
	"thevoiceofblackcincinnati.com",
	"voiceofblackcincinnati.com",
}

// DefaultCategoryLinkPath marks taxonomy anchors on detail pages.
const DefaultCategoryLinkPath = "/black-owned-business-type/"

// Options configures an Extractor. Zero values take the directory
// defaults.
type Options struct {
	// SiteHosts are the directory's own domains.
	SiteHosts []string
	// Taxonomy is the category list for text matching, most specific
	// entries first.
	Taxonomy []string
	// CategoryLinkPath is the URL fragment that identifies category
	// anchors.
	CategoryLinkPath string
}

func (o Options) withDefaults() Options {
	if len(o.SiteHosts) == 0 {
		o.SiteHosts = DefaultSiteHosts
	}
	if len(o.Taxonomy) == 0 {
		o.Taxonomy = DefaultTaxonomy
	}
	if o.CategoryLinkPath == "" {
		o.CategoryLinkPath = DefaultCategoryLinkPath
	}
	return o
}

// SiteHostsFrom derives own-domain exclusions from a root URL: the bare
// host plus, when the host starts with "the", the variant without it.
func SiteHostsFrom(rootURL string) []string {
	u, err := url.Parse(rootURL)
	if err != nil || u.Host == "" {
		return DefaultSiteHosts
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	hosts := []string{host}
	if trimmed := strings.TrimPrefix(host, "the"); trimmed != host {
		hosts = append(hosts, trimmed)
	}
	return hosts
}

// Extractor runs a fallback chain per record field. Extractors are
// stateless after construction and safe for concurrent use.
type Extractor struct {
	opts Options

	name        *Chain
	category    *Chain
	description *Chain
	phone       *Chain
	email       *Chain
	website     *Chain
	address     *Chain
}

func New(opts Options) *Extractor {
	opts = opts.withDefaults()
	hosts := opts.SiteHosts

	return &Extractor{
		opts: opts,
		name: NewChain("name",
			Strategy{Name: "entry_title", Fn: nameFromEntryTitle},
			Strategy{Name: "heading", Fn: nameFromHeading},
			Strategy{Name: "page_title", Fn: nameFromTitle},
		),
		category: NewChain("category",
			Strategy{Name: "type_links", Fn: categoryFromLinks(opts.CategoryLinkPath)},
			Strategy{Name: "taxonomy_text", Fn: categoryFromText(opts.Taxonomy)},
		),
		description: NewChain("description",
			Strategy{Name: "jsonld", Fn: descriptionFromLD},
			Strategy{Name: "entry_content", Fn: descriptionFromContent},
			Strategy{Name: "paragraph", Fn: descriptionFromParagraph},
		),
		phone: NewChain("phone",
			Strategy{Name: "jsonld", Fn: phoneFromLD},
			Strategy{Name: "tel_links", Fn: phoneFromTelLinks},
			Strategy{Name: "text_pattern", Fn: phoneFromText},
		),
		email: NewChain("email",
			Strategy{Name: "mailto_links", Fn: emailFromMailto(hosts)},
			Strategy{Name: "text_pattern", Fn: emailFromText(hosts)},
		),
		website: NewChain("website",
			Strategy{Name: "jsonld", Fn: websiteFromLD(hosts)},
			Strategy{Name: "anchor_scan", Fn: websiteFromAnchors(hosts)},
		),
		address: NewChain("address",
			Strategy{Name: "jsonld", Fn: addressFromLD},
			Strategy{Name: "headings", Fn: addressFromHeadings},
			Strategy{Name: "text_pattern", Fn: addressFromText},
		),
	}
}

// Record extracts every field from a page. Fields whose chains miss
// stay empty. A page with no usable heading still gets a name derived
// from its URL slug and is flagged incomplete.
func (e *Extractor) Record(p *Page) model.BusinessRecord {
	rec := model.BusinessRecord{SourceURL: p.URL}

	name, ok := e.name.Extract(p)
	if !ok {
		name = SlugName(p.URL)
		rec.Incomplete = true
	}
	rec.Name = name

	rec.Category, _ = e.category.Extract(p)
	rec.Description, _ = e.description.Extract(p)
	rec.Phone, _ = e.phone.Extract(p)
	rec.Email, _ = e.email.Extract(p)
	rec.Website, _ = e.website.Extract(p)
	rec.Address, _ = e.address.Extract(p)

	return rec
}
