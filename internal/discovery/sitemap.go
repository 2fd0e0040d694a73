package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/fetch"
)

// FromSitemap enumerates detail URLs from the businesses sitemap,
// bypassing the rendering session entirely. It finds pages the scroll
// loop can miss, at the cost of trusting the site to keep the sitemap
// current.
func FromSitemap(ctx context.Context, client *fetch.Client, sitemapURL string, filter LinkFilter) (*Result, error) {
	filter = filter.withDefaults()

	locs, err := client.SitemapLocs(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	seen := make(map[string]bool)
	for _, loc := range locs {
		canonical, ok := Canonicalize(nil, loc)
		if !ok || !filter.Match(canonical) || seen[canonical] {
			continue
		}
		seen[canonical] = true
		res.URLs = append(res.URLs, canonical)
	}

	zap.L().Info("discovery: sitemap read",
		zap.String("url", sitemapURL),
		zap.Int("locs", len(locs)),
		zap.Int("matched", len(res.URLs)))
	return res, nil
}
