package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/discovery"
)

var (
	discoverPrint      bool
	discoverSitemap    bool
	discoverCategories bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Preview detail-page discovery without persisting anything",
	Long: `Sweeps the directory and reports the detail-page URLs it finds.

By default the scroll loop runs in a headless browser against the root
listing. Use --sitemap to read the site's sitemap index instead, and
--categories to also sweep the category pages linked from the root.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "discover"))

		var (
			res *discovery.Result
			err error
		)
		if discoverSitemap {
			if cfg.Site.SitemapURL == "" {
				return eris.New("discover: site.sitemap_url is not configured")
			}
			log.Info("reading sitemap", zap.String("url", cfg.Site.SitemapURL))
			res, err = discovery.FromSitemap(ctx, newFetchClient(), cfg.Site.SitemapURL, discovery.LinkFilter{})
		} else {
			session := newSession()
			defer session.Close() //nolint:errcheck
			res, err = discovery.New(session, discoveryOptions(discoverCategories)).Run(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		log.Info("discovery finished",
			zap.Int("urls", len(res.URLs)),
			zap.Int("iterations", res.Iterations),
			zap.Int("categories", len(res.Categories)),
		)

		if discoverPrint {
			for _, u := range res.URLs {
				fmt.Fprintln(os.Stdout, u)
			}
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverPrint, "print", false, "write discovered URLs to stdout, one per line")
	discoverCmd.Flags().BoolVar(&discoverSitemap, "sitemap", false, "discover from the sitemap instead of the rendered listing")
	discoverCmd.Flags().BoolVar(&discoverCategories, "categories", false, "also sweep category pages linked from the root")
	rootCmd.AddCommand(discoverCmd)
}
