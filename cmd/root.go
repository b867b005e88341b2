// Package cmd implements the medicmap command line and web server.
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/config"
	"github.com/zalepa/medicmap/explorer"
	"github.com/zalepa/medicmap/filters"
	"github.com/zalepa/medicmap/geo"
)

type rootFlags struct {
	configPath string
	apiURL     string
	boundaries string
}

// Root returns the medicmap command tree.
func Root() *cobra.Command {
	var rf rootFlags

	root := &cobra.Command{
		Use:           "medicmap",
		Short:         "Choropleth maps and reports of U.S. health statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&rf.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&rf.apiURL, "api-url", "", "backend host (overrides config and environment)")
	root.PersistentFlags().StringVar(&rf.boundaries, "boundaries", "", "boundary GeoJSON file or URL")

	root.AddCommand(webCmd(&rf))
	root.AddCommand(renderCmd(&rf))
	root.AddCommand(reportCmd(&rf))
	root.AddCommand(optionsCmd(&rf))
	root.AddCommand(downloadCmd(&rf))
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := Root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (rf *rootFlags) load() (config.Config, error) {
	cfg, err := config.Load(rf.configPath)
	if err != nil {
		return cfg, err
	}
	if rf.apiURL != "" {
		cfg.APIURL = rf.apiURL
	}
	if rf.boundaries != "" {
		if isURL(rf.boundaries) {
			cfg.BoundariesURL, cfg.BoundariesFile = rf.boundaries, ""
		} else {
			cfg.BoundariesFile = rf.boundaries
		}
	}
	return cfg, nil
}

// newClient builds the backend client with a Redis cache when configured,
// falling back to an in-memory cache. A zero cache TTL disables caching.
func newClient(ctx context.Context, cfg config.Config) (*api.Client, func(), error) {
	opts := []api.Option{api.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	closer := func() {}
	if cfg.CacheTTL > 0 {
		var cache api.Cache = api.NewMemoryCache()
		if cfg.RedisURL != "" {
			rc, err := api.NewRedisCache(ctx, cfg.RedisURL)
			if err != nil {
				log.Printf("[cache] redis unavailable, using memory cache: %v", err)
			} else {
				cache = rc
				closer = func() { rc.Close() }
			}
		}
		opts = append(opts, api.WithCache(cache, cfg.CacheTTL))
	}

	client, err := api.NewClient(cfg.APIURL, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return client, closer, nil
}

// loadRegions loads boundaries from the configured file, else the URL. A
// failure is logged and yields no regions.
func loadRegions(ctx context.Context, cfg config.Config) geo.Regions {
	var (
		regions geo.Regions
		err     error
		src     string
	)
	if cfg.BoundariesFile != "" {
		src = cfg.BoundariesFile
		regions, err = geo.LoadFile(cfg.BoundariesFile)
	} else {
		src = cfg.BoundariesURL
		regions, err = geo.Load(ctx, &http.Client{Timeout: cfg.Timeout}, cfg.BoundariesURL)
	}
	if err != nil {
		log.Printf("[geo] boundaries unavailable from %s: %v", src, err)
		return nil
	}
	log.Printf("[geo] loaded %d regions from %s", len(regions), src)
	return regions
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func addSelectionFlags(c *cobra.Command, sel *filters.Selection) {
	c.Flags().StringVarP(&sel.Topic, "topic", "t", "", "topic (default: first topic containing \"stroke\")")
	c.Flags().IntVarP(&sel.Year, "year", "y", 0, "year (default: first available)")
	c.Flags().StringVarP(&sel.Demographic, "demographic", "d", "", "demographic (default: \""+filters.DefaultDemographic+"\")")
	c.Flags().StringVarP(&sel.Indicator, "indicator", "i", "", "indicator (default: first for the topic)")
}

// resolve fills sel from the backend options and loads its records.
func resolve(ctx context.Context, backend explorer.Backend, sel filters.Selection) (explorer.View, error) {
	e := explorer.New(backend)
	e.Select(sel)
	err := e.Sync(ctx)
	v := e.Snapshot()
	if err != nil {
		return v, err
	}
	if v.State == explorer.Incomplete {
		return v, api.ErrIncompleteSelection
	}
	return v, nil
}
