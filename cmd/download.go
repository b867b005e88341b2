package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zalepa/medicmap/geo"
)

func downloadCmd(rf *rootFlags) *cobra.Command {
	var (
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the state boundary GeoJSON for offline use",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := rf.load()
			if err != nil {
				return err
			}

			if _, err := os.Stat(out); err == nil && !force {
				fmt.Fprintf(os.Stderr, "skip %s (already exists)\n", out)
				return nil
			}
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("creating output directory: %w", err)
				}
			}

			fmt.Fprintf(os.Stderr, "downloading %s -> %s\n", cfg.BoundariesURL, out)
			if err := downloadFile(ctx, &http.Client{Timeout: cfg.Timeout}, cfg.BoundariesURL, out); err != nil {
				return fmt.Errorf("downloading %s: %w", cfg.BoundariesURL, err)
			}

			regions, err := geo.LoadFile(out)
			if err != nil {
				os.Remove(out)
				return fmt.Errorf("downloaded file is not usable: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Done: %d regions\n", len(regions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "us-states.json", "output file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// downloadFile writes url to dest through a temporary file so a failed
// transfer never leaves a partial dest behind.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
