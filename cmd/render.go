package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/zalepa/medicmap/choropleth"
	"github.com/zalepa/medicmap/filters"
)

type renderOptions struct {
	sel       filters.Selection
	width     int
	height    int
	noLabels  bool
	highlight string
}

func renderCmd(rf *rootFlags) *cobra.Command {
	var ro renderOptions

	cmd := &cobra.Command{
		Use:   "render <out.svg|out.png>",
		Short: "Fetch one selection and render it as an SVG or PNG map",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runRender(c.Context(), rf, ro, args[0])
		},
	}
	addSelectionFlags(cmd, &ro.sel)
	cmd.Flags().IntVar(&ro.width, "width", choropleth.DefaultSVGOptions.Width, "image width")
	cmd.Flags().IntVar(&ro.height, "height", choropleth.DefaultSVGOptions.Height, "image height")
	cmd.Flags().BoolVar(&ro.noLabels, "no-labels", false, "hide the region label overlay")
	cmd.Flags().StringVar(&ro.highlight, "highlight", "", "region code drawn with the hover style")
	return cmd
}

func runRender(ctx context.Context, rf *rootFlags, ro renderOptions, out string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ext := strings.ToLower(filepath.Ext(out))
	if ext != ".svg" && ext != ".png" {
		return fmt.Errorf("unsupported output %q: use .svg or .png", out)
	}

	cfg, err := rf.load()
	if err != nil {
		return err
	}
	client, closeCache, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	regions := loadRegions(ctx, cfg)
	view, err := resolve(ctx, client, ro.sel)
	if err != nil {
		return err
	}
	if len(view.Records) == 0 {
		fmt.Fprintf(os.Stderr, "warning: no data for %s\n", view.Selection.Key())
	}

	r := choropleth.NewRenderer(regions)
	defer r.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	err = r.Render(view.Selection, view.Records, ro.highlight, func(layer *choropleth.Layer) error {
		if ext == ".png" {
			return choropleth.WritePNG(w, layer, vg.Length(ro.width), vg.Length(ro.height), !ro.noLabels)
		}
		return choropleth.WriteSVG(w, layer, choropleth.SVGOptions{Width: ro.width, Height: ro.height, Labels: !ro.noLabels})
	})
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(os.Stderr, "wrote %s (%s, %d states)\n", out, view.Selection.Key(), len(view.Records))
	return nil
}
