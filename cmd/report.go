package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zalepa/medicmap/choropleth"
	"github.com/zalepa/medicmap/filters"
	"github.com/zalepa/medicmap/report"
)

func reportCmd(rf *rootFlags) *cobra.Command {
	var (
		sel     filters.Selection
		pdfPath string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize one selection as a text or PDF report",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runReport(c.Context(), rf, sel, pdfPath)
		},
	}
	addSelectionFlags(cmd, &sel)
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write a PDF report to this path instead of text")
	return cmd
}

func runReport(ctx context.Context, rf *rootFlags, sel filters.Selection, pdfPath string) error {
	if ctx == nil {
		ctx = context.Background()
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

	view, err := resolve(ctx, client, sel)
	if err != nil {
		return err
	}
	stats := report.Summarize(view.Records)

	if pdfPath == "" {
		return report.WriteText(os.Stdout, view.Selection, stats)
	}

	// The map page needs boundaries; the report still works without them.
	var layer *choropleth.Layer
	if regions := loadRegions(ctx, cfg); len(regions) > 0 {
		layer = choropleth.NewLayer(view.Selection, regions, view.Records)
	}
	if err := report.WritePDF(pdfPath, view.Selection, layer, stats); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	info, err := report.VerifyPDF(pdfPath)
	if err != nil {
		return fmt.Errorf("checking pdf: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d pages)\n", pdfPath, info.Pages)
	return nil
}
