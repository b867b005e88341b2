package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/filters"
)

func optionsCmd(rf *rootFlags) *cobra.Command {
	var (
		topic   string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List filter options for a topic and the default selection",
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
			client, closeCache, err := newClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeCache()

			opts, err := client.FetchOptions(ctx, topic)
			if err != nil {
				return err
			}
			sel := filters.Selection{Topic: topic}.ApplyOptions(opts)
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Options   api.FilterOptions `json:"options"`
					Selection filters.Selection `json:"selection"`
				}{opts, sel})
			}
			writeOptions(os.Stdout, opts, sel)
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "topic to list options for (empty: all topics)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func writeOptions(w io.Writer, opts api.FilterOptions, sel filters.Selection) {
	years := make([]string, len(opts.Years))
	for i, y := range opts.Years {
		years[i] = strconv.Itoa(y)
	}
	rows := []struct {
		label  string
		values []string
		chosen string
	}{
		{"Topics", opts.Topics, sel.Topic},
		{"Years", years, yearString(sel.Year)},
		{"Demographics", opts.Demographics, sel.Demographic},
		{"Indicators", opts.Indicators, sel.Indicator},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s (%d)\n", r.label, len(r.values))
		for _, v := range r.values {
			mark := " "
			if v == r.chosen {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, v)
		}
	}
	fmt.Fprintf(w, "\nDefault selection: %s\n", strings.ReplaceAll(sel.Key(), "|", " / "))
}

func yearString(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}
