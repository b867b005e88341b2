package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/zalepa/medicmap/choropleth"
	"github.com/zalepa/medicmap/filters"
)

// Title heads every rendering of a report.
const Title = "Health Analysis Report"

// NoDataMessage replaces the statistics when the record set is empty.
const NoDataMessage = "No data available to generate report."

var printer = message.NewPrinter(language.English)

// FormatAverage renders the mean with at most one fraction digit.
func FormatAverage(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(1)))
}

// Subtitle is the "year • topic • demographic" line under the title.
func Subtitle(sel filters.Selection) string {
	var parts []string
	if sel.Year != 0 {
		parts = append(parts, strconv.Itoa(sel.Year))
	}
	if sel.Topic != "" {
		parts = append(parts, sel.Topic)
	}
	if sel.Demographic != "" {
		parts = append(parts, sel.Demographic)
	}
	return strings.Join(parts, " • ")
}

// WriteText writes a terminal report. st may be nil.
func WriteText(w io.Writer, sel filters.Selection, st *Stats) error {
	var sb strings.Builder
	sb.WriteString(Title + "\n")
	sb.WriteString(Subtitle(sel) + "\n\n")

	if st == nil {
		sb.WriteString(NoDataMessage + "\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	fmt.Fprintf(&sb, "%-16s %s %s\n", "Average Value", FormatAverage(st.Average), st.Unit)
	fmt.Fprintf(&sb, "%-16s %s (%s %s)\n", "Highest State", st.Max.StateName, choropleth.FormatValue(st.Max.Value), st.Unit)
	fmt.Fprintf(&sb, "%-16s %s (%s %s)\n", "Lowest State", st.Min.StateName, choropleth.FormatValue(st.Min.Value), st.Unit)
	fmt.Fprintf(&sb, "%-16s %d\n\n", "States", st.Count)

	if sel.Indicator != "" {
		sb.WriteString("Measured Indicator\n")
		sb.WriteString("  " + sel.Indicator + "\n\n")
	}

	maxName := len("State")
	for _, r := range st.Top {
		if len(r.StateName) > maxName {
			maxName = len(r.StateName)
		}
	}
	valueHeader := "Value"
	if st.Unit != "" {
		valueHeader = "Value (" + st.Unit + ")"
	}
	valueWidth := len(valueHeader)
	if valueWidth < 10 {
		valueWidth = 10
	}

	fmt.Fprintf(&sb, "Top %d Regions\n", TopN)
	rowFmt := fmt.Sprintf("%%-5s %%-%ds  %%%ds\n", maxName, valueWidth)
	fmt.Fprintf(&sb, rowFmt, "Rank", "State", valueHeader)
	sb.WriteString(strings.Repeat("─", 5+1+maxName+2+valueWidth) + "\n")
	for i, r := range st.Top {
		fmt.Fprintf(&sb, rowFmt, "#"+strconv.Itoa(i+1), r.StateName, choropleth.FormatValue(r.Value))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
