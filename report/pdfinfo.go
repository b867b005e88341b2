package report

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFInfo describes a written report file.
type PDFInfo struct {
	Pages int
	// ContentSize holds the decoded content length of each page.
	ContentSize []int
}

// BlankPages returns the 1-based numbers of pages that draw nothing.
func (i *PDFInfo) BlankPages() []int {
	var blank []int
	for n, size := range i.ContentSize {
		if size == 0 {
			blank = append(blank, n+1)
		}
	}
	return blank
}

// InspectPDF reads back a PDF and reports its page count and per-page
// content sizes.
func InspectPDF(path string) (*PDFInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	ctx, err := pdfcpu.Read(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}

	info := &PDFInfo{Pages: ctx.PageCount, ContentSize: make([]int, ctx.PageCount)}
	for n := 1; n <= ctx.PageCount; n++ {
		page, _, _, err := ctx.PageDict(n, false)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		contents, ok := page.Find("Contents")
		if !ok {
			continue
		}
		if info.ContentSize[n-1], err = contentLength(ctx, contents); err != nil {
			return nil, fmt.Errorf("page %d contents: %w", n, err)
		}
	}
	return info, nil
}

// VerifyPDF inspects the report at path and fails when it has no pages or
// any page is blank.
func VerifyPDF(path string) (*PDFInfo, error) {
	info, err := InspectPDF(path)
	if err != nil {
		return nil, err
	}
	if info.Pages == 0 {
		return info, fmt.Errorf("%s has no pages", path)
	}
	if blank := info.BlankPages(); len(blank) > 0 {
		return info, fmt.Errorf("%s: blank pages %v", path, blank)
	}
	return info, nil
}

// contentLength sums the decoded length of a page's content streams. A
// Contents entry is either one stream or an array of them.
func contentLength(ctx *model.Context, contents types.Object) (int, error) {
	pending := []types.Object{contents}
	total := 0
	for len(pending) > 0 {
		obj, err := ctx.Dereference(pending[0])
		pending = pending[1:]
		if err != nil {
			return 0, err
		}
		switch v := obj.(type) {
		case types.StreamDict:
			if err := v.Decode(); err != nil {
				return 0, fmt.Errorf("decode: %w", err)
			}
			total += len(v.Content)
		case types.Array:
			pending = append(pending, v...)
		case nil:
		default:
			return 0, fmt.Errorf("contents of type %T", obj)
		}
	}
	return total, nil
}
