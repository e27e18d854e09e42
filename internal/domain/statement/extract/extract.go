// Package extract turns statement PDFs into positioned text fragments.
package extract

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/layout"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

// Extractor opens a document for page-by-page fragment extraction.
type Extractor interface {
	Open(data []byte) (Pages, error)
}

// Pages yields the fragments of one opened document. Page indices are
// zero-based.
type Pages interface {
	NumPages() int
	Fragments(page int) ([]layout.TextFragment, error)
}

// Run is one positioned glyph run as reported by the PDF content stream.
type Run struct {
	Text     string
	X, Y     float64
	Width    float64
	FontSize float64
}

// PDF extracts fragments with github.com/dslipak/pdf.
type PDF struct {
	// WordGap is the horizontal gap, in font-size units, above which two runs
	// on the same line become separate fragments.
	WordGap float64
}

// NewPDF returns a PDF extractor with the default word gap.
func NewPDF() *PDF {
	return &PDF{WordGap: 1.0}
}

// Open parses the PDF structure. Malformed documents fail with
// model.ErrExtraction.
func (e *PDF) Open(data []byte) (p Pages, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", model.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtraction, err)
	}
	return &pdfPages{reader: reader, wordGap: e.WordGap}, nil
}

type pdfPages struct {
	reader  *pdf.Reader
	wordGap float64
}

func (p *pdfPages) NumPages() int { return p.reader.NumPage() }

func (p *pdfPages) Fragments(page int) (frags []layout.TextFragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags, err = nil, fmt.Errorf("%w: page %d: %v", model.ErrExtraction, page, r)
		}
	}()

	if page < 0 || page >= p.reader.NumPage() {
		return nil, fmt.Errorf("%w: page %d out of range", model.ErrExtraction, page)
	}
	pg := p.reader.Page(page + 1)
	if pg.V.IsNull() {
		return nil, nil
	}

	content := pg.Content()
	runs := make([]Run, 0, len(content.Text))
	for _, t := range content.Text {
		runs = append(runs, Run{Text: t.S, X: t.X, Y: t.Y, Width: t.W, FontSize: t.FontSize})
	}
	return MergeRuns(runs, page, p.wordGap), nil
}

// MergeRuns joins glyph runs into word-level fragments. Runs on the same
// baseline separated by at most wordGap font sizes are merged; a blank run or
// a small gap inserts a space.
func MergeRuns(runs []Run, page int, wordGap float64) []layout.TextFragment {
	sorted := append([]Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > baselineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var out []layout.TextFragment
	var cur *layout.TextFragment
	var text strings.Builder
	space := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(text.String())
		if cur.Text != "" {
			out = append(out, *cur)
		}
		cur = nil
		text.Reset()
		space = false
	}

	for _, r := range sorted {
		if strings.TrimSpace(r.Text) == "" {
			space = cur != nil
			continue
		}
		size := r.FontSize
		if size <= 0 {
			size = 1
		}
		if cur != nil {
			end := cur.X + cur.Width
			gap := r.X - end
			sameLine := math.Abs(r.Y-cur.Y) <= baselineTolerance
			if !sameLine || gap > wordGap*size {
				flush()
			} else if space || gap > spaceGap*size {
				text.WriteByte(' ')
			}
		}
		if cur == nil {
			cur = &layout.TextFragment{X: r.X, Y: r.Y, Height: size, Page: page}
		}
		text.WriteString(r.Text)
		cur.Width = math.Max(cur.Width, r.X+r.Width-cur.X)
		space = false
	}
	flush()
	return out
}

const (
	baselineTolerance = 0.5
	spaceGap          = 0.2
)
