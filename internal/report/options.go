// Package report renders a paginated PDF document from an inspection.
package report

// Mode selects what a render pass embeds.
type Mode int

const (
	// ModeFull embeds photo images.
	ModeFull Mode = iota
	// ModeTextOnly skips image embedding, keeping headers and field blocks.
	// Used for fast verification before a full image-heavy render.
	ModeTextOnly
)

// Layout holds the page geometry in points (A4 portrait).
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64

	TitleSize    float64 // title font size, page 1 header
	HeadingSize  float64 // section title font size
	BodySize     float64
	LineHeight   float64 // key-value row height
	SectionGap   float64 // vertical gap before a section title
	HeaderExtra  float64 // additional top offset reserved on page 1
	FooterHeight float64 // band reserved at the bottom of every page

	PhotoColumns  int
	PhotoGutter   float64
	PhotoAspect   float64 // cell height / cell width
	CaptionHeight float64
}

// DefaultLayout returns the standard report geometry.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:  595.28,
		PageHeight: 841.89,
		Margin:     36,

		TitleSize:    18,
		HeadingSize:  12,
		BodySize:     10,
		LineHeight:   16,
		SectionGap:   14,
		HeaderExtra:  24,
		FooterHeight: 28,

		PhotoColumns:  2,
		PhotoGutter:   12,
		PhotoAspect:   3.0 / 4.0,
		CaptionHeight: 14,
	}
}

// contentWidth is the horizontal space between the margins.
func (l Layout) contentWidth() float64 {
	return l.PageWidth - 2*l.Margin
}

// usableBottom is the lowest Y content may reach; the footer band below it
// stays empty until the footer pass.
func (l Layout) usableBottom() float64 {
	return l.PageHeight - l.Margin - l.FooterHeight
}

// photoCellSize derives the grid cell dimensions from column count, gutter,
// and aspect ratio.
func (l Layout) photoCellSize() (w, h float64) {
	cols := l.PhotoColumns
	if cols < 1 {
		cols = 1
	}
	w = (l.contentWidth() - float64(cols-1)*l.PhotoGutter) / float64(cols)
	h = w * l.PhotoAspect
	return w, h
}
