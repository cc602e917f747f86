package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"

	"autoinspect/pkg/domain"
)

// GenerationError wraps any failure that aborts a whole render pass. Per-photo
// decode failures never produce one; they degrade to placeholders.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("pdf generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Stats summarizes what a render pass produced. Layout assertions in tests
// read these instead of parsing PDF bytes.
type Stats struct {
	Pages        int
	PhotoCells   int     // grid cells drawn (real images and placeholders)
	Placeholders int     // cells that fell back to a placeholder
	MaxContentY  float64 // lowest Y any content reached, across all pages
}

// Document is the rendered artifact.
type Document struct {
	Bytes []byte
	Stats Stats
}

// Renderer lays out inspection reports. Safe for reuse across renders.
type Renderer struct {
	layout Layout
	clock  func() time.Time
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithLayout overrides the page geometry.
func WithLayout(layout Layout) Option {
	return func(r *Renderer) { r.layout = layout }
}

// WithClock overrides the timestamp source used in the footer.
func WithClock(clock func() time.Time) Option {
	return func(r *Renderer) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New constructs a renderer with the default layout.
func New(opts ...Option) *Renderer {
	r := &Renderer{layout: DefaultLayout(), clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// render tracks the state of one pass.
type render struct {
	pdf    *fpdf.Fpdf
	layout Layout
	stats  Stats
}

// Render produces the report document for an inspection in a single linear
// pass: header, inspector block, then per vehicle a details block and a photo
// grid of only the captured slots. Photos are decoded sequentially, one at a
// time, to bound peak memory.
func (r *Renderer) Render(_ context.Context, insp domain.Inspection, mode Mode) (Document, error) {
	l := r.layout
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(l.Margin, l.Margin, l.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")

	generated := r.clock().UTC()
	pdf.SetFooterFunc(func() {
		pdf.SetY(l.PageHeight - l.Margin - l.FooterHeight + 8)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(l.contentWidth()/2, 10,
			fmt.Sprintf("AutoInspect - %s", generated.Format("2006-01-02 15:04")),
			"", 0, "L", false, 0, "")
		pdf.CellFormat(l.contentWidth()/2, 10,
			fmt.Sprintf("Page %d of {nb}", pdf.PageNo()),
			"", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	st := &render{pdf: pdf, layout: l}
	pdf.AddPage()

	st.drawHeader(insp)
	st.drawSectionTitle("Inspection Details")
	st.drawKeyValue("Agent Name", insp.AgentName)
	st.drawKeyValue("Insured Name", insp.InsuredName)
	st.drawKeyValue("Policy Number", insp.PolicyNumber)
	st.drawKeyValue("Inspection Date", insp.InspectionDate.Format("2006-01-02"))

	for i, vehicle := range insp.Vehicles {
		st.drawVehicle(i, vehicle, mode)
	}

	if err := pdf.Error(); err != nil {
		return Document{}, &GenerationError{Err: err}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, &GenerationError{Err: err}
	}
	st.stats.Pages = pdf.PageCount()
	return Document{Bytes: buf.Bytes(), Stats: st.stats}, nil
}

// ensureSpace starts a new page when the next block of the given height would
// cross into the footer band. Later pages start at the plain top margin; the
// extra header offset applies to page 1 only.
func (st *render) ensureSpace(height float64) {
	if st.pdf.GetY()+height > st.layout.usableBottom() {
		st.pdf.AddPage()
		st.pdf.SetY(st.layout.Margin)
	}
}

func (st *render) touch(y float64) {
	if y > st.stats.MaxContentY {
		st.stats.MaxContentY = y
	}
}

func (st *render) drawHeader(insp domain.Inspection) {
	l := st.layout
	pdf := st.pdf
	pdf.SetY(l.Margin)
	pdf.SetFont("Helvetica", "B", l.TitleSize)
	pdf.CellFormat(l.contentWidth(), l.TitleSize+6, "Vehicle Inspection Report", "", 1, "C", false, 0, "")
	if insp.ID != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(l.contentWidth(), 12, "Report ID: "+insp.ID, "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.SetY(pdf.GetY() + l.HeaderExtra)
	st.touch(pdf.GetY())
}

func (st *render) drawSectionTitle(title string) {
	l := st.layout
	st.ensureSpace(l.SectionGap + l.HeadingSize + 8)
	pdf := st.pdf
	pdf.SetY(pdf.GetY() + l.SectionGap)
	pdf.SetFont("Helvetica", "B", l.HeadingSize)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(l.contentWidth(), l.HeadingSize+8, " "+title, "", 1, "L", true, 0, "")
	st.touch(pdf.GetY())
}

func (st *render) drawKeyValue(label, value string) {
	l := st.layout
	st.ensureSpace(l.LineHeight)
	pdf := st.pdf
	pdf.SetFont("Helvetica", "B", l.BodySize)
	pdf.CellFormat(120, l.LineHeight, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", l.BodySize)
	if value == "" {
		value = "-"
	}
	pdf.CellFormat(l.contentWidth()-120, l.LineHeight, value, "", 1, "L", false, 0, "")
	st.touch(pdf.GetY())
}

func (st *render) drawVehicle(index int, vehicle domain.Vehicle, mode Mode) {
	title := fmt.Sprintf("Vehicle %d", index+1)
	if name := strings.TrimSpace(vehicle.Make + " " + vehicle.Model); name != "" {
		title += ": " + name
	}
	st.drawSectionTitle(title)
	st.drawKeyValue("Make", vehicle.Make)
	st.drawKeyValue("Model", vehicle.Model)
	st.drawKeyValue("Year", vehicle.Year)
	if vehicle.LicensePlate != "" {
		st.drawKeyValue("License Plate", vehicle.LicensePlate)
	}

	var captured []domain.Photo
	for _, category := range domain.AllPhotoCategories() {
		if photo, ok := vehicle.Photos[category]; ok && photo.HasImage() {
			captured = append(captured, photo)
		}
	}
	if len(captured) == 0 {
		st.drawKeyValue("Photos", "(no photos)")
		return
	}

	st.drawSectionTitle("Photos")
	st.drawPhotoGrid(index, captured, mode)
}

// drawPhotoGrid lays captured photos into a fixed-column grid. A row that no
// longer fits above the footer band moves whole to the next page.
func (st *render) drawPhotoGrid(vehicleIndex int, photos []domain.Photo, mode Mode) {
	l := st.layout
	pdf := st.pdf
	cellW, cellH := l.photoCellSize()
	rowH := cellH + l.CaptionHeight + l.PhotoGutter

	for i, photo := range photos {
		col := i % l.PhotoColumns
		if col == 0 {
			st.ensureSpace(rowH)
		}
		x := l.Margin + float64(col)*(cellW+l.PhotoGutter)
		y := pdf.GetY()

		st.stats.PhotoCells++
		name := fmt.Sprintf("photo-%d-%d-%s", vehicleIndex, i, photo.ID)
		if mode == ModeTextOnly {
			st.drawPlaceholder(x, y, cellW, cellH, photo.Name)
		} else if !st.embedImage(name, photo, x, y, cellW, cellH) {
			st.stats.Placeholders++
			st.drawPlaceholder(x, y, cellW, cellH, "image unavailable")
		}

		pdf.SetFont("Helvetica", "", 8)
		pdf.SetXY(x, y+cellH)
		pdf.CellFormat(cellW, l.CaptionHeight, photo.Name, "", 0, "C", false, 0, "")
		st.touch(y + cellH + l.CaptionHeight)

		if col == l.PhotoColumns-1 || i == len(photos)-1 {
			pdf.SetY(y + rowH)
		} else {
			pdf.SetY(y)
		}
	}
}

// embedImage decodes one payload, scales it shrink-to-fit into the cell
// preserving aspect ratio (never upscaling), and draws it centered. Returns
// false when the payload cannot be decoded; the caller degrades to a
// placeholder so one bad photo cannot abort the document.
func (st *render) embedImage(name string, photo domain.Photo, x, y, cellW, cellH float64) bool {
	data, format, width, height, err := decodePayload(photo.Base64)
	if err != nil {
		return false
	}
	pdf := st.pdf
	info := pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: format}, bytes.NewReader(data))
	if info == nil || pdf.Error() != nil {
		// Registration failures are sticky on the document; clear and degrade.
		pdf.ClearError()
		return false
	}

	scale := minFloat(cellW/float64(width), cellH/float64(height))
	if scale > 1 {
		scale = 1
	}
	drawW := float64(width) * scale
	drawH := float64(height) * scale
	offX := x + (cellW-drawW)/2
	offY := y + (cellH-drawH)/2
	pdf.ImageOptions(name, offX, offY, drawW, drawH, false, fpdf.ImageOptions{ImageType: format}, 0, "")
	if pdf.Error() != nil {
		pdf.ClearError()
		return false
	}
	return true
}

func (st *render) drawPlaceholder(x, y, w, h float64, caption string) {
	pdf := st.pdf
	pdf.SetFillColor(225, 225, 225)
	pdf.Rect(x, y, w, h, "F")
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(x, y+h/2-5)
	pdf.CellFormat(w, 10, caption, "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// decodePayload strips an optional data-URL prefix, base64-decodes the
// payload, and probes its true pixel dimensions without a full decode.
func decodePayload(b64 string) (data []byte, format string, width, height int, err error) {
	payload := b64
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode base64: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("probe image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", 0, 0, fmt.Errorf("image has no dimensions")
	}
	return data, format, cfg.Width, cfg.Height, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
