package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"autoinspect/pkg/domain"
)

func testPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func vehicleWithPhotos(t *testing.T, categories ...domain.PhotoCategory) domain.Vehicle {
	t.Helper()
	v := domain.NewVehicle()
	v.Make = "Toyota"
	v.Model = "Corolla"
	v.Year = "2020"
	for _, c := range categories {
		photo := v.Photos[c]
		photo.Base64 = testPNG(t, 12, 9)
		v.Photos[c] = photo
	}
	return v
}

func testInspection(t *testing.T, vehicles ...domain.Vehicle) domain.Inspection {
	t.Helper()
	return domain.Inspection{
		ID:             "rec-1",
		AgentName:      "J. Lopez",
		InsuredName:    "R. Smith",
		PolicyNumber:   "POL-100",
		InspectionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Vehicles:       vehicles,
	}
}

func TestRenderProducesPDF(t *testing.T) {
	r := New()
	insp := testInspection(t, vehicleWithPhotos(t, domain.CategoryFront, domain.CategoryVIN))

	doc, err := r.Render(context.Background(), insp, ModeFull)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(doc.Bytes, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
	if doc.Stats.Pages < 1 {
		t.Fatalf("pages = %d", doc.Stats.Pages)
	}
	if doc.Stats.PhotoCells != 2 {
		t.Fatalf("photo cells = %d", doc.Stats.PhotoCells)
	}
	if doc.Stats.Placeholders != 0 {
		t.Fatalf("placeholders = %d", doc.Stats.Placeholders)
	}
}

func TestRenderPaginatesAboveFooterBand(t *testing.T) {
	r := New()
	// Two vehicles with every slot captured: eight photo rows total, far more
	// than fits on one page.
	insp := testInspection(t,
		vehicleWithPhotos(t, domain.AllPhotoCategories()...),
		vehicleWithPhotos(t, domain.AllPhotoCategories()...),
	)

	doc, err := r.Render(context.Background(), insp, ModeFull)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.Stats.Pages < 2 {
		t.Fatalf("expected multiple pages, got %d", doc.Stats.Pages)
	}
	if doc.Stats.PhotoCells != 16 {
		t.Fatalf("photo cells = %d", doc.Stats.PhotoCells)
	}
	if limit := DefaultLayout().usableBottom(); doc.Stats.MaxContentY > limit {
		t.Fatalf("content reached %.1f, past the footer band at %.1f", doc.Stats.MaxContentY, limit)
	}
}

func TestRenderBadPhotoDegradesToPlaceholder(t *testing.T) {
	r := New()
	vehicle := vehicleWithPhotos(t,
		domain.CategoryFront, domain.CategoryBack, domain.CategoryLeft,
		domain.CategoryRight, domain.CategoryVIN)
	photo := vehicle.Photos[domain.CategoryBack]
	photo.Base64 = base64.StdEncoding.EncodeToString([]byte("not an image"))
	vehicle.Photos[domain.CategoryBack] = photo

	doc, err := r.Render(context.Background(), testInspection(t, vehicle), ModeFull)
	if err != nil {
		t.Fatalf("one bad photo aborted the render: %v", err)
	}
	if doc.Stats.PhotoCells != 5 {
		t.Fatalf("photo cells = %d", doc.Stats.PhotoCells)
	}
	if doc.Stats.Placeholders != 1 {
		t.Fatalf("placeholders = %d", doc.Stats.Placeholders)
	}
}

func TestRenderEmptySlotsOmitted(t *testing.T) {
	r := New()
	doc, err := r.Render(context.Background(), testInspection(t, vehicleWithPhotos(t)), ModeFull)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.Stats.PhotoCells != 0 {
		t.Fatalf("empty slots produced %d cells", doc.Stats.PhotoCells)
	}
}

func TestRenderTextOnlySkipsDecoding(t *testing.T) {
	r := New()
	vehicle := vehicleWithPhotos(t, domain.CategoryFront)
	photo := vehicle.Photos[domain.CategoryFront]
	photo.Base64 = "!!definitely not base64!!"
	vehicle.Photos[domain.CategoryFront] = photo

	doc, err := r.Render(context.Background(), testInspection(t, vehicle), ModeTextOnly)
	if err != nil {
		t.Fatalf("text-only render decoded a payload: %v", err)
	}
	if doc.Stats.PhotoCells != 1 {
		t.Fatalf("photo cells = %d", doc.Stats.PhotoCells)
	}
	if doc.Stats.Placeholders != 0 {
		t.Fatalf("text-only cells counted as placeholders: %d", doc.Stats.Placeholders)
	}
}

func TestRendererReusableAcrossRenders(t *testing.T) {
	r := New(WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}))
	insp := testInspection(t, vehicleWithPhotos(t, domain.CategoryFront))

	first, err := r.Render(context.Background(), insp, ModeFull)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := r.Render(context.Background(), insp, ModeFull)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if first.Stats != second.Stats {
		t.Fatalf("stats drifted across renders: %+v vs %+v", first.Stats, second.Stats)
	}
}

func TestDecodePayloadDataURLPrefix(t *testing.T) {
	raw := testPNG(t, 4, 3)
	for _, payload := range []string{raw, "data:image/png;base64," + raw} {
		_, format, w, h, err := decodePayload(payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if format != "png" || w != 4 || h != 3 {
			t.Fatalf("decoded %s %dx%d", format, w, h)
		}
	}
	if _, _, _, _, err := decodePayload("@@@"); err == nil {
		t.Fatal("invalid base64 accepted")
	}
	if _, _, _, _, err := decodePayload(base64.StdEncoding.EncodeToString([]byte("junk"))); err == nil {
		t.Fatal("non-image payload accepted")
	}
}
