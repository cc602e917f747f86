package domain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewVehicleHasAllSlots(t *testing.T) {
	v := NewVehicle()
	if v.ClientID == "" {
		t.Fatal("expected client id")
	}
	categories := AllPhotoCategories()
	if len(v.Photos) != len(categories) {
		t.Fatalf("expected %d slots, got %d", len(categories), len(v.Photos))
	}
	for _, c := range categories {
		slot, ok := v.Photos[c]
		if !ok {
			t.Fatalf("missing slot %s", c)
		}
		if slot.HasImage() {
			t.Fatalf("slot %s not empty", c)
		}
		if slot.Name != CategoryName(c) {
			t.Fatalf("slot %s name = %q", c, slot.Name)
		}
	}
}

func TestCategoryNameFallback(t *testing.T) {
	if got := CategoryName(CategoryBack); got != "Rear View" {
		t.Fatalf("back name = %q", got)
	}
	if got := CategoryName(PhotoCategory("dashboard")); got != "dashboard" {
		t.Fatalf("unknown category name = %q", got)
	}
	if KnownCategory("dashboard") {
		t.Fatal("dashboard should be unknown")
	}
}

func TestRemoveVehicleKeepsAtLeastOne(t *testing.T) {
	insp := Inspection{Vehicles: []Vehicle{NewVehicle()}}
	original := insp.Vehicles[0].ClientID

	insp.RemoveVehicle(0)

	if len(insp.Vehicles) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(insp.Vehicles))
	}
	replacement := insp.Vehicles[0]
	if replacement.ClientID == original {
		t.Fatal("expected a fresh vehicle, got the removed one")
	}
	if len(replacement.Photos) != len(AllPhotoCategories()) {
		t.Fatal("replacement vehicle missing photo slots")
	}
}

func TestRemoveVehicleMiddle(t *testing.T) {
	a, b, c := NewVehicle(), NewVehicle(), NewVehicle()
	insp := Inspection{Vehicles: []Vehicle{a, b, c}}

	insp.RemoveVehicle(1)

	if len(insp.Vehicles) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(insp.Vehicles))
	}
	if insp.Vehicles[0].ClientID != a.ClientID || insp.Vehicles[1].ClientID != c.ClientID {
		t.Fatal("wrong vehicle removed")
	}

	insp.RemoveVehicle(5) // out of range: no-op
	if len(insp.Vehicles) != 2 {
		t.Fatal("out-of-range removal mutated the list")
	}
}

func TestSavedInspectionUnmarshalLegacySingleVehicle(t *testing.T) {
	raw := []byte(`{
		"id": "rec-1",
		"agentName": "J. Lopez",
		"inspectionDate": "2024-05-01T10:00:00Z",
		"vehicle": {"make": "Toyota", "model": "Corolla", "year": "2020"},
		"pdfGenerated": true
	}`)
	var rec SavedInspection
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rec.Vehicles) != 1 {
		t.Fatalf("expected legacy vehicle wrapped into array, got %d", len(rec.Vehicles))
	}
	if rec.Vehicles[0].Make != "Toyota" {
		t.Fatalf("vehicle make = %q", rec.Vehicles[0].Make)
	}
	if !rec.PDFGenerated {
		t.Fatal("pdfGenerated lost")
	}
}

func TestSavedInspectionUnmarshalCurrentShape(t *testing.T) {
	raw := []byte(`{
		"id": "rec-2",
		"agentName": "A",
		"inspectionDate": "2024-05-01T10:00:00Z",
		"vehicles": [{"make": "Ford"}, {"make": "Kia"}]
	}`)
	var rec SavedInspection
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rec.Vehicles) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(rec.Vehicles))
	}
}

func TestTransientFieldsNotMarshalled(t *testing.T) {
	v := NewVehicle()
	photo := v.Photos[CategoryFront]
	photo.SourcePath = "/tmp/capture.jpg"
	v.Photos[CategoryFront] = photo

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["ClientID"]; ok {
		t.Fatal("client id leaked into JSON")
	}
	if strings.Contains(string(data), "capture.jpg") {
		t.Fatal("source path leaked into JSON")
	}
}

func TestCloneSavedInspectionIndependence(t *testing.T) {
	rec := SavedInspection{
		Inspection: Inspection{
			ID:             "rec-3",
			AgentName:      "A",
			InspectionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Vehicles:       []Vehicle{NewVehicle()},
		},
	}
	cloned := CloneSavedInspection(rec)

	photo := cloned.Vehicles[0].Photos[CategoryFront]
	photo.Base64 = "mutated"
	cloned.Vehicles[0].Photos[CategoryFront] = photo
	cloned.Vehicles[0].Make = "Honda"

	if rec.Vehicles[0].Photos[CategoryFront].Base64 != "" {
		t.Fatal("clone shares photo map with original")
	}
	if rec.Vehicles[0].Make != "" {
		t.Fatal("clone shares vehicle slice with original")
	}
}

type recordingRule struct {
	name     string
	result   Result
	err      error
	calls    int
	lastView RuleView
}

func (r *recordingRule) Name() string { return r.name }

func (r *recordingRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	r.calls++
	r.lastView = view
	return r.result, r.err
}

func TestRulesEngineMergesResults(t *testing.T) {
	engine := NewRulesEngine()
	warn := &recordingRule{name: "warn", result: Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}}}
	block := &recordingRule{name: "block", result: Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}}}
	engine.Register(warn)
	engine.Register(block)

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected merged violations, got %d", len(res.Violations))
	}
	if !res.HasBlocking() {
		t.Fatal("expected blocking result")
	}
	if warn.calls != 1 || block.calls != 1 {
		t.Fatal("rules not evaluated once each")
	}
}

func TestQuotaExceededErrorIdentity(t *testing.T) {
	var err error = &QuotaExceededError{Op: "commit"}
	if !IsQuotaExceeded(err) {
		t.Fatal("direct quota error not recognized")
	}
	wrapped := &WrapErr{Err: err}
	if !IsQuotaExceeded(wrapped) {
		t.Fatal("wrapped quota error not recognized")
	}
	if IsQuotaExceeded(RuleViolationError{}) {
		t.Fatal("rule violation misidentified as quota")
	}
}

// WrapErr is a minimal wrapper to exercise errors.As traversal.
type WrapErr struct{ Err error }

func (w *WrapErr) Error() string { return "wrapped: " + w.Err.Error() }
func (w *WrapErr) Unwrap() error { return w.Err }
