package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"autoinspect/pkg/domain"
)

func writeLegacyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autoinspect_inspections.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	return path
}

const legacyArray = `[
  {
    "id": "legacy-1",
    "agentName": "J. Lopez",
    "inspectionDate": "2023-11-02T00:00:00Z",
    "vehicle": {"make": "Toyota", "model": "Corolla", "year": "2020", "photos": {}},
    "pdfGenerated": true
  },
  {
    "agentName": "M. Reyes",
    "inspectionDate": "2023-12-10T00:00:00Z",
    "vehicles": [{"make": "Ford", "model": "Focus", "year": "2019", "photos": {}}]
  }
]`

func TestMigrateLegacyStoreImportsAndRemovesFile(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	path := writeLegacyFile(t, legacyArray)

	migrated, err := svc.MigrateLegacyStore(ctx, path)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if migrated != 2 {
		t.Fatalf("migrated = %d", migrated)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("legacy file not removed")
	}

	rec, ok := store.GetInspection("legacy-1")
	if !ok {
		t.Fatal("legacy record lost")
	}
	if !rec.PDFGenerated || len(rec.Vehicles) != 1 || rec.Vehicles[0].Model != "Corolla" {
		t.Fatalf("legacy single-vehicle shape mishandled: %+v", rec)
	}
	if len(rec.Vehicles[0].Photos) != len(domain.AllPhotoCategories()) {
		t.Fatal("imported record stored without slot backfill")
	}

	// Second record had no id; one must have been assigned.
	recs := store.ListInspections()
	if len(recs) != 2 {
		t.Fatalf("store holds %d records", len(recs))
	}
	for _, r := range recs {
		if r.ID == "" {
			t.Fatal("imported record stored without id")
		}
	}

	if val, _ := store.Preference("legacy_migration_completed"); val != "true" {
		t.Fatal("migration marker not set")
	}
}

func TestMigrateLegacyStoreWrapperShape(t *testing.T) {
	svc, store := newTestService(t)
	path := writeLegacyFile(t, `{"inspections": [
		{"id": "w-1", "agentName": "A", "inspectionDate": "2023-01-01T00:00:00Z",
		 "vehicles": [{"make": "Kia", "model": "Rio", "year": "2018", "photos": {}}]}
	]}`)

	migrated, err := svc.MigrateLegacyStore(context.Background(), path)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if migrated != 1 {
		t.Fatalf("migrated = %d", migrated)
	}
	if _, ok := store.GetInspection("w-1"); !ok {
		t.Fatal("wrapper-shape record lost")
	}
}

func TestMigrateLegacyStoreIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	path := writeLegacyFile(t, legacyArray)

	if _, err := svc.MigrateLegacyStore(ctx, path); err != nil {
		t.Fatalf("first migrate: %v", err)
	}

	// A stray file reappearing after the marker is set must be ignored.
	path = writeLegacyFile(t, legacyArray)
	migrated, err := svc.MigrateLegacyStore(ctx, path)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if migrated != 0 {
		t.Fatalf("second run imported %d records", migrated)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("second run touched the file despite the marker")
	}
	if got := len(store.ListInspections()); got != 2 {
		t.Fatalf("record set changed on repeat run: %d", got)
	}
}

func TestMigrateLegacyStoreMissingFileStillMarks(t *testing.T) {
	svc, store := newTestService(t)
	path := filepath.Join(t.TempDir(), "never-existed.json")

	migrated, err := svc.MigrateLegacyStore(context.Background(), path)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if migrated != 0 {
		t.Fatalf("migrated = %d", migrated)
	}
	if val, _ := store.Preference("legacy_migration_completed"); val != "true" {
		t.Fatal("marker not set for missing file")
	}
}

func TestMigrateLegacyStoreCorruptFile(t *testing.T) {
	svc, store := newTestService(t)
	path := writeLegacyFile(t, `{not json`)

	_, err := svc.MigrateLegacyStore(context.Background(), path)
	if err == nil {
		t.Fatal("expected decode failure")
	}
	if val, _ := store.Preference("legacy_migration_completed"); val == "true" {
		t.Fatal("marker set despite failed import")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatal("corrupt file removed despite failed import")
	}
}
