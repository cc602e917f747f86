package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"autoinspect/pkg/domain"
)

// DefaultLegacyStorePath is where old installations kept the flat inspection
// list before the embedded datastore existed.
const DefaultLegacyStorePath = "autoinspect_inspections.json"

// MigrateLegacyStore imports records from the legacy flat-list file exactly
// once. When the migration marker preference is already set it does nothing.
// Otherwise it bulk-replaces the store contents with the legacy records (a
// single transaction, together with setting the marker), then removes the
// legacy file. A missing or empty legacy file still sets the marker, so the
// check never runs again on this installation.
func (s *Service) MigrateLegacyStore(ctx context.Context, path string) (int, error) {
	if path == "" {
		path = DefaultLegacyStorePath
	}
	var migrated int
	err := s.instrument(ctx, "migrate_legacy_store", func(ctx context.Context) error {
		if val, ok := s.store.Preference(prefLegacyMigrated); ok && val == prefLegacyMigratedVal {
			return nil
		}

		recs, found, err := readLegacyStore(path)
		if err != nil {
			return err
		}

		_, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if len(recs) > 0 {
				stored := make([]SavedInspection, 0, len(recs))
				for _, rec := range recs {
					repaired := repairRecord(rec)
					if repaired.ID == "" {
						repaired.ID = s.newInspectionID(repaired.Inspection)
					}
					stored = append(stored, stripForStorage(repaired))
				}
				if err := tx.ReplaceInspections(stored); err != nil {
					return err
				}
			}
			return tx.SetPreference(prefLegacyMigrated, prefLegacyMigratedVal)
		})
		if err != nil {
			return err
		}
		migrated = len(recs)

		if found {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("legacy store migrated but file not removed", "path", path, "error", err)
			}
		}
		s.logger.Info("legacy store migration completed", "records", migrated)
		return nil
	})
	return migrated, err
}

// readLegacyStore loads the flat record list, tolerating both the plain array
// shape and a wrapper object with an "inspections" field. A missing file is
// not an error.
func readLegacyStore(path string) ([]SavedInspection, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read legacy store: %w", err)
	}

	var recs []SavedInspection
	if err := json.Unmarshal(data, &recs); err == nil {
		return recs, true, nil
	}
	var wrapper struct {
		Inspections []SavedInspection `json:"inspections"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, false, fmt.Errorf("decode legacy store: %w", err)
	}
	return wrapper.Inspections, true, nil
}
