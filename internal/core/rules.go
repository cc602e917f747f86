package core

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"autoinspect/pkg/domain"
)

// MaxPhotoPayloadBytes is the default ceiling for a single decoded photo
// payload. The UI rejects oversized captures first; the rule is the defensive
// backstop at the storage boundary.
const MaxPhotoPayloadBytes = 5 * 1024 * 1024

// DefaultRulesEngine returns the engine with the standard inspection rules
// registered.
func DefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewVehiclePresenceRule())
	engine.Register(NewYearRangeRule(time.Now))
	engine.Register(NewPhotoPayloadCapRule(MaxPhotoPayloadBytes))
	return engine
}

// NewVehiclePresenceRule blocks storing an inspection without at least one
// vehicle.
func NewVehiclePresenceRule() domain.Rule {
	return vehiclePresenceRule{}
}

type vehiclePresenceRule struct{}

func (vehiclePresenceRule) Name() string { return "vehicle_presence" }

func (vehiclePresenceRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range putRecords(changes) {
		if len(rec.Vehicles) == 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "vehicle_presence",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("inspection %s has no vehicles", rec.ID),
				Entity:   domain.EntityInspection,
				EntityID: rec.ID,
			})
		}
	}
	return res, nil
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// NewYearRangeRule warns when a non-empty vehicle year is not a 4-digit
// number within [1900, now+1]. Blank years pass.
func NewYearRangeRule(now Clock) domain.Rule {
	if now == nil {
		now = time.Now
	}
	return yearRangeRule{now: now}
}

type yearRangeRule struct {
	now Clock
}

func (yearRangeRule) Name() string { return "year_range" }

func (r yearRangeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	maxYear := r.now().Year() + 1
	res := domain.Result{}
	for _, rec := range putRecords(changes) {
		for _, vehicle := range rec.Vehicles {
			if vehicle.Year == "" {
				continue
			}
			valid := yearPattern.MatchString(vehicle.Year)
			if valid {
				year, _ := strconv.Atoi(vehicle.Year)
				valid = year >= 1900 && year <= maxYear
			}
			if !valid {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "year_range",
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("vehicle year %q outside 1900-%d", vehicle.Year, maxYear),
					Entity:   domain.EntityInspection,
					EntityID: rec.ID,
				})
			}
		}
	}
	return res, nil
}

// NewPhotoPayloadCapRule blocks storing a photo whose decoded payload exceeds
// maxBytes.
func NewPhotoPayloadCapRule(maxBytes int64) domain.Rule {
	if maxBytes <= 0 {
		maxBytes = MaxPhotoPayloadBytes
	}
	return photoPayloadCapRule{maxBytes: maxBytes}
}

type photoPayloadCapRule struct {
	maxBytes int64
}

func (photoPayloadCapRule) Name() string { return "photo_payload_cap" }

func (r photoPayloadCapRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range putRecords(changes) {
		for _, vehicle := range rec.Vehicles {
			for _, photo := range vehicle.Photos {
				if decodedSize(photo.Base64) > r.maxBytes {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:     "photo_payload_cap",
						Severity: domain.SeverityBlock,
						Message:  fmt.Sprintf("photo %s exceeds %d byte limit", photo.ID, r.maxBytes),
						Entity:   domain.EntityInspection,
						EntityID: rec.ID,
					})
				}
			}
		}
	}
	return res, nil
}

// decodedSize estimates the decoded byte length of a base64 payload without
// decoding it.
func decodedSize(b64 string) int64 {
	return int64(len(b64)) / 4 * 3
}

// putRecords extracts the inspection records written by a change set. Both
// single puts and replace-all carry the full after-image.
func putRecords(changes []domain.Change) []SavedInspection {
	var out []SavedInspection
	for _, change := range changes {
		if change.Entity != domain.EntityInspection {
			continue
		}
		switch change.Action {
		case domain.ActionPut:
			if rec, ok := change.After.(SavedInspection); ok {
				out = append(out, rec)
			}
		case domain.ActionReplaceAll:
			if recs, ok := change.After.([]SavedInspection); ok {
				out = append(out, recs...)
			}
		}
	}
	return out
}
