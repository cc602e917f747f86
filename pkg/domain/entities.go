// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by autoinspect.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityInspection identifies a saved inspection record.
	EntityInspection EntityType = "inspection"
	// EntityPreference identifies a scalar preference value.
	EntityPreference EntityType = "preference"
)

// PhotoCategory is the fixed key of a photo slot on a vehicle (e.g. "front", "vin").
type PhotoCategory string

// Canonical photo categories. Every vehicle carries one slot per category,
// present even when empty.
const (
	CategoryFront        PhotoCategory = "front"
	CategoryBack         PhotoCategory = "back"
	CategoryLeft         PhotoCategory = "left"
	CategoryRight        PhotoCategory = "right"
	CategoryVIN          PhotoCategory = "vin"
	CategoryRegistration PhotoCategory = "registration"
	CategoryOwnerID      PhotoCategory = "ownerId"
	CategoryLocation     PhotoCategory = "location"
)

// PhotoCategoryDetail describes the display properties of a category.
type PhotoCategoryDetail struct {
	ID   PhotoCategory
	Name string
}

var photoCategoryOrder = []PhotoCategory{
	CategoryFront,
	CategoryBack,
	CategoryLeft,
	CategoryRight,
	CategoryVIN,
	CategoryRegistration,
	CategoryOwnerID,
	CategoryLocation,
}

var photoCategoryConfig = map[PhotoCategory]PhotoCategoryDetail{
	CategoryFront:        {ID: CategoryFront, Name: "Front View"},
	CategoryBack:         {ID: CategoryBack, Name: "Rear View"},
	CategoryLeft:         {ID: CategoryLeft, Name: "Left Side"},
	CategoryRight:        {ID: CategoryRight, Name: "Right Side"},
	CategoryVIN:          {ID: CategoryVIN, Name: "VIN Number"},
	CategoryRegistration: {ID: CategoryRegistration, Name: "Vehicle Registration"},
	CategoryOwnerID:      {ID: CategoryOwnerID, Name: "Owner ID"},
	CategoryLocation:     {ID: CategoryLocation, Name: "Location Screenshot"},
}

// AllPhotoCategories returns the canonical category set in display order.
func AllPhotoCategories() []PhotoCategory {
	out := make([]PhotoCategory, len(photoCategoryOrder))
	copy(out, photoCategoryOrder)
	return out
}

// CategoryName returns the display name for a category. Unknown categories
// fall back to the raw key so legacy payloads still render.
func CategoryName(c PhotoCategory) string {
	if detail, ok := photoCategoryConfig[c]; ok {
		return detail.Name
	}
	return string(c)
}

// KnownCategory reports whether c is part of the canonical category set.
func KnownCategory(c PhotoCategory) bool {
	_, ok := photoCategoryConfig[c]
	return ok
}

// Photo is one category slot on a vehicle. An empty Base64 means the slot
// exists but holds no captured image.
type Photo struct {
	ID     PhotoCategory `json:"id"`
	Name   string        `json:"name"`
	Base64 string        `json:"base64,omitempty"`
	Note   string        `json:"note,omitempty"`

	// SourcePath holds a capture-time file reference and is never persisted.
	SourcePath string `json:"-"`
}

// NewPhoto creates an empty slot for the given category.
func NewPhoto(c PhotoCategory) Photo {
	return Photo{ID: c, Name: CategoryName(c)}
}

// HasImage reports whether the slot holds a captured image payload.
func (p Photo) HasImage() bool { return p.Base64 != "" }

// Vehicle is one inspected vehicle within an inspection.
type Vehicle struct {
	// ClientID keys the vehicle in UI lists only and is never persisted.
	ClientID     string                  `json:"-"`
	Make         string                  `json:"make"`
	Model        string                  `json:"model"`
	Year         string                  `json:"year"`
	LicensePlate string                  `json:"licensePlate,omitempty"`
	Photos       map[PhotoCategory]Photo `json:"photos"`
}

// NewVehicle returns a blank vehicle with every photo slot present and empty.
func NewVehicle() Vehicle {
	v := Vehicle{
		ClientID: NewClientID(),
		Photos:   make(map[PhotoCategory]Photo, len(photoCategoryOrder)),
	}
	for _, c := range photoCategoryOrder {
		v.Photos[c] = NewPhoto(c)
	}
	return v
}

// NewClientID mints a UI-scoped vehicle identity.
func NewClientID() string {
	return "vehicle_" + uuid.NewString()
}

// Inspection is the top-level record being authored.
type Inspection struct {
	// ID is empty while the record is still in the wizard; it is assigned on
	// first save-and-generate and immutable afterwards.
	ID             string    `json:"id"`
	AgentName      string    `json:"agentName"`
	InsuredName    string    `json:"insuredName,omitempty"`
	PolicyNumber   string    `json:"policyNumber,omitempty"`
	InspectionDate time.Time `json:"inspectionDate"`
	Vehicles       []Vehicle `json:"vehicles"`
}

// PrimaryVehicle returns the first vehicle, or a zero Vehicle when none exist.
func (i Inspection) PrimaryVehicle() Vehicle {
	if len(i.Vehicles) == 0 {
		return Vehicle{}
	}
	return CloneVehicle(i.Vehicles[0])
}

// RemoveVehicle deletes the vehicle at index. Removing the last vehicle
// substitutes a fresh blank one; an inspection never holds zero vehicles.
func (i *Inspection) RemoveVehicle(index int) {
	if index < 0 || index >= len(i.Vehicles) {
		return
	}
	i.Vehicles = append(i.Vehicles[:index], i.Vehicles[index+1:]...)
	if len(i.Vehicles) == 0 {
		i.Vehicles = []Vehicle{NewVehicle()}
	}
}

// SavedInspection is the only form ever written to the datastore.
type SavedInspection struct {
	Inspection
	PDFGenerated bool `json:"pdfGenerated"`
}

// savedInspectionJSON mirrors the wire shape including the legacy
// single-vehicle field written by old installations.
type savedInspectionJSON struct {
	ID             string    `json:"id"`
	AgentName      string    `json:"agentName"`
	InsuredName    string    `json:"insuredName,omitempty"`
	PolicyNumber   string    `json:"policyNumber,omitempty"`
	InspectionDate time.Time `json:"inspectionDate"`
	Vehicles       []Vehicle `json:"vehicles,omitempty"`
	Vehicle        *Vehicle  `json:"vehicle,omitempty"`
	PDFGenerated   bool      `json:"pdfGenerated"`
}

// UnmarshalJSON accepts both the current vehicles-array shape and the legacy
// single-vehicle shape, wrapping the latter into a one-element array. Slot
// backfill happens at the repository layer, not here.
func (s *SavedInspection) UnmarshalJSON(data []byte) error {
	var aux savedInspectionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.ID = aux.ID
	s.AgentName = aux.AgentName
	s.InsuredName = aux.InsuredName
	s.PolicyNumber = aux.PolicyNumber
	s.InspectionDate = aux.InspectionDate
	s.PDFGenerated = aux.PDFGenerated
	switch {
	case aux.Vehicles != nil:
		s.Vehicles = aux.Vehicles
	case aux.Vehicle != nil:
		s.Vehicles = []Vehicle{*aux.Vehicle}
	default:
		s.Vehicles = nil
	}
	return nil
}

// ClonePhoto returns an independent copy of a photo slot.
func ClonePhoto(p Photo) Photo { return p }

// CloneVehicle returns a deep copy with an independent photo map.
func CloneVehicle(v Vehicle) Vehicle {
	cp := v
	if v.Photos != nil {
		cp.Photos = make(map[PhotoCategory]Photo, len(v.Photos))
		for k, p := range v.Photos {
			cp.Photos[k] = ClonePhoto(p)
		}
	}
	return cp
}

// CloneInspection returns a deep copy with independent vehicles.
func CloneInspection(i Inspection) Inspection {
	cp := i
	if i.Vehicles != nil {
		cp.Vehicles = make([]Vehicle, len(i.Vehicles))
		for n, v := range i.Vehicles {
			cp.Vehicles[n] = CloneVehicle(v)
		}
	}
	return cp
}

// CloneSavedInspection returns a deep copy of a stored record.
func CloneSavedInspection(s SavedInspection) SavedInspection {
	return SavedInspection{Inspection: CloneInspection(s.Inspection), PDFGenerated: s.PDFGenerated}
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured for rule evaluation.
const (
	// ActionPut indicates a record was inserted or replaced.
	ActionPut Action = "put"
	// ActionDelete indicates a record was removed.
	ActionDelete Action = "delete"
	// ActionReplaceAll indicates the whole store was overwritten.
	ActionReplaceAll Action = "replace_all"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
