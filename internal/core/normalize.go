package core

import (
	"autoinspect/pkg/domain"
)

// repairRecord rebuilds a stored record into the canonical entity shape. It
// is total over every historical shape variant: records without vehicle data
// get one blank vehicle, vehicles missing photo slots get them backfilled
// empty, and category display names are restored from the canonical table.
// The input is never mutated and repairing twice yields the same result.
func repairRecord(rec SavedInspection) SavedInspection {
	out := domain.CloneSavedInspection(rec)
	if len(out.Vehicles) == 0 {
		out.Vehicles = []Vehicle{domain.NewVehicle()}
		return out
	}
	for i := range out.Vehicles {
		out.Vehicles[i] = repairVehicle(out.Vehicles[i])
	}
	return out
}

func repairVehicle(v Vehicle) Vehicle {
	if v.ClientID == "" {
		v.ClientID = domain.NewClientID()
	}
	if v.Photos == nil {
		v.Photos = make(map[PhotoCategory]Photo, len(domain.AllPhotoCategories()))
	}
	for _, category := range domain.AllPhotoCategories() {
		slot, ok := v.Photos[category]
		if !ok {
			v.Photos[category] = domain.NewPhoto(category)
			continue
		}
		if slot.ID == "" {
			slot.ID = category
		}
		if slot.Name == "" {
			slot.Name = domain.CategoryName(category)
		}
		v.Photos[category] = slot
	}
	return v
}

// stripForStorage deep-copies the record and drops fields that must never
// reach the datastore: capture-time file references on photos and the
// vehicles' client-only list identities. The caller's value is untouched.
func stripForStorage(rec SavedInspection) SavedInspection {
	out := domain.CloneSavedInspection(rec)
	for i := range out.Vehicles {
		out.Vehicles[i].ClientID = ""
		for category, photo := range out.Vehicles[i].Photos {
			photo.SourcePath = ""
			out.Vehicles[i].Photos[category] = photo
		}
	}
	return out
}
