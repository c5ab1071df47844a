// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"
)

// DefaultPhotoPath is stored when a report is filed without a photo.
const DefaultPhotoPath = "N/A"

// Record holds one crime report as persisted in the crimes collection.
// ID is assigned by the repository on insert and never changes afterwards;
// CreatedAt is set once at construction and is not refreshed by edits.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	CrimeType string    `json:"crimeType"`
	Details   string    `json:"details"`
	PhotoPath string    `json:"photoPath"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRecord builds an unpersisted record. The photo path falls back to the
// sentinel when the report has no photo attached.
func NewRecord(name, city, crimeType, details, photoPath string) Record {
	if photoPath == "" {
		photoPath = DefaultPhotoPath
	}
	return Record{
		Name:      name,
		City:      city,
		CrimeType: crimeType,
		Details:   details,
		PhotoPath: photoPath,
		CreatedAt: time.Now().UTC(),
	}
}
