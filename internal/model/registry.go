package model

import "time"

// Car is a vehicle registered to a driver.
type Car struct {
	ID          int    `json:"id"`
	PlateNumber string `json:"plate_number"`
	Model       string `json:"model"`
	Color       string `json:"color"`
}

// Driver is a registered driver record as served by the backend.
// The public verification endpoint returns the same shape, sanitized
// server-side.
type Driver struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	NationalID    string `json:"national_id"`
	LicenseNumber string `json:"license_number"`
	PhotoURL      string `json:"photo_url,omitempty"`
	Cars          []Car  `json:"cars"`
}

// PrimaryCar returns the first registered vehicle, or a zero Car when the
// driver has none. Views show only the primary vehicle.
// Value receiver so templates can call it on ranged values.
func (d Driver) PrimaryCar() Car {
	if len(d.Cars) == 0 {
		return Car{}
	}
	return d.Cars[0]
}

// NewDriverForm carries the multipart fields of a driver registration.
// Photo is optional; PhotoName is the original filename of the upload.
type NewDriverForm struct {
	Name          string
	NationalID    string
	LicenseNumber string
	PlateNumber   string
	CarModel      string
	CarColor      string
	Photo         []byte
	PhotoName     string
}

// ReportStatus is the lifecycle state of a stolen-vehicle report.
type ReportStatus string

const (
	// ReportStatusReported marks a vehicle currently reported stolen.
	ReportStatusReported ReportStatus = "reported"
	// ReportStatusFound marks a report that has been resolved.
	ReportStatusFound ReportStatus = "found"
)

// StolenReport is an entry on the stolen-vehicle board.
type StolenReport struct {
	ID               int          `json:"id"`
	PlateNumber      string       `json:"plate_number"`
	Description      string       `json:"description"`
	Status           ReportStatus `json:"status"`
	LastSeenLocation string       `json:"last_seen_location,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}
