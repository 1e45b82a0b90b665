package model

import (
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/aqmesh/station-api/pkg/errors"
)

type ReportStatus string

const (
	StatusGood      ReportStatus = "Good"
	StatusModerate  ReportStatus = "Moderate"
	StatusUnhealthy ReportStatus = "Unhealthy"
	StatusHazardous ReportStatus = "Hazardous"
)

var validate = validator.New()

// Report is the content stored in the blob store, exactly as the
// station submitted it. Ledger-held metadata lives on StationReport.
type Report struct {
	ReportID    string       `json:"reportId" validate:"required"`
	Timestamp   string       `json:"timestamp" validate:"required"`
	Location    string       `json:"location" validate:"required"`
	PM25        float64      `json:"pm25"`
	PM10        float64      `json:"pm10"`
	AQI         float64      `json:"aqi"`
	Temperature float64      `json:"temperature"`
	Humidity    float64      `json:"humidity"`
	CO2         float64      `json:"co2"`
	NO2         float64      `json:"no2"`
	SO2         float64      `json:"so2"`
	O3          float64      `json:"o3"`
	Status      ReportStatus `json:"status" validate:"required"`
	Notes       string       `json:"notes,omitempty"`
}

// Validate applies the submission rules. Reports failing here never
// reach the store or the ledger.
func (r *Report) Validate() error {
	if err := validate.Struct(r); err != nil {
		return apperrors.NewValidation("reportId, timestamp, location and status are required", err)
	}
	switch r.Status {
	case StatusGood, StatusModerate, StatusUnhealthy, StatusHazardous:
	default:
		return apperrors.NewValidation("status must be one of Good, Moderate, Unhealthy, Hazardous", nil)
	}
	if r.AQI < 0 || r.AQI > 500 {
		return apperrors.NewValidation("aqi must be between 0 and 500", nil)
	}
	if r.PM25 < 0 || r.PM10 < 0 {
		return apperrors.NewValidation("pm25 and pm10 must not be negative", nil)
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return apperrors.NewValidation("humidity must be between 0 and 100", nil)
	}
	return nil
}

// Time parses the caller-supplied timestamp for display ordering. The
// ledger index stays the authoritative order; this is sort-only.
// Unparseable timestamps yield the zero time and sort last.
func (r *Report) Time() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, r.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// StationReport is a report joined with its ledger pointer entry.
type StationReport struct {
	Report
	ContentID   string `json:"contentId"`
	Approved    bool   `json:"approved"`
	ReportIndex int    `json:"reportIndex"`
}
