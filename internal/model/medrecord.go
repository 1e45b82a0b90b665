package model

import (
	"encoding/json"
	"time"
)

// MedicalRecordEntry is one append to a patient's bundle. JSON keys
// match the on-chain blob layout consumed by existing readers.
type MedicalRecordEntry struct {
	Author     string          `json:"doctor"`
	Payload    json.RawMessage `json:"data"`
	RecordedAt time.Time       `json:"date"`
}

// MedicalRecordBundle is the whole per-patient blob. Logically
// append-only; physically replaced wholesale on every update.
type MedicalRecordBundle struct {
	Entries []MedicalRecordEntry `json:"MedRecord"`
}
