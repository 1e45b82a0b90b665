package model

// StationRecord is a station's self-declared profile, stored as one
// blob and referenced by a single replaceable pointer on the ledger.
type StationRecord struct {
	StationID string `json:"stationId"`
	Name      string `json:"name"`
	Operator  string `json:"operator"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ImageCID  string `json:"imageHash,omitempty"`
}

// StationReports is the retrieval workflow output: the profile (nil
// when it could not be fetched) and the aggregated report list.
type StationReports struct {
	Station *StationRecord   `json:"station,omitempty"`
	Reports []*StationReport `json:"reports"`
}
