package domain

// VenueRecord is one trading venue an instrument is admitted on. Numeric fields are pointers
// because the backend emits NaN for unknown values, which is sanitized to null.
type VenueRecord struct {
	MIC                     string   `json:"venue_id"`
	ISIN                    string   `json:"isin,omitempty"`
	VenueName               string   `json:"venue_full_name,omitempty"`
	OperatingMIC            string   `json:"operating_mic,omitempty"`
	Country                 string   `json:"country,omitempty"`
	FirstTradeDate          string   `json:"first_trade_date,omitempty"`
	TerminationDate         string   `json:"termination_date,omitempty"`
	AdmissionApprovalDate   string   `json:"admission_approval_date,omitempty"`
	RequestForAdmissionDate string   `json:"request_for_admission_date,omitempty"`
	IssuerRequest           *bool    `json:"issuer_request,omitempty"`
	LotSize                 *float64 `json:"lot_size,omitempty"`
	PriceMultiplier         *float64 `json:"price_multiplier,omitempty"`
}

// Venue is a market identifier code registry entry.
type Venue struct {
	MIC          string `json:"mic"`
	OperatingMIC string `json:"operating_mic,omitempty"`
	Name         string `json:"name,omitempty"`
	Country      string `json:"country,omitempty"`
	City         string `json:"city,omitempty"`
	Status       string `json:"status,omitempty"`
	Website      string `json:"website,omitempty"`
}
