package domain

import "strings"

// Instrument is the primary record of a profile lookup.
type Instrument struct {
	ISIN           string   `json:"isin"`
	FullName       string   `json:"full_name,omitempty"`
	ShortName      string   `json:"short_name,omitempty"`
	InstrumentType string   `json:"instrument_type,omitempty"`
	CFICode        string   `json:"cfi_code,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	LEI            string   `json:"lei_id,omitempty"`
	IssuerLEI      string   `json:"issuer_lei,omitempty"`
	FIGI           string   `json:"figi,omitempty"`
	FirstTradeDate string   `json:"first_trade_date,omitempty"`
	MaturityDate   string   `json:"maturity_date,omitempty"`
	CountryOfIssue string   `json:"country_of_issue,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// EntityKey returns the legal-entity identifier this instrument points at, if any.
func (i *Instrument) EntityKey() (string, bool) {
	if i == nil {
		return "", false
	}
	for _, candidate := range []string{i.LEI, i.IssuerLEI} {
		if lei := strings.TrimSpace(candidate); lei != "" {
			return lei, true
		}
	}
	return "", false
}

// DisplayName returns the full name, falling back to the short name and ISIN.
func (i *Instrument) DisplayName() string {
	if i == nil {
		return ""
	}
	switch {
	case i.FullName != "":
		return i.FullName
	case i.ShortName != "":
		return i.ShortName
	default:
		return i.ISIN
	}
}

// InstrumentFilter narrows instrument listings.
type InstrumentFilter struct {
	Type     string
	Currency string
	Limit    int
	Offset   int
}
