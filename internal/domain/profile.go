package domain

// AggregatedProfile is the result of one instrument lookup. Transparency and Venues are never
// nil; LegalEntity and Relationships stay nil when the instrument has no entity key or the
// corresponding fetch failed.
type AggregatedProfile struct {
	Instrument    *Instrument          `json:"instrument"`
	Transparency  []TransparencyRecord `json:"transparency"`
	Venues        []VenueRecord        `json:"venues"`
	LegalEntity   *LegalEntity         `json:"legal_entity,omitempty"`
	Relationships *RelationshipTree    `json:"relationships,omitempty"`
}
