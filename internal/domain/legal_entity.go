package domain

// LegalEntity is a GLEIF-style legal entity record. Relationships is filled by aggregation
// when both the entity and its relationship edges were fetched.
type LegalEntity struct {
	LEI                string            `json:"lei"`
	Name               string            `json:"name"`
	Jurisdiction       string            `json:"jurisdiction,omitempty"`
	LegalForm          string            `json:"legal_form,omitempty"`
	Status             string            `json:"status,omitempty"`
	RegistrationStatus string            `json:"registration_status,omitempty"`
	Category           string            `json:"entity_category,omitempty"`
	CreationDate       string            `json:"creation_date,omitempty"`
	Addresses          []Address         `json:"addresses,omitempty"`
	Relationships      *RelationshipTree `json:"relationships,omitempty"`
}

type Address struct {
	Type       string   `json:"type"`
	Lines      []string `json:"address_lines,omitempty"`
	City       string   `json:"city,omitempty"`
	Region     string   `json:"region,omitempty"`
	Country    string   `json:"country,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
}

// LegalEntityFilter narrows legal entity listings.
type LegalEntityFilter struct {
	Name         string
	Jurisdiction string
	Status       string
	Limit        int
	Offset       int
}
