package constants

import "time"

var RequestDefaults = struct {
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
	CacheTTL  time.Duration
}{
	Timeout:   30 * time.Second,
	Retries:   3,
	BaseDelay: 1 * time.Second, // 2^i × BaseDelay before attempt i+1
	CacheTTL:  5 * time.Minute,
}

var CircuitBreakerConfig = struct {
	ResetTimeout time.Duration
}{
	ResetTimeout: 30 * time.Second,
}

var APIConfig = struct {
	DefaultBaseURL  string
	UserAgent       string
	RequestIDHeader string
}{
	DefaultBaseURL:  "http://localhost:5000/api/v1",
	UserAgent:       "refdata-client-go/1.0",
	RequestIDHeader: "X-Request-ID",
}

// Paths are relative to the versioned API prefix.
var Paths = struct {
	Instruments        string
	Instrument         string
	InstrumentVenues   string
	Transparency       string
	TransparencyByISIN string
	Venues             string
	Venue              string
	LegalEntities      string
	LegalEntity        string
	Relationships      string
}{
	Instruments:        "/instruments",
	Instrument:         "/instruments/%s",
	InstrumentVenues:   "/instruments/%s/venues",
	Transparency:       "/transparency/%s",
	TransparencyByISIN: "/transparency/isin/%s",
	Venues:             "/venues",
	Venue:              "/venues/%s",
	LegalEntities:      "/legal-entities",
	LegalEntity:        "/legal-entities/%s",
	Relationships:      "/relationships/%s",
}

var CacheKeys = struct {
	RedisPrefix string
}{
	RedisPrefix: "refdata:http:",
}

var AggregateConfig = struct {
	DefaultConcurrency int
}{
	DefaultConcurrency: 4,
}
