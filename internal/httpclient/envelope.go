package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/RobiinJonsson/marketdata-dashboard-go/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the {status, data, error, message} wrapper every response is normalized into.
type Envelope struct {
	Status  string          `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// OK reports whether the envelope carries a successful payload.
func (e *Envelope) OK() bool {
	if e == nil {
		return false
	}
	if e.Status != "" {
		return e.Status == StatusSuccess
	}
	return len(e.Error) == 0 || isJSONNull(e.Error)
}

// HasData reports whether data is present and not null.
func (e *Envelope) HasData() bool {
	return e != nil && len(e.Data) > 0 && !isJSONNull(e.Data)
}

// ErrorMessage returns the most descriptive failure text the envelope carries.
func (e *Envelope) ErrorMessage() string {
	if e == nil {
		return ""
	}
	if len(e.Error) > 0 && !isJSONNull(e.Error) {
		var s string
		if err := json.Unmarshal(e.Error, &s); err == nil && s != "" {
			return s
		}
		return string(e.Error)
	}
	return e.Message
}

// IsEnvelope reports whether raw is a JSON object with at least one of the status, data or
// error keys.
func IsEnvelope(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}
	for _, key := range []string{"status", "data", "error"} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

// NormalizeEnvelope returns raw unchanged when it is already an envelope and otherwise wraps it
// as {"status":"success","data":raw}. Applying it twice yields the same bytes as applying it once.
func NormalizeEnvelope(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	if IsEnvelope(trimmed) {
		return raw, nil
	}
	return json.Marshal(Envelope{Status: StatusSuccess, Data: json.RawMessage(trimmed)})
}

func parseEnvelope(normalized []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(normalized, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Decode extracts the envelope's data as T. A failed envelope or a payload that does not fit T
// is reported as a NetworkError, the engine's kind for malformed responses.
func Decode[T any](env *Envelope) (T, error) {
	var out T
	if env == nil {
		return out, errors.NewNetworkError("empty response envelope", nil, nil)
	}
	if !env.OK() {
		return out, errors.NewNetworkError(
			fmt.Sprintf("response envelope reports failure: %s", env.ErrorMessage()),
			map[string]any{"status": env.Status},
			nil,
		)
	}
	if !env.HasData() {
		return out, errors.NewNetworkError("response envelope has no data", map[string]any{"status": env.Status}, nil)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, errors.NewNetworkError("unexpected response shape", map[string]any{"type": fmt.Sprintf("%T", out)}, err)
	}
	return out, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
