package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RelationshipType distinguishes immediate from ultimate consolidation.
type RelationshipType string

const (
	RelationshipDirect   RelationshipType = "DIRECT"
	RelationshipUltimate RelationshipType = "ULTIMATE"
)

// RelationshipEdge links a parent LEI to a child LEI. Edges carry no orientation beyond the
// two LEI fields.
type RelationshipEdge struct {
	ParentLEI        string           `json:"parent_lei"`
	ChildLEI         string           `json:"child_lei"`
	ParentName       string           `json:"parent_name,omitempty"`
	ChildName        string           `json:"child_name,omitempty"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Status           string           `json:"relationship_status,omitempty"`
	PeriodStart      string           `json:"period_start,omitempty"`
	PeriodEnd        string           `json:"period_end,omitempty"`
}

// EntityRef is the other end of an edge as seen from the focal entity.
type EntityRef struct {
	LEI         string `json:"lei"`
	Name        string `json:"name,omitempty"`
	Status      string `json:"relationship_status,omitempty"`
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
}

// ParentException explains why an entity does not report a parent.
type ParentException struct {
	LEI       string           `json:"lei,omitempty"`
	Type      RelationshipType `json:"exception_type,omitempty"`
	Category  string           `json:"exception_category,omitempty"`
	Reason    string           `json:"exception_reason,omitempty"`
	Reference string           `json:"exception_reference,omitempty"`
}

// RelationshipSet is the payload of the relationships endpoint. The backend returns either a
// bare edge list or an object carrying edges and parent exceptions.
type RelationshipSet struct {
	Edges            []RelationshipEdge `json:"relationships"`
	ParentExceptions []ParentException  `json:"parent_exceptions,omitempty"`
}

func (s *RelationshipSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = RelationshipSet{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		var edges []RelationshipEdge
		if err := json.Unmarshal(trimmed, &edges); err != nil {
			return err
		}
		*s = RelationshipSet{Edges: edges}
		return nil
	case '{':
		var raw struct {
			Relationships    []RelationshipEdge `json:"relationships"`
			Edges            []RelationshipEdge `json:"edges"`
			ParentExceptions []ParentException  `json:"parent_exceptions"`
			Exceptions       []ParentException  `json:"exceptions"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		s.Edges = append(raw.Relationships, raw.Edges...)
		s.ParentExceptions = append(raw.ParentExceptions, raw.Exceptions...)
		return nil
	default:
		return fmt.Errorf("relationship payload must be an array or object, got %q", trimmed[0])
	}
}

// RelationshipTree is the corporate hierarchy around one focal entity.
type RelationshipTree struct {
	FocalLEI         string             `json:"focal_lei"`
	DirectParent     *EntityRef         `json:"direct_parent,omitempty"`
	UltimateParent   *EntityRef         `json:"ultimate_parent,omitempty"`
	DirectChildren   []EntityRef        `json:"direct_children"`
	UltimateChildren []EntityRef        `json:"ultimate_children"`
	ParentExceptions []ParentException  `json:"parent_exceptions"`
	Unrecognized     []RelationshipEdge `json:"unrecognized,omitempty"`
}

// IsEmpty reports whether the tree carries no relationships or exceptions.
func (t *RelationshipTree) IsEmpty() bool {
	if t == nil {
		return true
	}
	return t.DirectParent == nil && t.UltimateParent == nil &&
		len(t.DirectChildren) == 0 && len(t.UltimateChildren) == 0 &&
		len(t.ParentExceptions) == 0
}
