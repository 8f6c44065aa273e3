// Package relationship rebuilds an entity's corporate hierarchy from flat parent/child edges.
package relationship

import (
	"strings"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
)

// BuildTree orients every edge relative to focal in a single pass. Edges whose child is the
// focal entity describe its parents; edges whose parent is the focal entity describe its
// children; all other edges are ignored. Parent pointers are last-write-wins, child lists keep
// input order. Edges of an unknown type are kept in Unrecognized instead of a typed bucket.
// Parent exceptions are attached as given.
func BuildTree(focal string, edges []domain.RelationshipEdge, exceptions []domain.ParentException) *domain.RelationshipTree {
	tree := &domain.RelationshipTree{
		FocalLEI:         util.NormalizeIdentifier(focal),
		DirectChildren:   []domain.EntityRef{},
		UltimateChildren: []domain.EntityRef{},
		ParentExceptions: exceptions,
	}
	if tree.ParentExceptions == nil {
		tree.ParentExceptions = []domain.ParentException{}
	}

	for _, edge := range edges {
		kind := domain.RelationshipType(strings.ToUpper(strings.TrimSpace(string(edge.RelationshipType))))

		switch {
		case util.SameIdentifier(edge.ChildLEI, tree.FocalLEI):
			parent := parentRef(edge)
			switch kind {
			case domain.RelationshipDirect:
				tree.DirectParent = &parent
			case domain.RelationshipUltimate:
				tree.UltimateParent = &parent
			default:
				tree.Unrecognized = append(tree.Unrecognized, edge)
			}

		case util.SameIdentifier(edge.ParentLEI, tree.FocalLEI):
			child := childRef(edge)
			switch kind {
			case domain.RelationshipDirect:
				tree.DirectChildren = append(tree.DirectChildren, child)
			case domain.RelationshipUltimate:
				tree.UltimateChildren = append(tree.UltimateChildren, child)
			default:
				tree.Unrecognized = append(tree.Unrecognized, edge)
			}
		}
	}

	return tree
}

func parentRef(edge domain.RelationshipEdge) domain.EntityRef {
	return domain.EntityRef{
		LEI:         edge.ParentLEI,
		Name:        edge.ParentName,
		Status:      edge.Status,
		PeriodStart: edge.PeriodStart,
		PeriodEnd:   edge.PeriodEnd,
	}
}

func childRef(edge domain.RelationshipEdge) domain.EntityRef {
	return domain.EntityRef{
		LEI:         edge.ChildLEI,
		Name:        edge.ChildName,
		Status:      edge.Status,
		PeriodStart: edge.PeriodStart,
		PeriodEnd:   edge.PeriodEnd,
	}
}

// Reconstructor wraps BuildTree with logging of edges it could not classify.
type Reconstructor struct {
	logger *zap.Logger
}

func NewReconstructor(logger *zap.Logger) *Reconstructor {
	return &Reconstructor{logger: util.OrNop(logger)}
}

// Build never fails: a nil or empty set produces an empty tree.
func (r *Reconstructor) Build(focal string, set *domain.RelationshipSet) *domain.RelationshipTree {
	var (
		edges      []domain.RelationshipEdge
		exceptions []domain.ParentException
	)
	if set != nil {
		edges = set.Edges
		exceptions = set.ParentExceptions
	}

	tree := BuildTree(focal, edges, exceptions)
	if tree.IsEmpty() {
		r.logger.Debug("No relationships for entity", zap.String("focal_lei", tree.FocalLEI))
	}
	for _, edge := range tree.Unrecognized {
		r.logger.Warn("Unrecognized relationship type",
			zap.String("focal_lei", tree.FocalLEI),
			zap.String("parent_lei", edge.ParentLEI),
			zap.String("child_lei", edge.ChildLEI),
			zap.String("type", string(edge.RelationshipType)),
		)
	}
	return tree
}
