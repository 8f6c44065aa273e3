package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
)

// RelationshipService reads the flat parent/child edge list around an entity.
type RelationshipService struct {
	adapter
}

func NewRelationshipService(client *httpclient.Client, defaults httpclient.RequestConfig, logger *zap.Logger) *RelationshipService {
	return &RelationshipService{adapter: newAdapter(client, defaults, logger)}
}

// Get returns the edges and parent reporting exceptions for lei. A successful response with
// no data yields an empty set.
func (s *RelationshipService) Get(ctx context.Context, lei string, opts ...httpclient.RequestOption) (*domain.RelationshipSet, error) {
	lei, err := requireIdentifier("lei", lei)
	if err != nil {
		return nil, err
	}

	env, err := s.client.Get(ctx, httpclient.Endpoint(constants.Paths.Relationships, nil, lei), s.options(opts)...)
	if err != nil {
		return nil, err
	}
	if env.OK() && !env.HasData() {
		s.logger.Debug("No relationship data", zap.String("lei", lei))
		return &domain.RelationshipSet{}, nil
	}

	set, err := httpclient.Decode[domain.RelationshipSet](env)
	if err != nil {
		return nil, err
	}
	return &set, nil
}
