package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
)

// VenueService reads the MIC registry.
type VenueService struct {
	adapter
}

func NewVenueService(client *httpclient.Client, defaults httpclient.RequestConfig, logger *zap.Logger) *VenueService {
	return &VenueService{adapter: newAdapter(client, defaults, logger)}
}

func (s *VenueService) List(ctx context.Context, opts ...httpclient.RequestOption) ([]domain.Venue, error) {
	return fetchList[domain.Venue](ctx, s.adapter, constants.Paths.Venues, opts)
}

func (s *VenueService) Get(ctx context.Context, mic string, opts ...httpclient.RequestOption) (*domain.Venue, error) {
	mic, err := requireIdentifier("mic", mic)
	if err != nil {
		return nil, err
	}
	return fetchOne[domain.Venue](ctx, s.adapter, httpclient.Endpoint(constants.Paths.Venue, nil, mic), opts)
}
