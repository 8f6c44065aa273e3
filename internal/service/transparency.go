package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
)

// TransparencyService reads MiFIR transparency calculations.
type TransparencyService struct {
	adapter
}

func NewTransparencyService(client *httpclient.Client, defaults httpclient.RequestConfig, logger *zap.Logger) *TransparencyService {
	return &TransparencyService{adapter: newAdapter(client, defaults, logger)}
}

// ByISIN returns every calculation published for the instrument.
func (s *TransparencyService) ByISIN(ctx context.Context, isin string, opts ...httpclient.RequestOption) ([]domain.TransparencyRecord, error) {
	isin, err := requireIdentifier("isin", isin)
	if err != nil {
		return nil, err
	}
	return fetchList[domain.TransparencyRecord](ctx, s.adapter, httpclient.Endpoint(constants.Paths.TransparencyByISIN, nil, isin), opts)
}

// Get fetches a single calculation by its id. Ids are opaque and are not case-normalized.
func (s *TransparencyService) Get(ctx context.Context, id string, opts ...httpclient.RequestOption) (*domain.TransparencyRecord, error) {
	if _, err := requireIdentifier("id", id); err != nil {
		return nil, err
	}
	return fetchOne[domain.TransparencyRecord](ctx, s.adapter, httpclient.Endpoint(constants.Paths.Transparency, nil, id), opts)
}
