package service

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
)

// InstrumentService reads instrument records and their venue admissions.
type InstrumentService struct {
	adapter
}

func NewInstrumentService(client *httpclient.Client, defaults httpclient.RequestConfig, logger *zap.Logger) *InstrumentService {
	return &InstrumentService{adapter: newAdapter(client, defaults, logger)}
}

// Get fetches one instrument by ISIN. Malformed ISINs are still sent; the backend decides.
func (s *InstrumentService) Get(ctx context.Context, isin string, opts ...httpclient.RequestOption) (*domain.Instrument, error) {
	isin, err := requireIdentifier("isin", isin)
	if err != nil {
		return nil, err
	}
	if !util.IsISIN(isin) {
		s.logger.Debug("Identifier is not ISIN-shaped", zap.String("isin", isin))
	}
	return fetchOne[domain.Instrument](ctx, s.adapter, httpclient.Endpoint(constants.Paths.Instrument, nil, isin), opts)
}

// List returns instruments matching filter.
func (s *InstrumentService) List(ctx context.Context, filter domain.InstrumentFilter, opts ...httpclient.RequestOption) ([]domain.Instrument, error) {
	params := url.Values{}
	params.Set("type", filter.Type)
	params.Set("currency", filter.Currency)
	paging(params, filter.Limit, filter.Offset)

	return fetchList[domain.Instrument](ctx, s.adapter, httpclient.Endpoint(constants.Paths.Instruments, params), opts)
}

// Venues returns the trading venues the instrument is admitted on. The backend is known to
// emit NaN for missing numbers; the engine sanitizes those before decoding.
func (s *InstrumentService) Venues(ctx context.Context, isin string, opts ...httpclient.RequestOption) ([]domain.VenueRecord, error) {
	isin, err := requireIdentifier("isin", isin)
	if err != nil {
		return nil, err
	}
	return fetchList[domain.VenueRecord](ctx, s.adapter, httpclient.Endpoint(constants.Paths.InstrumentVenues, nil, isin), opts)
}
