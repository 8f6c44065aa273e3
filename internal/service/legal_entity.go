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

// LegalEntityService reads legal entity records.
type LegalEntityService struct {
	adapter
}

func NewLegalEntityService(client *httpclient.Client, defaults httpclient.RequestConfig, logger *zap.Logger) *LegalEntityService {
	return &LegalEntityService{adapter: newAdapter(client, defaults, logger)}
}

// Get fetches one entity by LEI.
func (s *LegalEntityService) Get(ctx context.Context, lei string, opts ...httpclient.RequestOption) (*domain.LegalEntity, error) {
	lei, err := requireIdentifier("lei", lei)
	if err != nil {
		return nil, err
	}
	if !util.IsLEI(lei) {
		s.logger.Debug("Identifier is not LEI-shaped", zap.String("lei", lei))
	}
	return fetchOne[domain.LegalEntity](ctx, s.adapter, httpclient.Endpoint(constants.Paths.LegalEntity, nil, lei), opts)
}

// List returns entities matching filter.
func (s *LegalEntityService) List(ctx context.Context, filter domain.LegalEntityFilter, opts ...httpclient.RequestOption) ([]domain.LegalEntity, error) {
	params := url.Values{}
	params.Set("name", filter.Name)
	params.Set("jurisdiction", filter.Jurisdiction)
	params.Set("status", filter.Status)
	paging(params, filter.Limit, filter.Offset)

	return fetchList[domain.LegalEntity](ctx, s.adapter, httpclient.Endpoint(constants.Paths.LegalEntities, params), opts)
}
