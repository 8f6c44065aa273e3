// Package service holds the typed adapters over the request engine. Adapters build endpoint
// paths and decode payloads; retries, caching and timeouts stay in the engine.
package service

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
	"github.com/RobiinJonsson/marketdata-dashboard-go/pkg/errors"
)

// adapter is the state every service shares: the engine, the adapter's default RequestConfig
// and a logger.
type adapter struct {
	client   *httpclient.Client
	defaults httpclient.RequestConfig
	logger   *zap.Logger
}

func newAdapter(client *httpclient.Client, defaults httpclient.RequestConfig, logger *zap.Logger) adapter {
	return adapter{
		client:   client,
		defaults: defaults,
		logger:   util.OrNop(logger),
	}
}

// options puts the adapter defaults underneath the per-call options.
func (a adapter) options(extra []httpclient.RequestOption) []httpclient.RequestOption {
	opts := make([]httpclient.RequestOption, 0, len(extra)+1)
	opts = append(opts, httpclient.WithConfig(a.defaults))
	return append(opts, extra...)
}

func fetchOne[T any](ctx context.Context, a adapter, endpoint string, opts []httpclient.RequestOption) (*T, error) {
	out, err := httpclient.Fetch[T](ctx, a.client, endpoint, a.options(opts)...)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// fetchList decodes a list payload. A successful envelope without data is an empty list.
func fetchList[T any](ctx context.Context, a adapter, endpoint string, opts []httpclient.RequestOption) ([]T, error) {
	env, err := a.client.Get(ctx, endpoint, a.options(opts)...)
	if err != nil {
		return nil, err
	}
	if env.OK() && !env.HasData() {
		return []T{}, nil
	}
	items, err := httpclient.Decode[[]T](env)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// requireIdentifier normalizes id and rejects empty values.
func requireIdentifier(field, id string) (string, error) {
	normalized := util.NormalizeIdentifier(id)
	if normalized == "" {
		return "", errors.NewValidationError(field+" is required", field, id)
	}
	return normalized, nil
}

func paging(params url.Values, limit, offset int) {
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
}
