// Package aggregate assembles instrument profiles from several independent backend calls,
// tolerating the failure of every branch except the instrument itself.
package aggregate

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/httpclient"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/relationship"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
	"github.com/RobiinJonsson/marketdata-dashboard-go/pkg/errors"
)

type InstrumentReader interface {
	Get(ctx context.Context, isin string, opts ...httpclient.RequestOption) (*domain.Instrument, error)
	Venues(ctx context.Context, isin string, opts ...httpclient.RequestOption) ([]domain.VenueRecord, error)
}

type TransparencyReader interface {
	ByISIN(ctx context.Context, isin string, opts ...httpclient.RequestOption) ([]domain.TransparencyRecord, error)
}

type LegalEntityReader interface {
	Get(ctx context.Context, lei string, opts ...httpclient.RequestOption) (*domain.LegalEntity, error)
}

type RelationshipReader interface {
	Get(ctx context.Context, lei string, opts ...httpclient.RequestOption) (*domain.RelationshipSet, error)
}

// Sources are the adapters a profile is built from.
type Sources struct {
	Instruments   InstrumentReader
	Transparency  TransparencyReader
	LegalEntities LegalEntityReader
	Relationships RelationshipReader
}

// Aggregator builds AggregatedProfiles. It holds no per-lookup state and is safe for
// concurrent use.
type Aggregator struct {
	sources       Sources
	reconstructor *relationship.Reconstructor
	logger        *zap.Logger
	concurrency   int
}

// NewAggregator creates an aggregator. concurrency bounds ProfileMany; values below 1 use the
// default.
func NewAggregator(sources Sources, logger *zap.Logger, concurrency int) *Aggregator {
	logger = util.OrNop(logger)
	if concurrency < 1 {
		concurrency = constants.AggregateConfig.DefaultConcurrency
	}

	return &Aggregator{
		sources:       sources,
		reconstructor: relationship.NewReconstructor(logger),
		logger:        logger,
		concurrency:   concurrency,
	}
}

// Profile loads the instrument, its transparency records and its venues concurrently. Only a
// failed instrument fetch is fatal and is reported as a NotFoundError. When the instrument
// carries an LEI, the legal entity and its relationships are fetched in a second wave.
// Cancelling ctx aborts every in-flight branch.
func (a *Aggregator) Profile(ctx context.Context, isin string) (*domain.AggregatedProfile, error) {
	isin = util.NormalizeIdentifier(isin)
	if isin == "" {
		return nil, errors.NewValidationError("isin is required", "isin", isin)
	}

	profile, err := a.primaryWave(ctx, isin)
	if err != nil {
		return nil, err
	}

	lei, ok := profile.Instrument.EntityKey()
	if !ok {
		a.logger.Debug("Instrument has no entity key, skipping entity lookup", zap.String("isin", isin))
		return profile, nil
	}

	a.entityWave(ctx, isin, util.NormalizeIdentifier(lei), profile)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return profile, nil
}

func (a *Aggregator) primaryWave(ctx context.Context, isin string) (*domain.AggregatedProfile, error) {
	var (
		instrument   Result[*domain.Instrument]
		transparency Result[[]domain.TransparencyRecord]
		venues       Result[[]domain.VenueRecord]
	)

	p := pool.New()
	Settle(ctx, p, &instrument, func(ctx context.Context) (*domain.Instrument, error) {
		return a.sources.Instruments.Get(ctx, isin)
	})
	Settle(ctx, p, &transparency, func(ctx context.Context) ([]domain.TransparencyRecord, error) {
		return a.sources.Transparency.ByISIN(ctx, isin)
	})
	Settle(ctx, p, &venues, func(ctx context.Context) ([]domain.VenueRecord, error) {
		return a.sources.Instruments.Venues(ctx, isin)
	})
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !instrument.OK() || instrument.Value == nil {
		a.logger.Info("Instrument not found", zap.String("isin", isin), zap.Error(instrument.Err))
		return nil, errors.NewNotFoundError("instrument", isin, instrument.Err)
	}

	a.warnOnFailure("transparency", isin, transparency.Err)
	a.warnOnFailure("venues", isin, venues.Err)

	a.logger.Debug("Primary wave settled",
		zap.String("isin", isin),
		zap.String("name", instrument.Value.DisplayName()),
		zap.Bool("transparency", transparency.OK()),
		zap.Bool("venues", venues.OK()),
	)

	return &domain.AggregatedProfile{
		Instrument:   instrument.Value,
		Transparency: nonNil(transparency.Or(nil)),
		Venues:       nonNil(venues.Or(nil)),
	}, nil
}

// Entity runs the entity wave on its own for lei. It fails only when neither the entity nor
// its relationships could be loaded.
func (a *Aggregator) Entity(ctx context.Context, lei string) (*domain.LegalEntity, *domain.RelationshipTree, error) {
	lei = util.NormalizeIdentifier(lei)
	if lei == "" {
		return nil, nil, errors.NewValidationError("lei is required", "lei", lei)
	}

	scratch := &domain.AggregatedProfile{}
	entityErr, _ := a.entityWave(ctx, "", lei, scratch)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if scratch.LegalEntity == nil && scratch.Relationships == nil {
		a.logger.Info("Legal entity not found", zap.String("lei", lei), zap.Error(entityErr))
		return nil, nil, errors.NewNotFoundError("legal entity", lei, entityErr)
	}
	return scratch.LegalEntity, scratch.Relationships, nil
}

// entityWave fills LegalEntity and Relationships on profile. Both branches are optional; when
// both succeed the tree is also attached to the entity.
func (a *Aggregator) entityWave(ctx context.Context, isin, lei string, profile *domain.AggregatedProfile) (entityErr, edgesErr error) {
	var (
		entity Result[*domain.LegalEntity]
		edges  Result[*domain.RelationshipSet]
	)

	p := pool.New()
	Settle(ctx, p, &entity, func(ctx context.Context) (*domain.LegalEntity, error) {
		return a.sources.LegalEntities.Get(ctx, lei)
	})
	Settle(ctx, p, &edges, func(ctx context.Context) (*domain.RelationshipSet, error) {
		return a.sources.Relationships.Get(ctx, lei)
	})
	p.Wait()

	a.warnOnFailure("legal_entity", lei, entity.Err)
	a.warnOnFailure("relationships", lei, edges.Err)

	entityOK := entity.OK() && entity.Value != nil
	edgesOK := edges.OK()

	if edgesOK {
		profile.Relationships = a.reconstructor.Build(lei, edges.Value)
	}
	if entityOK {
		profile.LegalEntity = entity.Value
		if edgesOK {
			profile.LegalEntity.Relationships = profile.Relationships
		}
	}

	a.logger.Debug("Entity wave settled",
		zap.String("isin", isin),
		zap.String("lei", lei),
		zap.Bool("entity", entityOK),
		zap.Bool("relationships", edgesOK),
	)
	return entity.Err, edges.Err
}

func (a *Aggregator) warnOnFailure(branch, id string, err error) {
	if err == nil {
		return
	}
	a.logger.Warn("Profile branch failed, using fallback",
		zap.String("branch", branch),
		zap.String("id", id),
		zap.Error(err),
	)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
