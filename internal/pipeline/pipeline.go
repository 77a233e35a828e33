package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/resolver"
	"github.com/guatepass/tolling/internal/settlement"
)

type Resolver interface {
	Resolve(ctx context.Context, plate, detectedTagID string) (resolver.Resolution, error)
}

type Pricer interface {
	Calculate(tollPointID string, tier domain.Tier) domain.FareCalculation
}

type Settler interface {
	Settle(ctx context.Context, pc domain.PricedCrossing) (*settlement.Result, error)
}

// Pipeline carries one crossing event forward through resolution, pricing
// and settlement. Each hand-off payload is validated before the next stage
// sees it.
type Pipeline struct {
	resolver Resolver
	pricer   Pricer
	settler  Settler
	logger   *slog.Logger
}

func New(r Resolver, p Pricer, s Settler, logger *slog.Logger) *Pipeline {
	return &Pipeline{resolver: r, pricer: p, settler: s, logger: logger.With("component", "pipeline")}
}

func (p *Pipeline) Process(ctx context.Context, event domain.TollCrossingEvent) (*settlement.Result, error) {
	resolved, err := p.resolve(ctx, event)
	if err != nil {
		return nil, err
	}

	priced := p.price(resolved)
	if err := priced.Validate(); err != nil {
		return nil, fmt.Errorf("priced crossing: %w", err)
	}

	res, err := p.settler.Settle(ctx, priced)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("crossing processed", "event_id", event.EventID, "crossing", priced.String())
	return res, nil
}

// Handle adapts Process to the event bus handler signature.
func (p *Pipeline) Handle(ctx context.Context, event domain.TollCrossingEvent) error {
	_, err := p.Process(ctx, event)
	return err
}

func (p *Pipeline) resolve(ctx context.Context, event domain.TollCrossingEvent) (domain.ResolvedCrossing, error) {
	res, err := p.resolver.Resolve(ctx, event.Plate, event.TagID)
	if err != nil {
		return domain.ResolvedCrossing{}, fmt.Errorf("resolve %s: %w", event.Plate, err)
	}

	resolved := domain.ResolvedCrossing{
		Version:  domain.PayloadVersion,
		Event:    event,
		Profile:  res.Profile,
		Decision: res.Decision,
	}
	if err := resolved.Validate(); err != nil {
		return domain.ResolvedCrossing{}, fmt.Errorf("resolved crossing: %w", err)
	}
	return resolved, nil
}

func (p *Pipeline) price(resolved domain.ResolvedCrossing) domain.PricedCrossing {
	return domain.PricedCrossing{
		ResolvedCrossing: resolved,
		Fare:             p.pricer.Calculate(resolved.Event.TollPointID, resolved.Decision.Tier),
	}
}
