package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/yearone-io/story-adventure/internal/domain"
)

var tracer = otel.Tracer("service")

// CodeProber checks whether an account carries contract code on one network.
// *ethclient.Client satisfies it.
type CodeProber interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

type networkProbe struct {
	chainID uint64
	prober  CodeProber
}

// NetworkResolver classifies a profile to the network its account actually
// lives on. Probes run in registration order; the first network where the
// address carries code wins, otherwise the fallback network is assumed.
// Results are cached for the session.
type NetworkResolver struct {
	probes   []networkProbe
	fallback uint64
	cache    *cache.Cache
	logger   zerolog.Logger
}

func NewNetworkResolver(fallback uint64, logger zerolog.Logger) *NetworkResolver {
	return &NetworkResolver{
		fallback: fallback,
		cache:    cache.New(cache.NoExpiration, 0),
		logger:   logger.With().Str("module", "network").Logger(),
	}
}

// AddProbe registers a probing endpoint for one network.
func (r *NetworkResolver) AddProbe(chainID uint64, prober CodeProber) {
	r.probes = append(r.probes, networkProbe{chainID: chainID, prober: prober})
}

// ResolveProfileNetwork returns the chain ID hosting the profile.
func (r *NetworkResolver) ResolveProfileNetwork(ctx context.Context, profile common.Address) (uint64, error) {
	ctx, span := tracer.Start(ctx, "Network.Resolver.ResolveProfileNetwork")
	defer span.End()

	cacheKey := "network:" + profile.Hex()
	if cached, found := r.cache.Get(cacheKey); found {
		return cached.(uint64), nil
	}

	resolved := r.fallback
	for _, p := range r.probes {
		code, err := p.prober.CodeAt(ctx, profile, nil)
		if err != nil {
			span.RecordError(err)
			r.logger.Warn().Err(err).Uint64("chainId", p.chainID).
				Str("profile", profile.Hex()).Msg("residency probe failed")
			continue
		}
		if len(code) > 0 {
			resolved = p.chainID
			break
		}
	}

	r.cache.Set(cacheKey, resolved, cache.NoExpiration)
	return resolved, nil
}

// RequireNetwork rejects writes issued from the wrong network. The mismatch
// is an actionable state for the caller, never retried silently.
func RequireNetwork(active, resident uint64) error {
	if active != resident {
		return domain.NetworkMismatchError{Active: active, Resident: resident}
	}
	return nil
}
