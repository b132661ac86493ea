package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	adventure "github.com/yearone-io/story-adventure"
)

const (
	// defaultWaitTimeout bounds how long a caller waits on someone else's
	// in-flight fetch before giving up.
	defaultWaitTimeout = 10 * time.Second
)

// ProfileSource fetches a profile card from its resident network.
type ProfileSource interface {
	FetchProfile(ctx context.Context, profile common.Address, chainID uint64) (adventure.ProfileCard, error)
}

// ProfileService is the process-wide profile/avatar lookup cache. A lookup in
// flight for a key is tracked so concurrent requests for the same key await
// the single underlying fetch instead of issuing duplicates. The cache is
// overwrite-idempotent; the in-flight set is the only state needing locking.
type ProfileService struct {
	source      ProfileSource
	cache       *cache.Cache
	logger      zerolog.Logger
	waitTimeout time.Duration
	jitterMax   time.Duration

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func NewProfileService(source ProfileSource, jitterMax time.Duration, logger zerolog.Logger) *ProfileService {
	return &ProfileService{
		source:      source,
		cache:       cache.New(10*time.Minute, 15*time.Minute),
		logger:      logger.With().Str("module", "profile").Logger(),
		waitTimeout: defaultWaitTimeout,
		jitterMax:   jitterMax,
		inflight:    make(map[string]chan struct{}),
	}
}

// Lookup returns the cached card for (profile, chainID), joining an in-flight
// fetch if one exists. Joins wait at most the configured timeout.
func (s *ProfileService) Lookup(ctx context.Context, profile common.Address, chainID uint64) (adventure.ProfileCard, error) {
	ctx, span := tracer.Start(ctx, "Profile.Service.Lookup")
	defer span.End()

	key := fmt.Sprintf("%s:%d", profile.Hex(), chainID)
	if cached, found := s.cache.Get(key); found {
		return cached.(adventure.ProfileCard), nil
	}

	s.mu.Lock()
	if ch, joined := s.inflight[key]; joined {
		s.mu.Unlock()
		return s.await(ctx, key, ch)
	}
	ch := make(chan struct{})
	s.inflight[key] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		close(ch)
	}()

	// Jitter spreads fetches out when a long history renders at once.
	if s.jitterMax > 0 {
		select {
		case <-time.After(time.Duration(rand.Int63n(int64(s.jitterMax)))):
		case <-ctx.Done():
			return adventure.ProfileCard{}, ctx.Err()
		}
	}

	card, err := s.source.FetchProfile(ctx, profile, chainID)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("profile", profile.Hex()).Msg("profile fetch failed")
		return adventure.ProfileCard{}, err
	}

	s.cache.Set(key, card, cache.DefaultExpiration)
	return card, nil
}

func (s *ProfileService) await(ctx context.Context, key string, ch <-chan struct{}) (adventure.ProfileCard, error) {
	select {
	case <-ch:
		if cached, found := s.cache.Get(key); found {
			return cached.(adventure.ProfileCard), nil
		}
		return adventure.ProfileCard{}, errors.New("joined profile fetch failed")
	case <-time.After(s.waitTimeout):
		return adventure.ProfileCard{}, errors.New("timed out waiting for in-flight profile fetch")
	case <-ctx.Done():
		return adventure.ProfileCard{}, ctx.Err()
	}
}
