package ledger

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/erc725"
	"github.com/yearone-io/story-adventure/lsp4"
)

// ProfileSource resolves profile cards (name and avatar) from on-chain
// profile metadata.
type ProfileSource struct {
	backends Backends
	fetcher  BlobFetcher
	logger   zerolog.Logger
}

func NewProfileSource(backends Backends, fetcher BlobFetcher, logger zerolog.Logger) *ProfileSource {
	return &ProfileSource{
		backends: backends,
		fetcher:  fetcher,
		logger:   logger.With().Str("module", "ledger.profile").Logger(),
	}
}

type profileDocument struct {
	LSP3Profile *struct {
		Name         string `json:"name"`
		ProfileImage []struct {
			URL string `json:"url"`
		} `json:"profileImage"`
	} `json:"LSP3Profile"`
}

// FetchProfile reads the profile's metadata reference and resolves it to a
// display card. Profiles without metadata resolve to a card carrying only the
// address.
func (s *ProfileSource) FetchProfile(ctx context.Context, profile common.Address, chainID uint64) (adventure.ProfileCard, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ProfileSource.FetchProfile")
	defer span.End()

	card := adventure.ProfileCard{Address: profile.Hex()}

	backend, ok := s.backends.Network(chainID)
	if !ok {
		return card, errors.Errorf("unsupported network %d", chainID)
	}

	ref, err := backend.Profile(profile).GetData(ctx, erc725.ProfileDataKey())
	if err != nil {
		return card, errors.Wrap(err, "failed to read profile metadata reference")
	}
	if len(ref) == 0 {
		return card, nil
	}

	vuri, err := lsp4.DecodeVerifiableURI(ref)
	if err != nil {
		s.logger.Warn().Err(err).Str("profile", profile.Hex()).Msg("unreadable profile reference")
		return card, nil
	}

	payload, err := s.fetcher.FetchBlob(ctx, adventure.ResolveIPFSURL(backend.Gateway(), vuri.URL))
	if err != nil {
		return card, errors.Wrap(err, "failed to fetch profile document")
	}

	var doc profileDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.logger.Warn().Err(err).Str("profile", profile.Hex()).Msg("undecodable profile document")
		return card, nil
	}
	if doc.LSP3Profile == nil {
		return card, nil
	}

	card.Name = doc.LSP3Profile.Name
	if len(doc.LSP3Profile.ProfileImage) > 0 {
		card.AvatarURL = adventure.ResolveIPFSURL(backend.Gateway(), doc.LSP3Profile.ProfileImage[0].URL)
	}
	return card, nil
}
