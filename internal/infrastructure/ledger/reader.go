package ledger

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/erc725"
	"github.com/yearone-io/story-adventure/internal/domain"
	"github.com/yearone-io/story-adventure/lsp4"
)

var tracer = otel.Tracer("ledger")

// NetworkResolver maps a profile to its resident network.
type NetworkResolver interface {
	ResolveProfileNetwork(ctx context.Context, profile common.Address) (uint64, error)
}

// BlobFetcher retrieves envelope payloads from a content gateway.
type BlobFetcher interface {
	FetchBlob(ctx context.Context, url string) ([]byte, error)
}

// Reader reconstructs full story histories from the ledger.
type Reader struct {
	backends Backends
	resolver NetworkResolver
	fetcher  BlobFetcher
	logger   zerolog.Logger
}

func NewReader(backends Backends, resolver NetworkResolver, fetcher BlobFetcher, logger zerolog.Logger) *Reader {
	return &Reader{
		backends: backends,
		resolver: resolver,
		fetcher:  fetcher,
		logger:   logger.With().Str("module", "ledger.reader").Logger(),
	}
}

// TokenID derives the deterministic lookup key for a sequence index.
func TokenID(index uint64) common.Hash {
	var id common.Hash
	binary.BigEndian.PutUint64(id[24:], index)
	return id
}

// LoadHistory rebuilds the ordered history of the profile's story. A profile
// without a registered collection yields NotStartedError; a collection with
// zero records yields an empty history.
func (r *Reader) LoadHistory(ctx context.Context, profile common.Address) (domain.Story, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Reader.LoadHistory")
	defer span.End()

	chainID, err := r.resolver.ResolveProfileNetwork(ctx, profile)
	if err != nil {
		return domain.Story{}, errors.Wrap(err, "failed to resolve profile network")
	}

	backend, ok := r.backends.Network(chainID)
	if !ok {
		return domain.Story{}, errors.Errorf("unsupported network %d", chainID)
	}

	collection, err := r.latestCollection(ctx, backend, profile)
	if err != nil {
		return domain.Story{}, err
	}

	col := backend.Collection(collection)

	supply, err := col.TotalSupply(ctx)
	if err != nil {
		return domain.Story{}, errors.Wrap(err, "failed to read record count")
	}
	count := supply.Uint64()

	mintingEnabled, err := col.MintingEnabled(ctx)
	if err != nil {
		return domain.Story{}, errors.Wrap(err, "failed to read minting state")
	}

	story := domain.Story{
		Collection:     collection,
		Owner:          profile,
		ChainID:        chainID,
		MintingEnabled: mintingEnabled,
		Entries:        []adventure.StoryEntry{},
	}
	if count == 0 {
		return story, nil
	}

	// One batched call for all envelope references; index order is
	// authoritative and preserved by position.
	tokenIds := make([]common.Hash, count)
	dataKeys := make([]common.Hash, count)
	metadataKey := erc725.AssetMetadataKey()
	for i := uint64(0); i < count; i++ {
		tokenIds[i] = TokenID(i + 1)
		dataKeys[i] = metadataKey
	}

	refs, err := col.GetDataBatchForTokenIds(ctx, tokenIds, dataKeys)
	if err != nil {
		return domain.Story{}, errors.Wrap(err, "failed to batch-fetch envelopes")
	}

	entries := make([]adventure.StoryEntry, 0, count)
	for i, ref := range refs {
		entries = append(entries, r.decodeEntry(ctx, backend, uint64(i+1), ref))
	}

	story.Entries = entries
	return story, nil
}

// latestCollection resolves the profile's most recent collection from its
// issued-assets index. Multiple collections are tolerated; the last
// registered one is canonical.
func (r *Reader) latestCollection(ctx context.Context, backend NetworkBackend, profile common.Address) (common.Address, error) {
	prof := backend.Profile(profile)

	lengthValue, err := prof.GetData(ctx, erc725.IssuedAssetsArrayKey())
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to read asset index")
	}

	length := erc725.ArrayLength(lengthValue)
	if length == 0 {
		return common.Address{}, domain.NotStartedError{Profile: profile.Hex()}
	}

	slotValue, err := prof.GetData(ctx, erc725.IssuedAssetsElementKey(length-1))
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to read asset index slot")
	}
	if len(slotValue) != common.AddressLength {
		return common.Address{}, domain.NotStartedError{Profile: profile.Hex()}
	}

	return common.BytesToAddress(slotValue), nil
}

// decodeEntry turns one raw envelope reference into a story entry. Schema
// and attribute problems degrade to a sentinel entry so one bad record never
// aborts the whole reconstruction.
func (r *Reader) decodeEntry(ctx context.Context, backend NetworkBackend, index uint64, ref []byte) adventure.StoryEntry {
	entry := adventure.StoryEntry{Index: index, Selected: true}

	vuri, err := lsp4.DecodeVerifiableURI(ref)
	if err != nil {
		r.logger.Warn().Err(err).Uint64("index", index).Msg("unreadable envelope reference")
		return entry
	}

	payload, err := r.fetcher.FetchBlob(ctx, adventure.ResolveIPFSURL(backend.Gateway(), vuri.URL))
	if err != nil {
		r.logger.Warn().Err(err).Uint64("index", index).Msg("envelope fetch failed")
		return entry
	}

	if err := vuri.VerifyPayload(payload); err != nil {
		r.logger.Warn().Err(err).Uint64("index", index).Msg("envelope hash mismatch")
		return entry
	}

	record, err := lsp4.Decode(payload)
	if err != nil {
		r.logger.Warn().Err(err).Uint64("index", index).Msg("undecodable envelope")
		return entry
	}

	entry.Prompt = record.Description

	if author, err := record.Author(); err == nil {
		entry.Author = author
	} else {
		r.logger.Warn().Err(err).Uint64("index", index).Msg("envelope missing author")
		entry.Author = (common.Address{}).Hex()
	}

	if createdAt, err := record.CreatedAt(); err == nil {
		entry.Timestamp = createdAt
	} else {
		r.logger.Warn().Err(err).Uint64("index", index).Msg("envelope missing createdAt")
	}

	if len(record.Images) > 0 {
		entry.ImageCID = record.Images[0].URL
		entry.ImageURL = adventure.ResolveIPFSURL(backend.Gateway(), record.Images[0].URL)
	}

	return entry
}
