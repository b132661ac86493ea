package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/internal/domain"
	"github.com/yearone-io/story-adventure/internal/infrastructure/ledger"
)

// HistoryLoader reconstructs a profile's story from the ledger.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, profile common.Address) (domain.Story, error)
}

// Committer writes story entries to the ledger.
type Committer interface {
	CommitGenesis(ctx context.Context, active uint64, req ledger.GenesisRequest) (domain.CommitReceipt, error)
	CommitAppend(ctx context.Context, active uint64, req ledger.AppendRequest) (domain.CommitReceipt, error)
	Register(ctx context.Context, active uint64, owner, collection common.Address) error
}

// Generator produces continuations and illustrations. Both methods degrade
// internally and never fail.
type Generator interface {
	GenerateOptions(ctx context.Context, history []string) []string
	GenerateImage(ctx context.Context, history []string) []byte
}

// ProfileLookup resolves display cards for profile addresses.
type ProfileLookup interface {
	Lookup(ctx context.Context, profile common.Address, chainID uint64) (adventure.ProfileCard, error)
}
