package domain

import (
	"github.com/ethereum/go-ethereum/common"

	adventure "github.com/yearone-io/story-adventure"
)

// Story is one profile's narrative: an ordered sequence of entries backed by
// a dedicated collection. Entry indices are contiguous starting at 1; index 1
// is the genesis entry minted by the owner.
type Story struct {
	Collection     common.Address         `json:"collection"`
	Owner          common.Address         `json:"owner"`
	ChainID        uint64                 `json:"chainId"`
	MintingEnabled bool                   `json:"mintingEnabled"`
	Entries        []adventure.StoryEntry `json:"entries"`
}

// ChainProfile is a profile identity together with the network its account
// actually lives on, as resolved by probing.
type ChainProfile struct {
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chainId"`
}

// CommitReceipt reports the outcome of a genesis commit. A true
// RegistrationPending flags the recoverable-but-inconsistent state where the
// collection was minted but could not be registered against the owner's
// asset index.
type CommitReceipt struct {
	Collection          common.Address `json:"collection"`
	TxHash              common.Hash    `json:"txHash"`
	RegistrationPending bool           `json:"registrationPending,omitempty"`
}
