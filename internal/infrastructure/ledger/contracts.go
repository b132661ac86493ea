// Package ledger is the on-chain side of the story system: ABI-bound access
// to the collection factory, the per-story collections, and profile data
// stores, plus the reader and writer built on top of them.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/yearone-io/story-adventure/internal/config"
)

const factoryABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
		{"name":"name","type":"string"},
		{"name":"symbol","type":"string"},
		{"name":"storyOwner","type":"address"},
		{"name":"restricted","type":"bool"},
		{"name":"storyMetadata","type":"bytes"},
		{"name":"firstEntryMetadata","type":"bytes"},
		{"name":"followerSystem","type":"address"}],"outputs":[]},
	{"type":"event","name":"StorylineCreated","anonymous":false,"inputs":[
		{"name":"name","type":"string","indexed":false},
		{"name":"storyline","type":"address","indexed":false},
		{"name":"storyOwner","type":"address","indexed":false}]}
]`

const collectionABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
		{"name":"metadata","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"mintingEnabled","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"storyOwner","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"tokenIdsOf","stateMutability":"view","inputs":[
		{"name":"tokenOwner","type":"address"}],
		"outputs":[{"name":"","type":"bytes32[]"}]},
	{"type":"function","name":"getDataBatchForTokenIds","stateMutability":"view","inputs":[
		{"name":"tokenIds","type":"bytes32[]"},
		{"name":"dataKeys","type":"bytes32[]"}],
		"outputs":[{"name":"","type":"bytes[]"}]}
]`

const profileABIJSON = `[
	{"type":"function","name":"getData","stateMutability":"view","inputs":[
		{"name":"dataKey","type":"bytes32"}],
		"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"getDataBatch","stateMutability":"view","inputs":[
		{"name":"dataKeys","type":"bytes32[]"}],
		"outputs":[{"name":"","type":"bytes[]"}]},
	{"type":"function","name":"setDataBatch","stateMutability":"payable","inputs":[
		{"name":"dataKeys","type":"bytes32[]"},
		{"name":"dataValues","type":"bytes[]"}],"outputs":[]}
]`

var (
	factoryABI    = mustParseABI(factoryABIJSON)
	collectionABI = mustParseABI(collectionABIJSON)
	profileABI    = mustParseABI(profileABIJSON)
)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ProfileContract is the ERC725Y data store of a profile.
type ProfileContract interface {
	GetData(ctx context.Context, key common.Hash) ([]byte, error)
	GetDataBatch(ctx context.Context, keys []common.Hash) ([][]byte, error)
	SetDataBatch(opts *bind.TransactOpts, keys []common.Hash, values [][]byte) (*types.Transaction, error)
}

// CollectionContract is one story's collection.
type CollectionContract interface {
	TotalSupply(ctx context.Context) (*big.Int, error)
	MintingEnabled(ctx context.Context) (bool, error)
	StoryOwner(ctx context.Context) (common.Address, error)
	TokenIdsOf(ctx context.Context, owner common.Address) ([]common.Hash, error)
	GetDataBatchForTokenIds(ctx context.Context, tokenIds, dataKeys []common.Hash) ([][]byte, error)
	Mint(opts *bind.TransactOpts, metadata []byte) (*types.Transaction, error)
}

// FactoryContract creates new story collections.
type FactoryContract interface {
	Mint(opts *bind.TransactOpts, name, symbol string, owner common.Address, restricted bool,
		storyMetadata, entryMetadata []byte, followerSystem common.Address) (*types.Transaction, error)
	CollectionCreated(receipt *types.Receipt) (common.Address, error)
}

// NetworkBackend gives contract access on one network.
type NetworkBackend interface {
	ChainID() uint64
	Gateway() string
	FollowerSystem() common.Address
	Profile(addr common.Address) ProfileContract
	Collection(addr common.Address) CollectionContract
	Factory() FactoryContract
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Backends resolves a NetworkBackend by chain ID.
type Backends interface {
	Network(chainID uint64) (NetworkBackend, bool)
}

// BackendSet is the concrete Backends over configured networks.
type BackendSet map[uint64]NetworkBackend

func (s BackendSet) Network(chainID uint64) (NetworkBackend, bool) {
	b, ok := s[chainID]
	return b, ok
}

// EthBackend implements NetworkBackend over an RPC client and a local
// signing key.
type EthBackend struct {
	chainID  uint64
	gateway  string
	factory  common.Address
	follower common.Address
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
}

func NewEthBackend(cfg config.Network, client *ethclient.Client, key *ecdsa.PrivateKey) *EthBackend {
	return &EthBackend{
		chainID:  cfg.ChainID,
		gateway:  cfg.IPFSGateway,
		factory:  common.HexToAddress(cfg.FactoryAddress),
		follower: common.HexToAddress(cfg.FollowerSystem),
		client:   client,
		key:      key,
	}
}

func (b *EthBackend) ChainID() uint64                { return b.chainID }
func (b *EthBackend) Gateway() string                { return b.gateway }
func (b *EthBackend) FollowerSystem() common.Address { return b.follower }

func (b *EthBackend) Profile(addr common.Address) ProfileContract {
	return &boundProfile{contract: bind.NewBoundContract(addr, profileABI, b.client, b.client, b.client)}
}

func (b *EthBackend) Collection(addr common.Address) CollectionContract {
	return &boundCollection{contract: bind.NewBoundContract(addr, collectionABI, b.client, b.client, b.client)}
}

func (b *EthBackend) Factory() FactoryContract {
	return &boundFactory{contract: bind.NewBoundContract(b.factory, factoryABI, b.client, b.client, b.client)}
}

func (b *EthBackend) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(b.key, new(big.Int).SetUint64(b.chainID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build transactor")
	}
	opts.Context = ctx
	return opts, nil
}

func (b *EthBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, b.client, tx)
}

type boundProfile struct {
	contract *bind.BoundContract
}

func (p *boundProfile) GetData(ctx context.Context, key common.Hash) ([]byte, error) {
	var out []any
	err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getData", key)
	if err != nil {
		return nil, err
	}
	return out[0].([]byte), nil
}

func (p *boundProfile) GetDataBatch(ctx context.Context, keys []common.Hash) ([][]byte, error) {
	var out []any
	err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getDataBatch", hashesToBytes32(keys))
	if err != nil {
		return nil, err
	}
	return out[0].([][]byte), nil
}

func (p *boundProfile) SetDataBatch(opts *bind.TransactOpts, keys []common.Hash, values [][]byte) (*types.Transaction, error) {
	return p.contract.Transact(opts, "setDataBatch", hashesToBytes32(keys), values)
}

type boundCollection struct {
	contract *bind.BoundContract
}

func (c *boundCollection) TotalSupply(ctx context.Context) (*big.Int, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "totalSupply")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (c *boundCollection) MintingEnabled(ctx context.Context) (bool, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "mintingEnabled")
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *boundCollection) StoryOwner(ctx context.Context) (common.Address, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "storyOwner")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (c *boundCollection) TokenIdsOf(ctx context.Context, owner common.Address) ([]common.Hash, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenIdsOf", owner)
	if err != nil {
		return nil, err
	}
	return bytes32ToHashes(out[0].([][32]byte)), nil
}

func (c *boundCollection) GetDataBatchForTokenIds(ctx context.Context, tokenIds, dataKeys []common.Hash) ([][]byte, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getDataBatchForTokenIds",
		hashesToBytes32(tokenIds), hashesToBytes32(dataKeys))
	if err != nil {
		return nil, err
	}
	return out[0].([][]byte), nil
}

func (c *boundCollection) Mint(opts *bind.TransactOpts, metadata []byte) (*types.Transaction, error) {
	return c.contract.Transact(opts, "mint", metadata)
}

type boundFactory struct {
	contract *bind.BoundContract
}

func (f *boundFactory) Mint(opts *bind.TransactOpts, name, symbol string, owner common.Address, restricted bool,
	storyMetadata, entryMetadata []byte, followerSystem common.Address) (*types.Transaction, error) {
	return f.contract.Transact(opts, "mint", name, symbol, owner, restricted, storyMetadata, entryMetadata, followerSystem)
}

// CollectionCreated extracts the new collection address from the creation
// event in the receipt.
func (f *boundFactory) CollectionCreated(receipt *types.Receipt) (common.Address, error) {
	event := factoryABI.Events["StorylineCreated"]
	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(log.Data)
		if err != nil {
			return common.Address{}, errors.Wrap(err, "failed to decode creation event")
		}
		addr, ok := values[1].(common.Address)
		if !ok {
			return common.Address{}, errors.New("creation event carries no collection address")
		}
		return addr, nil
	}
	return common.Address{}, errors.New("no collection-created event in receipt")
}

func hashesToBytes32(in []common.Hash) [][32]byte {
	out := make([][32]byte, len(in))
	for i, h := range in {
		out[i] = h
	}
	return out
}

func bytes32ToHashes(in [][32]byte) []common.Hash {
	out := make([]common.Hash, len(in))
	for i, b := range in {
		out[i] = b
	}
	return out
}
