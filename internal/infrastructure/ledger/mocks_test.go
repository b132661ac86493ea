package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type mockProfile struct {
	data        map[common.Hash][]byte
	setKeys     []common.Hash
	setValues   [][]byte
	setErr      error
	setReceived int
}

func (m *mockProfile) GetData(ctx context.Context, key common.Hash) ([]byte, error) {
	return m.data[key], nil
}

func (m *mockProfile) GetDataBatch(ctx context.Context, keys []common.Hash) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockProfile) SetDataBatch(opts *bind.TransactOpts, keys []common.Hash, values [][]byte) (*types.Transaction, error) {
	m.setReceived++
	if m.setErr != nil {
		return nil, m.setErr
	}
	m.setKeys = keys
	m.setValues = values
	for i, k := range keys {
		m.data[k] = values[i]
	}
	return types.NewTx(&types.LegacyTx{}), nil
}

type mockCollection struct {
	supply         uint64
	mintingEnabled bool
	owner          common.Address
	records        map[common.Hash][]byte
	mintErr        error
	minted         [][]byte
}

func (m *mockCollection) TotalSupply(ctx context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(m.supply), nil
}

func (m *mockCollection) MintingEnabled(ctx context.Context) (bool, error) {
	return m.mintingEnabled, nil
}

func (m *mockCollection) StoryOwner(ctx context.Context) (common.Address, error) {
	return m.owner, nil
}

func (m *mockCollection) TokenIdsOf(ctx context.Context, owner common.Address) ([]common.Hash, error) {
	return nil, nil
}

func (m *mockCollection) GetDataBatchForTokenIds(ctx context.Context, tokenIds, dataKeys []common.Hash) ([][]byte, error) {
	out := make([][]byte, len(tokenIds))
	for i, id := range tokenIds {
		out[i] = m.records[id]
	}
	return out, nil
}

func (m *mockCollection) Mint(opts *bind.TransactOpts, metadata []byte) (*types.Transaction, error) {
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	m.minted = append(m.minted, metadata)
	if m.records == nil {
		m.records = map[common.Hash][]byte{}
	}
	m.supply++
	m.records[TokenID(m.supply)] = metadata
	return types.NewTx(&types.LegacyTx{}), nil
}

type mockFactory struct {
	mintErr    error
	collection common.Address
	minted     int
	// target receives the first entry the way the real factory seeds a new
	// collection.
	target *mockCollection
}

func (m *mockFactory) Mint(opts *bind.TransactOpts, name, symbol string, owner common.Address, restricted bool,
	storyMetadata, entryMetadata []byte, followerSystem common.Address) (*types.Transaction, error) {
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	m.minted++
	if m.target != nil {
		if m.target.records == nil {
			m.target.records = map[common.Hash][]byte{}
		}
		m.target.supply = 1
		m.target.records[TokenID(1)] = entryMetadata
		m.target.owner = owner
	}
	return types.NewTx(&types.LegacyTx{}), nil
}

func (m *mockFactory) CollectionCreated(receipt *types.Receipt) (common.Address, error) {
	return m.collection, nil
}

type mockBackend struct {
	chainID       uint64
	gateway       string
	profile       *mockProfile
	collections   map[common.Address]*mockCollection
	factory       *mockFactory
	receiptStatus uint64
}

func (b *mockBackend) ChainID() uint64                { return b.chainID }
func (b *mockBackend) Gateway() string                { return b.gateway }
func (b *mockBackend) FollowerSystem() common.Address { return common.Address{} }

func (b *mockBackend) Profile(addr common.Address) ProfileContract { return b.profile }

func (b *mockBackend) Collection(addr common.Address) CollectionContract {
	return b.collections[addr]
}

func (b *mockBackend) Factory() FactoryContract { return b.factory }

func (b *mockBackend) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{Context: ctx}, nil
}

func (b *mockBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	status := b.receiptStatus
	return &types.Receipt{Status: status, TxHash: tx.Hash()}, nil
}

type mockBackends map[uint64]NetworkBackend

func (m mockBackends) Network(chainID uint64) (NetworkBackend, bool) {
	b, ok := m[chainID]
	return b, ok
}

type fixedResolver uint64

func (r fixedResolver) ResolveProfileNetwork(ctx context.Context, profile common.Address) (uint64, error) {
	return uint64(r), nil
}

type mapFetcher map[string][]byte

func (f mapFetcher) FetchBlob(ctx context.Context, url string) ([]byte, error) {
	data, ok := f[url]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return data, nil
}

// contentStore is a content-addressed store whose blobs are readable back
// through the gateway URL scheme, so writes feed subsequent reads.
type contentStore struct {
	blobs map[string][]byte
	n     int
}

func newContentStore() *contentStore {
	return &contentStore{blobs: map[string][]byte{}}
}

func (s *contentStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	s.n++
	id := fmt.Sprintf("QmLifecycle%d", s.n)
	s.blobs[id] = append([]byte{}, data...)
	return id, nil
}

func (s *contentStore) FetchBlob(ctx context.Context, url string) ([]byte, error) {
	data, ok := s.blobs[strings.TrimPrefix(url, testGateway)]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", url)
	}
	return data, nil
}

type countingStore struct {
	stored int
	err    error
}

func (s *countingStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.stored++
	return "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", nil
}
