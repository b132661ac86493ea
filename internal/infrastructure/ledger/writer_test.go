package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yearone-io/story-adventure/internal/domain"
)

func newWriterFixture(status uint64) (*Writer, *mockBackend, *countingStore) {
	backend := &mockBackend{
		chainID: 42,
		gateway: testGateway,
		profile: &mockProfile{data: map[common.Hash][]byte{}},
		collections: map[common.Address]*mockCollection{
			testCollection: {mintingEnabled: true, owner: testProfile},
		},
		factory:       &mockFactory{collection: testCollection},
		receiptStatus: status,
	}
	store := &countingStore{}
	writer := NewWriter(mockBackends{42: backend}, fixedResolver(42), store, zerolog.Nop())
	writer.now = func() time.Time { return time.Unix(1700000000, 0) }
	return writer, backend, store
}

func TestCommitGenesisHappyPath(t *testing.T) {
	writer, backend, store := newWriterFixture(1)

	receipt, err := writer.CommitGenesis(context.Background(), 42, GenesisRequest{
		Owner:  testProfile,
		Title:  "The Lighthouse",
		Prompt: "The light was burning again.",
		Image:  []byte{0x89, 0x50},
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Collection != testCollection {
		t.Errorf("receipt names collection %s", receipt.Collection.Hex())
	}
	if receipt.RegistrationPending {
		t.Error("registration flagged pending on the happy path")
	}
	if backend.factory.minted != 1 {
		t.Errorf("factory minted %d times", backend.factory.minted)
	}
	if backend.profile.setReceived != 1 {
		t.Errorf("registration issued %d times", backend.profile.setReceived)
	}
	// Two envelopes and two image uploads.
	if store.stored != 4 {
		t.Errorf("store received %d uploads", store.stored)
	}
}

func TestCommitGenesisRegistrationFailureIsPending(t *testing.T) {
	writer, backend, _ := newWriterFixture(1)
	backend.profile.setErr = errors.New("profile controller rejected")

	receipt, err := writer.CommitGenesis(context.Background(), 42, GenesisRequest{
		Owner:  testProfile,
		Title:  "T",
		Prompt: "P",
	})
	if err != nil {
		t.Fatalf("registration failure must not fail the commit: %v", err)
	}
	if !receipt.RegistrationPending {
		t.Error("pending registration not reported")
	}
	if receipt.Collection != testCollection {
		t.Error("collection lost on pending registration")
	}
}

func TestCommitGenesisNetworkMismatch(t *testing.T) {
	writer, backend, store := newWriterFixture(1)

	_, err := writer.CommitGenesis(context.Background(), 4201, GenesisRequest{
		Owner: testProfile, Title: "T", Prompt: "P",
	})
	if !errors.Is(err, domain.ErrNetworkMismatch) {
		t.Fatalf("expected NetworkMismatchError, got %v", err)
	}
	if backend.factory.minted != 0 {
		t.Error("transaction issued despite mismatch")
	}
	if store.stored != 0 {
		t.Error("content staged despite mismatch")
	}
}

func TestCommitGenesisUpstreamFailure(t *testing.T) {
	writer, backend, store := newWriterFixture(1)
	store.err = errors.New("store unavailable")

	_, err := writer.CommitGenesis(context.Background(), 42, GenesisRequest{
		Owner: testProfile, Title: "T", Prompt: "P",
	})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if backend.factory.minted != 0 {
		t.Error("transaction issued after upstream failure")
	}
}

func TestCommitGenesisReverted(t *testing.T) {
	writer, _, _ := newWriterFixture(0)

	_, err := writer.CommitGenesis(context.Background(), 42, GenesisRequest{
		Owner: testProfile, Title: "T", Prompt: "P",
	})
	if !errors.Is(err, domain.ErrTransactionReverted) {
		t.Fatalf("expected TransactionRevertedError, got %v", err)
	}
}

func TestCommitAppendHappyPath(t *testing.T) {
	writer, backend, _ := newWriterFixture(1)

	receipt, err := writer.CommitAppend(context.Background(), 42, AppendRequest{
		Owner:      testProfile,
		Collection: testCollection,
		Author:     common.HexToAddress("0xA1"),
		Prompt:     "And then it went dark.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Collection != testCollection {
		t.Errorf("receipt names collection %s", receipt.Collection.Hex())
	}
	col := backend.collections[testCollection]
	if len(col.minted) != 1 {
		t.Fatalf("collection minted %d entries", len(col.minted))
	}
}

func TestCommitAppendNetworkMismatch(t *testing.T) {
	writer, backend, store := newWriterFixture(1)

	_, err := writer.CommitAppend(context.Background(), 4201, AppendRequest{
		Owner:      testProfile,
		Collection: testCollection,
		Author:     testProfile,
		Prompt:     "P",
	})
	if !errors.Is(err, domain.ErrNetworkMismatch) {
		t.Fatalf("expected NetworkMismatchError, got %v", err)
	}
	if col := backend.collections[testCollection]; len(col.minted) != 0 {
		t.Error("transaction issued despite mismatch")
	}
	if store.stored != 0 {
		t.Error("content staged despite mismatch")
	}
}

func TestCommitAppendUserCancelled(t *testing.T) {
	writer, backend, _ := newWriterFixture(1)
	backend.collections[testCollection].mintErr = errors.New("User rejected the request")

	_, err := writer.CommitAppend(context.Background(), 42, AppendRequest{
		Owner: testProfile, Collection: testCollection, Prompt: "P",
	})
	if !errors.Is(err, domain.ErrUserCancelled) {
		t.Fatalf("expected UserCancelledError, got %v", err)
	}
}

func TestClassifyRevertReason(t *testing.T) {
	err := classify(errors.New("execution reverted: minting disabled"))
	if !errors.Is(err, domain.ErrTransactionReverted) {
		t.Fatalf("expected TransactionRevertedError, got %v", err)
	}
	var reverted domain.TransactionRevertedError
	if !errors.As(err, &reverted) {
		t.Fatal("reason not extractable")
	}
	if reverted.Reason != "minting disabled" {
		t.Errorf("reason %q", reverted.Reason)
	}
}

func TestRegisterRepairsPendingRegistration(t *testing.T) {
	writer, backend, _ := newWriterFixture(1)

	if err := writer.Register(context.Background(), 42, testProfile, testCollection); err != nil {
		t.Fatal(err)
	}
	if backend.profile.setReceived != 1 {
		t.Errorf("registration issued %d times", backend.profile.setReceived)
	}
	if len(backend.profile.setKeys) != 3 {
		t.Errorf("registration wrote %d keys", len(backend.profile.setKeys))
	}
}
