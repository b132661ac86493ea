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

// TestStoryLifecycle drives the full write/read cycle against one backend:
// an unstarted profile, a genesis commit, a visitor append, and repeated
// history loads that must reconstruct exactly what was committed.
func TestStoryLifecycle(t *testing.T) {
	ctx := context.Background()
	visitor := common.HexToAddress("0x00000000000000000000000000000000000000A1")

	collection := &mockCollection{mintingEnabled: true}
	backend := &mockBackend{
		chainID:       42,
		gateway:       testGateway,
		profile:       &mockProfile{data: map[common.Hash][]byte{}},
		collections:   map[common.Address]*mockCollection{testCollection: collection},
		factory:       &mockFactory{collection: testCollection, target: collection},
		receiptStatus: 1,
	}
	backends := mockBackends{42: backend}
	store := newContentStore()

	writer := NewWriter(backends, fixedResolver(42), store, zerolog.Nop())
	writer.now = func() time.Time { return time.Unix(1700000000, 0) }
	reader := NewReader(backends, fixedResolver(42), store, zerolog.Nop())

	// Before genesis there is no story, only the distinct not-started state.
	if _, err := reader.LoadHistory(ctx, testProfile); !errors.Is(err, domain.ErrNotStarted) {
		t.Fatalf("expected NotStartedError before genesis, got %v", err)
	}

	receipt, err := writer.CommitGenesis(ctx, 42, GenesisRequest{
		Owner:  testProfile,
		Title:  "Adventure Time",
		Prompt: "It begins.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Collection != testCollection {
		t.Fatalf("genesis minted %s", receipt.Collection.Hex())
	}
	if receipt.RegistrationPending {
		t.Fatal("registration pending on a clean genesis")
	}

	story, err := reader.LoadHistory(ctx, testProfile)
	if err != nil {
		t.Fatal(err)
	}
	if len(story.Entries) != 1 {
		t.Fatalf("after genesis got %d entries", len(story.Entries))
	}
	first := story.Entries[0]
	if first.Index != 1 || first.Prompt != "It begins." {
		t.Errorf("genesis entry %+v", first)
	}
	if first.Author != testProfile.Hex() {
		t.Errorf("genesis author %q", first.Author)
	}
	if first.Timestamp != 1700000000 {
		t.Errorf("genesis timestamp %d", first.Timestamp)
	}

	writer.now = func() time.Time { return time.Unix(1700000100, 0) }
	if _, err := writer.CommitAppend(ctx, 42, AppendRequest{
		Owner:      testProfile,
		Collection: story.Collection,
		Author:     visitor,
		Prompt:     "A storm arrives.",
	}); err != nil {
		t.Fatal(err)
	}

	// Two loads in a row: the reconstruction is pure, both must agree.
	for round := 0; round < 2; round++ {
		story, err = reader.LoadHistory(ctx, testProfile)
		if err != nil {
			t.Fatal(err)
		}
		if len(story.Entries) != 2 {
			t.Fatalf("round %d got %d entries", round, len(story.Entries))
		}
		if story.Entries[0].Prompt != "It begins." || story.Entries[0].Index != 1 {
			t.Errorf("round %d first entry %+v", round, story.Entries[0])
		}
		second := story.Entries[1]
		if second.Index != 2 || second.Prompt != "A storm arrives." {
			t.Errorf("round %d second entry %+v", round, second)
		}
		if second.Author != visitor.Hex() {
			t.Errorf("round %d second author %q", round, second.Author)
		}
		if second.Timestamp != 1700000100 {
			t.Errorf("round %d second timestamp %d", round, second.Timestamp)
		}
	}
}
