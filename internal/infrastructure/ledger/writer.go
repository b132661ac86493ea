package ledger

import (
	"bytes"
	"context"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/client"
	"github.com/yearone-io/story-adventure/erc725"
	"github.com/yearone-io/story-adventure/internal/domain"
	"github.com/yearone-io/story-adventure/lsp4"
)

const collectionSymbol = "STORY"

// ContentStore persists envelope payloads and attachments off chain.
type ContentStore interface {
	Store(ctx context.Context, data []byte, name string) (string, error)
}

// Writer commits story entries to the ledger. Both commit paths stage their
// content off chain first, so an upstream failure never leaves a transaction
// behind.
type Writer struct {
	backends Backends
	resolver NetworkResolver
	store    ContentStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewWriter(backends Backends, resolver NetworkResolver, store ContentStore, logger zerolog.Logger) *Writer {
	return &Writer{
		backends: backends,
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("module", "ledger.writer").Logger(),
		now:      time.Now,
	}
}

// GenesisRequest starts a story: collection name, seed prompt, and the first
// entry's image.
type GenesisRequest struct {
	Owner      common.Address
	Title      string
	Prompt     string
	Image      []byte
	Restricted bool
}

// AppendRequest extends an existing story.
type AppendRequest struct {
	Owner      common.Address
	Collection common.Address
	Author     common.Address
	Prompt     string
	Image      []byte
}

// CommitGenesis mints a new collection seeded with the first entry, then
// registers it against the owner's asset index as a second transaction. A
// registration failure after a successful mint is reported as pending, not as
// an error: the collection exists and the index can be repaired later.
func (w *Writer) CommitGenesis(ctx context.Context, active uint64, req GenesisRequest) (domain.CommitReceipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Writer.CommitGenesis")
	defer span.End()

	backend, err := w.backendFor(ctx, active, req.Owner)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	storyRef, err := w.stageStoryEnvelope(ctx, req.Title, req.Prompt, req.Image)
	if err != nil {
		return domain.CommitReceipt{}, err
	}
	entryRef, err := w.stageEntryEnvelope(ctx, req.Title, req.Prompt, req.Owner, req.Image)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	opts, err := backend.Transactor(ctx)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	tx, err := backend.Factory().Mint(opts, req.Title, collectionSymbol, req.Owner,
		req.Restricted, storyRef, entryRef, backend.FollowerSystem())
	if err != nil {
		return domain.CommitReceipt{}, classify(err)
	}

	receipt, err := backend.WaitMined(ctx, tx)
	if err != nil {
		return domain.CommitReceipt{}, errors.Wrap(err, "failed awaiting mint")
	}
	if receipt.Status != 1 {
		return domain.CommitReceipt{}, domain.TransactionRevertedError{Reason: "collection mint reverted"}
	}

	collection, err := backend.Factory().CollectionCreated(receipt)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	result := domain.CommitReceipt{Collection: collection, TxHash: tx.Hash()}

	if err := w.register(ctx, backend, req.Owner, collection); err != nil {
		w.logger.Error().Err(err).
			Str("owner", req.Owner.Hex()).
			Str("collection", collection.Hex()).
			Msg("collection minted but asset-index registration failed")
		result.RegistrationPending = true
	}

	w.logger.Info().Str("collection", collection.Hex()).Str("tx", tx.Hash().Hex()).
		Bool("registrationPending", result.RegistrationPending).Msg("genesis committed")
	return result, nil
}

// CommitAppend mints one entry into an existing collection.
func (w *Writer) CommitAppend(ctx context.Context, active uint64, req AppendRequest) (domain.CommitReceipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Writer.CommitAppend")
	defer span.End()

	backend, err := w.backendFor(ctx, active, req.Owner)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	entryRef, err := w.stageEntryEnvelope(ctx, "", req.Prompt, req.Author, req.Image)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	opts, err := backend.Transactor(ctx)
	if err != nil {
		return domain.CommitReceipt{}, err
	}

	tx, err := backend.Collection(req.Collection).Mint(opts, entryRef)
	if err != nil {
		return domain.CommitReceipt{}, classify(err)
	}

	receipt, err := backend.WaitMined(ctx, tx)
	if err != nil {
		return domain.CommitReceipt{}, errors.Wrap(err, "failed awaiting mint")
	}
	if receipt.Status != 1 {
		return domain.CommitReceipt{}, domain.TransactionRevertedError{Reason: "entry mint reverted"}
	}

	w.logger.Info().Str("collection", req.Collection.Hex()).Str("tx", tx.Hash().Hex()).Msg("entry committed")
	return domain.CommitReceipt{Collection: req.Collection, TxHash: tx.Hash()}, nil
}

// Register repairs a pending registration: it records the collection against
// the owner's asset index after a genesis whose second transaction failed.
func (w *Writer) Register(ctx context.Context, active uint64, owner, collection common.Address) error {
	ctx, span := tracer.Start(ctx, "Ledger.Writer.Register")
	defer span.End()

	backend, err := w.backendFor(ctx, active, owner)
	if err != nil {
		return err
	}
	return w.register(ctx, backend, owner, collection)
}

func (w *Writer) register(ctx context.Context, backend NetworkBackend, owner, collection common.Address) error {
	prof := backend.Profile(owner)

	lengthValue, err := prof.GetData(ctx, erc725.IssuedAssetsArrayKey())
	if err != nil {
		return errors.Wrap(err, "failed to read asset index length")
	}

	keys, values := erc725.IssuedAssetsRegistration(erc725.ArrayLength(lengthValue), collection)

	opts, err := backend.Transactor(ctx)
	if err != nil {
		return err
	}

	tx, err := prof.SetDataBatch(opts, keys, values)
	if err != nil {
		return classify(err)
	}

	receipt, err := backend.WaitMined(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "failed awaiting registration")
	}
	if receipt.Status != 1 {
		return domain.TransactionRevertedError{Reason: "asset-index registration reverted"}
	}
	return nil
}

func (w *Writer) backendFor(ctx context.Context, active uint64, profile common.Address) (NetworkBackend, error) {
	resident, err := w.resolver.ResolveProfileNetwork(ctx, profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve profile network")
	}
	if active != resident {
		return nil, domain.NetworkMismatchError{Active: active, Resident: resident}
	}
	backend, ok := w.backends.Network(active)
	if !ok {
		return nil, errors.Errorf("unsupported network %d", active)
	}
	return backend, nil
}

// stageEntryEnvelope stores the entry image and the envelope JSON, returning
// the on-chain reference bytes.
func (w *Writer) stageEntryEnvelope(ctx context.Context, title string, prompt string, author common.Address, image []byte) ([]byte, error) {
	record := lsp4.Record{
		Title:       title,
		Description: prompt,
		Attributes: []lsp4.Attribute{
			{Key: lsp4.AttributeAuthor, Value: author.Hex(), Type: lsp4.AttributeTypeString},
			{Key: lsp4.AttributeCreatedAt, Value: strconv.FormatInt(w.now().Unix(), 10), Type: lsp4.AttributeTypeNumber},
		},
	}
	return w.stageEnvelope(ctx, record, image, "entry")
}

// stageStoryEnvelope builds the collection-level envelope shown for the story
// as a whole.
func (w *Writer) stageStoryEnvelope(ctx context.Context, title, prompt string, image []byte) ([]byte, error) {
	record := lsp4.Record{Title: title, Description: prompt}
	return w.stageEnvelope(ctx, record, image, "story")
}

func (w *Writer) stageEnvelope(ctx context.Context, record lsp4.Record, image []byte, kind string) ([]byte, error) {
	// Upload names are informational only; the store addresses by content.
	// A fresh suffix keeps retries distinguishable in the store's listing.
	stem := kind + "-" + uuid.NewString()

	if len(image) > 0 {
		imageCID, err := w.store.Store(ctx, image, stem+".png")
		if err != nil {
			return nil, storeError(err)
		}
		width, height := imageDimensions(image)
		record.Images = []lsp4.Image{lsp4.NewImage(image, width, height, adventure.IPFSURI(imageCID))}
	}

	payload, err := lsp4.Encode(record)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode envelope")
	}

	payloadCID, err := w.store.Store(ctx, payload, stem+".json")
	if err != nil {
		return nil, storeError(err)
	}

	return lsp4.EncodeVerifiableURI(payload, adventure.IPFSURI(payloadCID)), nil
}

func imageDimensions(data []byte) (int, int) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func storeError(err error) error {
	var credErr client.CredentialError
	if errors.As(err, &credErr) {
		return domain.UpstreamError{Op: "credential", Err: err}
	}
	return domain.UpstreamError{Op: "store", Err: err}
}

// classify maps raw signing/submission errors onto the commit taxonomy. An
// explicit decline by the signer is a distinct, non-failure outcome.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied") {
		return domain.UserCancelledError{}
	}
	if strings.Contains(msg, "execution reverted") {
		return domain.TransactionRevertedError{Reason: revertReason(err)}
	}
	return errors.Wrap(err, "transaction submission failed")
}

func revertReason(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		reason := strings.TrimPrefix(msg[idx:], "execution reverted")
		return strings.TrimLeft(reason, ": ")
	}
	return msg
}
