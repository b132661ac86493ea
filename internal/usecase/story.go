package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/internal/domain"
	"github.com/yearone-io/story-adventure/internal/infrastructure/ledger"
)

var tracer = otel.Tracer("usecase")

// HistoryView is a reconstructed story enriched with the display cards of
// every author appearing in it.
type HistoryView struct {
	Story   domain.Story                     `json:"story"`
	Authors map[string]adventure.ProfileCard `json:"authors"`
}

// StoryUsecase orchestrates reads, generation, and commits for one request.
type StoryUsecase struct {
	loader    HistoryLoader
	committer Committer
	generator Generator
	profiles  ProfileLookup
	logger    zerolog.Logger
}

func NewStoryUsecase(loader HistoryLoader, committer Committer, generator Generator, profiles ProfileLookup, logger zerolog.Logger) *StoryUsecase {
	return &StoryUsecase{
		loader:    loader,
		committer: committer,
		generator: generator,
		profiles:  profiles,
		logger:    logger.With().Str("module", "usecase").Logger(),
	}
}

// LoadHistory returns the profile's full story with author cards resolved
// concurrently. A card that cannot be resolved degrades to address-only; it
// never fails the view.
func (uc *StoryUsecase) LoadHistory(ctx context.Context, profile string) (HistoryView, error) {
	ctx, span := tracer.Start(ctx, "Story.Usecase.LoadHistory")
	defer span.End()

	addr, err := parseProfile(profile)
	if err != nil {
		return HistoryView{}, err
	}

	story, err := uc.loader.LoadHistory(ctx, addr)
	if err != nil {
		return HistoryView{}, err
	}

	authors := make(map[string]adventure.ProfileCard)
	for _, entry := range story.Entries {
		if entry.Author != "" {
			authors[entry.Author] = adventure.ProfileCard{Address: entry.Author}
		}
	}

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	for author := range authors {
		author := author
		group.Go(func() error {
			card, err := uc.profiles.Lookup(gctx, common.HexToAddress(author), story.ChainID)
			if err != nil {
				uc.logger.Debug().Err(err).Str("author", author).Msg("author card unavailable")
				return nil
			}
			mu.Lock()
			authors[author] = card
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return HistoryView{}, err
	}

	return HistoryView{Story: story, Authors: authors}, nil
}

// StartStory seeds a new story for the profile: one generated illustration,
// one collection minted with the seed as its first entry. Only profiles
// without an existing story may start one.
func (uc *StoryUsecase) StartStory(ctx context.Context, active uint64, profile, title, prompt string) (domain.CommitReceipt, error) {
	ctx, span := tracer.Start(ctx, "Story.Usecase.StartStory")
	defer span.End()

	addr, err := parseProfile(profile)
	if err != nil {
		return domain.CommitReceipt{}, err
	}
	if err := validatePrompt(prompt); err != nil {
		return domain.CommitReceipt{}, err
	}
	if strings.TrimSpace(title) == "" {
		return domain.CommitReceipt{}, domain.ValidationError{Detail: "title must not be empty"}
	}

	if _, err := uc.loader.LoadHistory(ctx, addr); err == nil {
		return domain.CommitReceipt{}, domain.ValidationError{Detail: "story already started"}
	} else if !errors.Is(err, domain.ErrNotStarted) {
		return domain.CommitReceipt{}, err
	}

	image := uc.generator.GenerateImage(ctx, []string{prompt})

	return uc.committer.CommitGenesis(ctx, active, ledger.GenesisRequest{
		Owner:  addr,
		Title:  title,
		Prompt: prompt,
		Image:  image,
	})
}

// ExtendStory appends one entry to an existing story. The story must exist
// and still accept contributions.
func (uc *StoryUsecase) ExtendStory(ctx context.Context, active uint64, profile, author, prompt string) (domain.CommitReceipt, error) {
	ctx, span := tracer.Start(ctx, "Story.Usecase.ExtendStory")
	defer span.End()

	addr, err := parseProfile(profile)
	if err != nil {
		return domain.CommitReceipt{}, err
	}
	authorAddr, err := parseProfile(author)
	if err != nil {
		return domain.CommitReceipt{}, err
	}
	if err := validatePrompt(prompt); err != nil {
		return domain.CommitReceipt{}, err
	}

	story, err := uc.loader.LoadHistory(ctx, addr)
	if err != nil {
		return domain.CommitReceipt{}, err
	}
	if !story.MintingEnabled {
		return domain.CommitReceipt{}, domain.ValidationError{Detail: "story no longer accepts contributions"}
	}

	history := entryPrompts(story)
	image := uc.generator.GenerateImage(ctx, append(history, prompt))

	return uc.committer.CommitAppend(ctx, active, ledger.AppendRequest{
		Owner:      addr,
		Collection: story.Collection,
		Author:     authorAddr,
		Prompt:     prompt,
		Image:      image,
	})
}

// NextOptions proposes three continuations for the profile's story, each with
// its own illustration generated concurrently.
func (uc *StoryUsecase) NextOptions(ctx context.Context, profile string) ([]adventure.StoryOption, error) {
	ctx, span := tracer.Start(ctx, "Story.Usecase.NextOptions")
	defer span.End()

	addr, err := parseProfile(profile)
	if err != nil {
		return nil, err
	}

	story, err := uc.loader.LoadHistory(ctx, addr)
	if err != nil {
		return nil, err
	}

	history := entryPrompts(story)
	texts := uc.generator.GenerateOptions(ctx, history)

	options := make([]adventure.StoryOption, len(texts))
	group, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		i, text := i, text
		options[i].Text = text
		group.Go(func() error {
			options[i].Image = uc.generator.GenerateImage(gctx, append(history, text))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return options, nil
}

// Register repairs a genesis whose asset-index registration failed.
func (uc *StoryUsecase) Register(ctx context.Context, active uint64, profile, collection string) error {
	ctx, span := tracer.Start(ctx, "Story.Usecase.Register")
	defer span.End()

	addr, err := parseProfile(profile)
	if err != nil {
		return err
	}
	if !adventure.IsProfileAddress(collection) {
		return domain.ValidationError{Detail: "malformed collection address"}
	}
	return uc.committer.Register(ctx, active, addr, common.HexToAddress(collection))
}

func parseProfile(profile string) (common.Address, error) {
	if !adventure.IsProfileAddress(profile) {
		return common.Address{}, domain.ValidationError{Detail: "malformed profile address"}
	}
	return common.HexToAddress(profile), nil
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return domain.ValidationError{Detail: "prompt must not be empty"}
	}
	if len(prompt) > adventure.MaxPromptLength {
		return domain.ValidationError{Detail: "prompt exceeds maximum length"}
	}
	return nil
}

func entryPrompts(story domain.Story) []string {
	prompts := make([]string, 0, len(story.Entries))
	for _, entry := range story.Entries {
		if entry.Prompt != "" {
			prompts = append(prompts, entry.Prompt)
		}
	}
	return prompts
}
