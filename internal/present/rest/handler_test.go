package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/internal/domain"
	"github.com/yearone-io/story-adventure/internal/infrastructure/ledger"
	"github.com/yearone-io/story-adventure/internal/usecase"
)

type fakeLoader struct {
	story domain.Story
	err   error
}

func (f *fakeLoader) LoadHistory(ctx context.Context, profile common.Address) (domain.Story, error) {
	return f.story, f.err
}

type fakeCommitter struct {
	receipt domain.CommitReceipt
	err     error
}

func (f *fakeCommitter) CommitGenesis(ctx context.Context, active uint64, req ledger.GenesisRequest) (domain.CommitReceipt, error) {
	return f.receipt, f.err
}

func (f *fakeCommitter) CommitAppend(ctx context.Context, active uint64, req ledger.AppendRequest) (domain.CommitReceipt, error) {
	return f.receipt, f.err
}

func (f *fakeCommitter) Register(ctx context.Context, active uint64, owner, collection common.Address) error {
	return f.err
}

type fakeGenerator struct{}

func (fakeGenerator) GenerateOptions(ctx context.Context, history []string) []string {
	return []string{"a", "b", "c"}
}

func (fakeGenerator) GenerateImage(ctx context.Context, history []string) []byte {
	return []byte{0x89, 0x50}
}

type fakeProfiles struct{}

func (fakeProfiles) Lookup(ctx context.Context, profile common.Address, chainID uint64) (adventure.ProfileCard, error) {
	return adventure.ProfileCard{Address: profile.Hex()}, nil
}

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) UploadToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

func newTestServer(loader *fakeLoader, committer *fakeCommitter) *echo.Echo {
	story := usecase.NewStoryUsecase(loader, committer, fakeGenerator{}, fakeProfiles{}, zerolog.Nop())
	handler := NewHandler(story, fakeGenerator{}, fakeTokens{token: "jwt-1"}, 42)

	e := echo.New()
	handler.RegisterRoutes(e)
	return e
}

const testProfile = "0x1111111111111111111111111111111111111111"

func TestHistoryNotStartedIs404(t *testing.T) {
	e := newTestServer(&fakeLoader{err: domain.NotStartedError{Profile: testProfile}}, &fakeCommitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/story/"+testProfile+"/history", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "not_started" {
		t.Errorf("error code %q", body["code"])
	}
}

func TestHistoryReturnsView(t *testing.T) {
	story := domain.Story{
		Collection:     common.HexToAddress("0x22"),
		ChainID:        42,
		MintingEnabled: true,
		Entries:        []adventure.StoryEntry{{Index: 1, Prompt: "Once."}},
	}
	e := newTestServer(&fakeLoader{story: story}, &fakeCommitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/story/"+testProfile+"/history", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var view usecase.HistoryView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Story.Entries) != 1 || view.Story.Entries[0].Prompt != "Once." {
		t.Errorf("view carries %+v", view.Story.Entries)
	}
}

func TestGenesisBadProfileIs400(t *testing.T) {
	e := newTestServer(&fakeLoader{err: domain.NotStartedError{}}, &fakeCommitter{})

	req := httptest.NewRequest(http.MethodPost, "/api/story/nonsense/genesis",
		strings.NewReader(`{"title":"T","prompt":"P"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestGenesisNetworkMismatchIs409(t *testing.T) {
	committer := &fakeCommitter{err: domain.NetworkMismatchError{Active: 4201, Resident: 42}}
	e := newTestServer(&fakeLoader{err: domain.NotStartedError{}}, committer)

	req := httptest.NewRequest(http.MethodPost, "/api/story/"+testProfile+"/genesis",
		strings.NewReader(`{"chainId":4201,"title":"T","prompt":"P"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateOptionsEndpoint(t *testing.T) {
	e := newTestServer(&fakeLoader{}, &fakeCommitter{})

	req := httptest.NewRequest(http.MethodPost, "/api/story/generate-options",
		strings.NewReader(`{"history":["Once."]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body["options"]) != 3 {
		t.Errorf("got %d options", len(body["options"]))
	}
}

func TestUploadTokenEndpoint(t *testing.T) {
	e := newTestServer(&fakeLoader{}, &fakeCommitter{})

	req := httptest.NewRequest(http.MethodPost, "/api/story/generate-upload-token", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["jwt"] != "jwt-1" {
		t.Errorf("token %q", body["jwt"])
	}
}

func TestOpeningsEndpoint(t *testing.T) {
	e := newTestServer(&fakeLoader{}, &fakeCommitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/story/openings", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body["openings"]) == 0 {
		t.Error("no openings served")
	}
}
