package rest

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yearone-io/story-adventure/internal/infrastructure/generator"
	"github.com/yearone-io/story-adventure/internal/present/rest/presenter"
	"github.com/yearone-io/story-adventure/internal/usecase"
)

type Handler struct {
	story          *usecase.StoryUsecase
	generation     usecase.Generator
	uploadTokens   UploadTokenIssuer
	defaultChainID uint64
}

// UploadTokenIssuer hands out short-lived content-store credentials.
type UploadTokenIssuer interface {
	UploadToken(ctx context.Context) (string, error)
}

func NewHandler(story *usecase.StoryUsecase, generation usecase.Generator, tokens UploadTokenIssuer, defaultChainID uint64) *Handler {
	return &Handler{
		story:          story,
		generation:     generation,
		uploadTokens:   tokens,
		defaultChainID: defaultChainID,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/story/openings", h.handleOpenings)
	e.POST("/api/story/generate-options", h.handleGenerateOptions)
	e.POST("/api/story/generate-image", h.handleGenerateImage)
	e.POST("/api/story/generate-upload-token", h.handleUploadToken)
	e.GET("/api/story/:profile/history", h.handleHistory)
	e.GET("/api/story/:profile/options", h.handleOptions)
	e.POST("/api/story/:profile/genesis", h.handleGenesis)
	e.POST("/api/story/:profile/append", h.handleAppend)
	e.POST("/api/story/:profile/register", h.handleRegister)
}

type generateRequest struct {
	History []string `json:"history"`
}

type genesisRequest struct {
	ChainID uint64 `json:"chainId"`
	Title   string `json:"title"`
	Prompt  string `json:"prompt"`
}

type appendRequest struct {
	ChainID uint64 `json:"chainId"`
	Author  string `json:"author"`
	Prompt  string `json:"prompt"`
}

type registerRequest struct {
	ChainID    uint64 `json:"chainId"`
	Collection string `json:"collection"`
}

func (h *Handler) handleOpenings(c echo.Context) error {
	return presenter.OK(c, echo.Map{"openings": generator.Openings()})
}

func (h *Handler) handleGenerateOptions(c echo.Context) error {
	ctx := c.Request().Context()

	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	options := h.generation.GenerateOptions(ctx, req.History)
	return presenter.OK(c, echo.Map{"options": options})
}

func (h *Handler) handleGenerateImage(c echo.Context) error {
	ctx := c.Request().Context()

	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	image := h.generation.GenerateImage(ctx, req.History)
	return c.Blob(http.StatusOK, "image/png", image)
}

func (h *Handler) handleUploadToken(c echo.Context) error {
	token, err := h.uploadTokens.UploadToken(c.Request().Context())
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"jwt": token})
}

func (h *Handler) handleHistory(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.story.LoadHistory(ctx, c.Param("profile"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, view)
}

func (h *Handler) handleOptions(c echo.Context) error {
	ctx := c.Request().Context()

	options, err := h.story.NextOptions(ctx, c.Param("profile"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"options": options})
}

func (h *Handler) handleGenesis(c echo.Context) error {
	ctx := c.Request().Context()

	var req genesisRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	receipt, err := h.story.StartStory(ctx, h.chainID(req.ChainID), c.Param("profile"), req.Title, req.Prompt)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, receipt)
}

func (h *Handler) handleAppend(c echo.Context) error {
	ctx := c.Request().Context()

	var req appendRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	receipt, err := h.story.ExtendStory(ctx, h.chainID(req.ChainID), c.Param("profile"), req.Author, req.Prompt)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, receipt)
}

func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.story.Register(ctx, h.chainID(req.ChainID), c.Param("profile"), req.Collection); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) chainID(requested uint64) uint64 {
	if requested == 0 {
		return h.defaultChainID
	}
	return requested
}
