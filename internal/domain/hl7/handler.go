package hl7

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/matt-standley/openmrs-core/internal/platform/hl7v2"
	"github.com/matt-standley/openmrs-core/pkg/pagination"
)

// Handler exposes the queue over HTTP: enqueue, trigger a processing pass,
// and inspect error records.
type Handler struct {
	repo      Repository
	processor *Processor
}

func NewHandler(repo Repository, processor *Processor) *Handler {
	return &Handler{repo: repo, processor: processor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/hl7/queue", h.Enqueue)
	api.POST("/hl7/queue/process", h.ProcessQueue)
	api.GET("/hl7/archive", h.ListArchives)
	api.GET("/hl7/errors", h.ListErrors)
	api.POST("/hl7/parse", h.ParseMessage)
}

type enqueueRequest struct {
	Source    string `json:"source"`
	SourceKey string `json:"source_key"`
	Data      string `json:"data"`
}

// Enqueue stores one raw message for later processing.
func (h *Handler) Enqueue(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Data == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "data is required")
	}

	entry := &InQueue{Source: req.Source, SourceKey: req.SourceKey, Data: req.Data}
	if err := h.repo.CreateEntry(c.Request().Context(), entry); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}

// ProcessQueue drains the queue synchronously and reports how many entries
// were processed.
func (h *Handler) ProcessQueue(c echo.Context) error {
	n, err := h.processor.ProcessQueue(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"processed": n})
}

func (h *Handler) ListArchives(c echo.Context) error {
	pg := pagination.FromContext(c)
	archives, total, err := h.repo.ListArchives(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(archives, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListErrors(c echo.Context) error {
	pg := pagination.FromContext(c)
	errs, total, err := h.repo.ListErrors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(errs, total, pg.Limit, pg.Offset))
}

type parseRequest struct {
	Data string `json:"data"`
}

type parsedSegment struct {
	Code   string   `json:"code"`
	Fields []string `json:"fields"`
}

type parseResponse struct {
	Version   string          `json:"version"`
	Type      string          `json:"type"`
	ControlID string          `json:"control_id"`
	Segments  []parsedSegment `json:"segments"`
}

// ParseMessage parses a raw message without queueing it; a diagnostic aid
// for interface partners.
func (h *Handler) ParseMessage(c echo.Context) error {
	var req parseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := hl7v2.Parse([]byte(req.Data))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	resp := parseResponse{
		Version:   msg.Version,
		Type:      msg.Type,
		ControlID: msg.ControlID,
	}
	for _, seg := range msg.Segments() {
		resp.Segments = append(resp.Segments, parsedSegment{Code: seg.Code, Fields: seg.Fields()})
	}
	return c.JSON(http.StatusOK, resp)
}
