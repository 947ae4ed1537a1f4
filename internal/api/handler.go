package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"triage/internal/constants"
	"triage/internal/intake"
	"triage/internal/logger"
	"triage/internal/pipeline"
	syncer "triage/internal/sync"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
)

type Processor interface {
	Process(ctx context.Context, msg triage.RawMessage) (pipeline.Result, error)
}

type Gate interface {
	Check(ctx context.Context, msg triage.RawMessage) (intake.Verdict, error)
}

type RecordReader interface {
	List(ctx context.Context, limit int) ([]triage.PersistedRecord, error)
	Get(ctx context.Context, id triage.RecordID) (triage.PersistedRecord, error)
}

type SyncRunner interface {
	Run(ctx context.Context, trigger string) (syncer.Report, error)
}

// MessageRequest is the body of POST /api/v1/messages.
type MessageRequest struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SkippedResponse is returned when an intake rule drops the message.
type SkippedResponse struct {
	Status string `json:"status"`
	Rule   string `json:"rule"`
}

type Handler struct {
	processor Processor
	gate      Gate
	records   RecordReader
	syncer    SyncRunner
	logger    logger.Logger
}

// NewHandler wires the message API. syncer may be nil when no source is configured.
func NewHandler(proc Processor, gate Gate, records RecordReader, runner SyncRunner, log logger.Logger) *Handler {
	return &Handler{
		processor: proc,
		gate:      gate,
		records:   records,
		syncer:    runner,
		logger:    log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		messages := v1.Group("/messages")
		{
			messages.POST("", h.ProcessMessage)
			messages.GET("", h.ListMessages)
			messages.POST("/sync", h.Sync)
			messages.GET("/:id", h.GetMessage)
		}
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var perr *pipeline.PersistError
	if errors.As(err, &perr) {
		h.logger.ErrorwCtx(ctx, "Message classified but not stored", "error", perr.Err)
		appErr := apperrors.ErrPersistence.
			WithCause(perr.Err).
			WithDetail("decision", perr.Context.Decision).
			WithDetail("ai_result", perr.Context.Classification)
		c.JSON(appErr.Status, apperrors.ToErrorResponse(appErr))
		return
	}

	h.logger.ErrorwCtx(ctx, "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
}

func (h *Handler) ProcessMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.ErrValidation.WithCause(err)))
		return
	}

	msg := triage.RawMessage{
		ID:      req.ID,
		Source:  req.Source,
		Sender:  req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
	}

	verdict, err := h.gate.Check(c.Request.Context(), msg)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !verdict.Accepted {
		c.JSON(http.StatusOK, SkippedResponse{Status: "skipped", Rule: verdict.Rule})
		return
	}

	res, err := h.processor.Process(c.Request.Context(), msg)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListMessages(c *gin.Context) {
	limit := constants.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.HandleError(c, apperrors.ErrValidation.WithDetail("message", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := h.records.List(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.HandleError(c, apperrors.ErrValidation.WithDetail("message", "id must be a positive integer"))
		return
	}

	rec, err := h.records.Get(c.Request.Context(), triage.RecordID(id))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Sync(c *gin.Context) {
	if h.syncer == nil {
		h.HandleError(c, apperrors.ErrServiceUnavailable.WithDetail("message", "no message source configured"))
		return
	}

	report, err := h.syncer.Run(c.Request.Context(), syncer.TriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
