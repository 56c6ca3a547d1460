package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// Handler wires the HTTP transport to the FAQ service.
type Handler struct {
	faqSvc faq.Service
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(faqSvc faq.Service, logger *slog.Logger) *Handler {
	return &Handler{
		faqSvc: faqSvc,
		logger: logger.With("component", "http.handler"),
	}
}

type bulkRequest struct {
	FAQs []faq.EntryInput `json:"faqs" binding:"required"`
}

// Chat answers one user message.
func (h *Handler) Chat(c *gin.Context) {
	var req faq.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	resp, err := h.faqSvc.Ask(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainError(err, "chat_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Suggestions returns entries related to a partial query.
func (h *Handler) Suggestions(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("n"))
	items, err := h.faqSvc.Suggest(c.Request.Context(), c.Query("q"), n)
	if err != nil {
		abortWithError(c, domainError(err, "suggest_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": items})
}

// TrendingFAQ returns the most common questions.
func (h *Handler) TrendingFAQ(c *gin.Context) {
	items, err := h.faqSvc.Trending(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": items})
}

// ListEntries pages through the knowledge base.
func (h *Handler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	result, err := h.faqSvc.ListEntries(c.Request.Context(), faq.EntryFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetEntry returns a single entry.
func (h *Handler) GetEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := h.faqSvc.GetEntry(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CreateEntry adds an entry and reindexes.
func (h *Handler) CreateEntry(c *gin.Context) {
	var in faq.EntryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := h.faqSvc.CreateEntry(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateEntry replaces the fields of an entry.
func (h *Handler) UpdateEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in faq.EntryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := h.faqSvc.UpdateEntry(c.Request.Context(), id, in)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteEntry removes an entry.
func (h *Handler) DeleteEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.faqSvc.DeleteEntry(c.Request.Context(), id); err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// BulkCreate imports many entries at once.
func (h *Handler) BulkCreate(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	result, err := h.faqSvc.ImportEntries(c.Request.Context(), req.FAQs)
	if err != nil {
		abortWithError(c, domainError(err, "import_failed"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reindex forces a full rebuild of the index.
func (h *Handler) Reindex(c *gin.Context) {
	stats, err := h.faqSvc.Reindex(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err, "reindex_failed"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSettings returns the live thresholds.
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.faqSvc.Thresholds())
}

// UpdateSettings patches the live thresholds.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch faq.ThresholdsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	th, err := h.faqSvc.UpdateThresholds(c.Request.Context(), patch)
	if err != nil {
		abortWithError(c, domainError(err, "settings_failed"))
		return
	}
	c.JSON(http.StatusOK, th)
}

// UnknownQuestions lists questions awaiting an answer.
func (h *Handler) UnknownQuestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.faqSvc.UnknownQuestions(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": items})
}

// AnswerUnknown promotes an unknown question into the knowledge base.
func (h *Handler) AnswerUnknown(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req faq.AnswerUnknownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := h.faqSvc.AnswerUnknown(c.Request.Context(), id, req)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Stats reports counters for the admin dashboard.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.faqSvc.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health reports liveness together with the index size.
func (h *Handler) Health(c *gin.Context) {
	stats, err := h.faqSvc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": stats.Entries})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "id must be a positive integer", err))
		return 0, false
	}
	return id, true
}
