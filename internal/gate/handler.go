package gate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mealwise/mealwise/internal/api"
	"github.com/mealwise/mealwise/internal/audit"
	"github.com/mealwise/mealwise/internal/auth"
	"github.com/mealwise/mealwise/internal/guardrail"
	"github.com/mealwise/mealwise/internal/imagegen"
	"github.com/mealwise/mealwise/internal/middleware"
)

const maxBodyBytes = 16 << 10

type auditLister interface {
	List(ctx context.Context, params audit.ListParams) ([]audit.Entry, int64, error)
}

// Handler exposes the gate over HTTP. Routes must be behind auth.Middleware.
type Handler struct {
	gate      *Gate
	validator *imagegen.RequestValidator
	audits    auditLister
}

// NewHandler creates a Handler. audits may be nil when no database is
// configured.
func NewHandler(gate *Gate, validator *imagegen.RequestValidator, audits auditLister) *Handler {
	return &Handler{gate: gate, validator: validator, audits: audits}
}

type generateResponse struct {
	*imagegen.Image
	ImageBase64 string                    `json:"image_base64"`
	Daily       guardrail.QuotaResult     `json:"daily"`
	RateLimit   guardrail.RateLimitResult `json:"rate_limit"`
}

type errorDetails struct {
	ResetAt   *time.Time                 `json:"reset_at,omitempty"`
	Daily     *guardrail.QuotaResult     `json:"daily,omitempty"`
	RateLimit *guardrail.RateLimitResult `json:"rate_limit,omitempty"`
}

// Generate handles POST /api/v1/admin/images/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req imagegen.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res, err := h.gate.Generate(r.Context(), claims.UserID, middleware.ClientIP(r), req)
	if err != nil {
		h.writeGateError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, generateResponse{
		Image:       res.Image,
		ImageBase64: base64.StdEncoding.EncodeToString(res.Image.Data),
		Daily:       res.Daily,
		RateLimit:   res.RateLimit,
	})
}

func (h *Handler) writeGateError(w http.ResponseWriter, err error) {
	var gerr *Error
	if !errors.As(err, &gerr) {
		api.HandleError(w, err)
		return
	}

	status := http.StatusInternalServerError
	switch gerr.Outcome {
	case OutcomeConfigUnavailable:
		status = http.StatusServiceUnavailable
	case OutcomeQuotaExceeded:
		status = http.StatusTooManyRequests
	case OutcomeRateLimited:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(gerr.ResetAt, h.gate.now())))
	case OutcomeGenerationFailed:
		status = http.StatusBadGateway
	}

	details := errorDetails{Daily: gerr.Daily, RateLimit: gerr.Rate}
	if !gerr.ResetAt.IsZero() {
		details.ResetAt = &gerr.ResetAt
	}
	api.HandleError(w, api.NewCodedError(status, string(gerr.Outcome), gerr.Message, details))
}

// retryAfterSeconds rounds up and never returns less than 1.
func retryAfterSeconds(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	return max(1, secs)
}

// Status handles GET /api/v1/admin/images/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	api.JSON(w, http.StatusOK, h.gate.Status(r.Context(), claims.UserID, middleware.ClientIP(r)))
}

// ListAudit handles GET /api/v1/admin/images/audit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audits == nil {
		api.HandleError(w, api.NewCodedError(http.StatusNotFound, "AUDIT_NOT_PERSISTED",
			"audit records are not persisted on this deployment", nil))
		return
	}

	params := parseAuditParams(r)
	entries, total, err := h.audits.List(r.Context(), params)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, entries, total, params.Page, params.PageSize)
}

func parseAuditParams(r *http.Request) audit.ListParams {
	params := audit.DefaultListParams()
	q := r.URL.Query()

	params.UserID = q.Get("user_id")
	params.Outcome = q.Get("outcome")
	params.Severity = q.Get("severity")
	if p := q.Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := q.Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.To = &t
		}
	}
	return params
}
