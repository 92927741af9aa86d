package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/trendmart/payments/internal/adminauth"
	"github.com/trendmart/payments/internal/postsale/application"
	postsaledomain "github.com/trendmart/payments/internal/postsale/domain"
	"github.com/trendmart/payments/pkg/validation"
)

type Handler struct {
	log      *slog.Logger
	svc      *application.Service
	tracer   trace.Tracer
	validate *validatorv10.Validate
}

func NewHandler(log *slog.Logger, svc *application.Service) *Handler {
	return &Handler{
		log:      log,
		svc:      svc,
		tracer:   otel.Tracer("postsale-http"),
		validate: validation.New(),
	}
}

// Routes is the customer surface: opening a cancellation or return.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/{orderNumber}/cancellations", h.create(postsaledomain.KindCancellation))
	r.Post("/{orderNumber}/returns", h.create(postsaledomain.KindReturn))
	return r
}

// AdminRoutes is the operator queue: list pending requests and decide them.
func (h *Handler) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/requests", h.listPending)
	r.Get("/requests/{requestID}", h.get)
	r.Post("/requests/{requestID}/resolve", h.resolve)
	return r
}

type createReq struct {
	Reason string `json:"reason" validate:"required"`
	Note   string `json:"note" validate:"max=2000"`
}

type requestResp struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	OrderNumber   string     `json:"order_number"`
	Reason        string     `json:"reason"`
	Note          string     `json:"note,omitempty"`
	Status        string     `json:"status"`
	AdminNote     string     `json:"admin_note,omitempty"`
	RefundPending bool       `json:"refund_pending,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toResp(req postsaledomain.Request) requestResp {
	return requestResp{
		ID:            req.ID,
		Kind:          string(req.Kind),
		OrderNumber:   req.OrderNumber,
		Reason:        req.Reason,
		Note:          req.Note,
		Status:        string(req.Status),
		AdminNote:     req.AdminNote,
		RefundPending: req.RefundPending,
		CreatedAt:     req.CreatedAt,
		ResolvedAt:    req.ResolvedAt,
	}
}

func (h *Handler) create(kind postsaledomain.RequestKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "CreatePostSaleRequest")
		defer span.End()

		var req createReq
		if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
			return
		}

		created, err := h.svc.Create(ctx, kind, chi.URLParam(r, "orderNumber"), req.Reason, req.Note)
		switch {
		case errors.Is(err, postsaledomain.ErrIneligibleOrder):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, postsaledomain.ErrOpenRequestExists):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, postsaledomain.ErrUnknownReason):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		default:
			writeJSON(w, http.StatusCreated, toResp(created))
		}
	}
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.ListPending(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	out := make([]requestResp, 0, len(requests))
	for _, req := range requests {
		out = append(out, toResp(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), chi.URLParam(r, "requestID"))
	if errors.Is(err, postsaledomain.ErrRequestNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown request"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toResp(req))
}

type resolveReq struct {
	Decision  string `json:"decision" validate:"required,oneof=approve reject"`
	AdminNote string `json:"admin_note" validate:"max=2000"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ResolvePostSaleRequest")
	defer span.End()

	var req resolveReq
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}

	res, err := h.svc.Resolve(ctx, chi.URLParam(r, "requestID"),
		postsaledomain.Decision(req.Decision), req.AdminNote, adminauth.Actor(r))
	switch {
	case errors.Is(err, postsaledomain.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown request"})
	case errors.Is(err, postsaledomain.ErrIneligibleOrder):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is no longer eligible, reject the request instead"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		body := toResp(res.Request)
		writeJSON(w, http.StatusOK, map[string]any{
			"request":          body,
			"already_resolved": res.AlreadyResolved,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
