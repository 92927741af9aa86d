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
	"github.com/trendmart/payments/internal/order/application"
	"github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/pkg/validation"
)

type Handler struct {
	log      *slog.Logger
	svc      *application.Service
	orders   application.OrderRepository
	tracer   trace.Tracer
	validate *validatorv10.Validate
}

func NewHandler(log *slog.Logger, svc *application.Service, orders application.OrderRepository) *Handler {
	return &Handler{
		log:      log,
		svc:      svc,
		orders:   orders,
		tracer:   otel.Tracer("order-http"),
		validate: validation.New(),
	}
}

// AdminRoutes is the fulfillment surface: staff look orders up and move them
// along the shipping axis.
func (h *Handler) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{orderNumber}", h.get)
	r.Post("/{orderNumber}/transition", h.transition)
	return r
}

type orderResp struct {
	Number        string     `json:"number"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	TotalCents    int64      `json:"total_cents"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ShippedAt     *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, orderResp{
		Number:        o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		TotalCents:    o.TotalCents,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt,
		PaidAt:        o.PaidAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
	})
}

type transitionReq struct {
	Target string `json:"target" validate:"required"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TransitionOrder")
	defer span.End()

	var req transitionReq
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}

	err := h.svc.Transition(ctx, chi.URLParam(r, "orderNumber"), domain.Status(req.Target), adminauth.Actor(r))
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": req.Target})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
