package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/trendmart/payments/internal/order/domain"
	"github.com/trendmart/payments/internal/payment/application"
	"github.com/trendmart/payments/internal/payment/domain"
	"github.com/trendmart/payments/internal/payment/gateway"
	"github.com/trendmart/payments/pkg/validation"
)

type Handler struct {
	log            *slog.Logger
	quoter         *application.Quoter
	initiator      *application.Initiator
	reconciler     *application.Reconciler
	tracer         trace.Tracer
	validate       *validatorv10.Validate
	callbackSecret string
	successURL     string
	failureURL     string
}

func NewHandler(log *slog.Logger, quoter *application.Quoter, initiator *application.Initiator, reconciler *application.Reconciler, callbackSecret, successURL, failureURL string) *Handler {
	return &Handler{
		log:            log,
		quoter:         quoter,
		initiator:      initiator,
		reconciler:     reconciler,
		tracer:         otel.Tracer("payment-http"),
		validate:       validation.New(),
		callbackSecret: callbackSecret,
		successURL:     successURL,
		failureURL:     failureURL,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/payments/installments", h.quoteInstallments)
	r.Post("/payments", h.initiate)
	r.Get("/payments/3ds/return", h.handleReturn)
	r.Post("/payments/callback", h.handleCallback)
	return r
}

// AdminRoutes exposes the operator surface: pending-review visibility and
// the manual re-check.
func (h *Handler) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/review", h.listPendingReview)
	r.Post("/{gatewayAttemptID}/refresh", h.refresh)
	return r
}

type quoteReq struct {
	BIN    string `json:"bin" validate:"required"`
	Amount string `json:"amount" validate:"required"`
}

type planResp struct {
	Installments   int    `json:"installments"`
	PerInstallment string `json:"per_installment"`
	Total          string `json:"total"`
	Bank           string `json:"bank,omitempty"`
	CardFamily     string `json:"card_family,omitempty"`
}

func (h *Handler) quoteInstallments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "QuoteInstallments")
	defer span.End()

	var req quoteReq
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed amount"})
		return
	}

	plans, err := h.quoter.Quote(ctx, req.BIN, amount)
	if err != nil {
		h.writeQuoteError(w, err)
		return
	}

	out := make([]planResp, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResp{
			Installments:   p.Count,
			PerInstallment: domain.DecimalFromCents(p.PerInstallmentCents).StringFixed(2),
			Total:          domain.DecimalFromCents(p.TotalCents).StringFixed(2),
			Bank:           p.BankName,
			CardFamily:     p.CardFamily,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (h *Handler) writeQuoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidBIN), errors.Is(err, domain.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "payment service is temporarily unavailable, please retry"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

type lineItemReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type cardReq struct {
	HolderName  string `json:"holder_name" validate:"required"`
	Number      string `json:"number" validate:"required"`
	ExpireMonth string `json:"expire_month" validate:"required,len=2"`
	ExpireYear  string `json:"expire_year" validate:"required,len=4"`
	CVC         string `json:"cvc" validate:"required,min=3,max=4"`
}

type initiateReq struct {
	OrderNumber   string        `json:"order_number"`
	CustomerName  string        `json:"customer_name" validate:"required"`
	CustomerEmail string        `json:"customer_email" validate:"required,email"`
	Items         []lineItemReq `json:"items" validate:"omitempty,dive"`
	Discount      string        `json:"discount"`
	Shipping      string        `json:"shipping"`
	Tax           string        `json:"tax"`
	Currency      string        `json:"currency" validate:"required,len=3"`
	Installments  int           `json:"installments" validate:"omitempty,gte=1,lte=12"`
	Card          cardReq       `json:"card" validate:"required"`
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	var req initiateReq
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}
	if req.OrderNumber == "" && len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items required for a new order"})
		return
	}

	draft, err := h.buildDraft(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := h.initiator.Initiate(ctx, draft, domain.CardDetails{
		HolderName:  req.Card.HolderName,
		Number:      req.Card.Number,
		ExpireMonth: req.Card.ExpireMonth,
		ExpireYear:  req.Card.ExpireYear,
		CVC:         req.Card.CVC,
	}, req.Installments)
	if err != nil {
		h.writeInitiateError(w, res, err)
		return
	}

	if res.RequiresAuthentication {
		// The gateway's authentication form goes to the browser verbatim:
		// it auto-submits the cardholder to the issuing bank.
		w.Header().Set("Content-Type", res.Form.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Form.Body)
		return
	}

	writeJSON(w, http.StatusOK, finalOutcomeBody(*res.Final))
}

func (h *Handler) buildDraft(req initiateReq) (application.Draft, error) {
	discount, err := centsField(req.Discount)
	if err != nil {
		return application.Draft{}, err
	}
	shipping, err := centsField(req.Shipping)
	if err != nil {
		return application.Draft{}, err
	}
	tax, err := centsField(req.Tax)
	if err != nil {
		return application.Draft{}, err
	}

	items := make([]orderdomain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return application.Draft{}, domain.ErrInvalidAmount
		}
		cents, err := domain.CentsFromDecimal(price)
		if err != nil {
			return application.Draft{}, err
		}
		items = append(items, orderdomain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: cents})
	}

	return application.Draft{
		OrderNumber:   req.OrderNumber,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
		DiscountCents: discount,
		ShippingCents: shipping,
		TaxCents:      tax,
		Currency:      req.Currency,
	}, nil
}

func (h *Handler) writeInitiateError(w http.ResponseWriter, res domain.AuthorizationResult, err error) {
	switch {
	case errors.Is(err, domain.ErrGatewayUnavailable):
		// an attempt may have reached the gateway; the caller retries with a
		// fresh attempt against the pending order named in the body
		body := map[string]string{
			"error": "payment could not be submitted, please try again",
		}
		if res.OrderNumber != "" {
			body["order_number"] = res.OrderNumber
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
	case errors.Is(err, domain.ErrInvalidBIN), errors.Is(err, domain.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

// handleReturn receives the cardholder back from the issuing bank. If the
// server-to-server callback already settled the attempt, this only reads the
// recorded outcome.
func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AuthenticationReturn")
	defer span.End()

	id := r.URL.Query().Get("attempt")
	if id == "" {
		h.redirectFailure(w, r, "")
		return
	}

	out, err := h.reconciler.Outcome(ctx, id)
	if err != nil {
		h.log.Warn("return for unknown attempt", "err", err)
		h.redirectFailure(w, r, "")
		return
	}
	if out.Status == domain.AttemptExpired {
		h.log.Warn("return for expired attempt", "gateway_attempt_id", id)
		h.redirectFailure(w, r, "")
		return
	}

	if out.Status.NonTerminal() {
		out, err = h.reconciler.Refresh(ctx, id)
		if err != nil {
			h.log.Error("finalize on return failed", "gateway_attempt_id", id, "err", err)
			h.redirectFailure(w, r, "")
			return
		}
	}

	switch out.Status {
	case domain.AttemptSettledSuccess:
		target := h.successURL + "?order=" + url.QueryEscape(out.OrderNumber)
		http.Redirect(w, r, target, http.StatusSeeOther)
	case domain.AttemptPendingReview:
		h.redirectFailure(w, r, "payment is under review")
	default:
		h.redirectFailure(w, r, out.Reason)
	}
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.failureURL
	if reason != "" {
		target += "?reason=" + url.QueryEscape(reason)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type callbackReq struct {
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
	ResultCode     string `json:"resultCode"`
}

// handleCallback is the gateway's server-to-server completion signal. It may
// race the browser return for the same attempt; Finalize resolves the race.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GatewayCallback")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if !gateway.VerifySignature(h.callbackSecret, body, r.Header.Get("X-Gateway-Signature")) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad signature"})
		return
	}

	var req callbackReq
	if err := json.Unmarshal(body, &req); err != nil || req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed callback"})
		return
	}

	out, err := h.reconciler.Finalize(ctx, req.ConversationID, gateway.TranslateOutcome(req.Status, req.ResultCode))
	switch {
	case errors.Is(err, domain.ErrAttemptExpired):
		// acknowledged so the gateway stops retrying; the warning is logged
		// by the reconciler
		writeJSON(w, http.StatusOK, map[string]string{"result": "expired"})
	case errors.Is(err, domain.ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown attempt"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "finalize failed"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"result": string(out.Status)})
	}
}

func (h *Handler) listPendingReview(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.reconciler.PendingReview(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	type reviewResp struct {
		GatewayAttemptID string `json:"gateway_attempt_id"`
		OrderNumber      string `json:"order_number"`
		Amount           string `json:"amount"`
		Currency         string `json:"currency"`
		ResultCode       string `json:"result_code"`
	}
	out := make([]reviewResp, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, reviewResp{
			GatewayAttemptID: a.GatewayAttemptID,
			OrderNumber:      a.OrderNumber,
			Amount:           domain.DecimalFromCents(a.AmountCents).StringFixed(2),
			Currency:         a.Currency,
			ResultCode:       a.ResultCode,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ManualRefresh")
	defer span.End()

	id := chi.URLParam(r, "gatewayAttemptID")
	out, err := h.reconciler.Refresh(ctx, id)
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown attempt"})
	case errors.Is(err, domain.ErrAttemptExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "attempt expired"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway unavailable"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, finalOutcomeBody(out))
	}
}

func finalOutcomeBody(out domain.FinalOutcome) map[string]any {
	body := map[string]any{
		"order_number": out.OrderNumber,
		"status":       string(out.Status),
	}
	if out.Reason != "" {
		body["reason"] = out.Reason
	}
	return body
}

func centsField(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domain.ErrInvalidAmount
	}
	return domain.NonNegativeCentsFromDecimal(d)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
