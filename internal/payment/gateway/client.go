// Package gateway is the single boundary to the card gateway. Raw wire
// shapes stay inside this package; callers see the closed outcome union from
// the payment domain.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trendmart/payments/internal/payment/domain"
)

type Client struct {
	log         *slog.Logger
	httpc       *http.Client
	baseURL     string
	apiKey      string
	callbackURL string
}

func NewClient(log *slog.Logger, baseURL, apiKey, callbackURL string) *Client {
	return &Client{
		log:         log,
		httpc:       &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		apiKey:      apiKey,
		callbackURL: callbackURL,
	}
}

type installmentPriceWire struct {
	InstallmentNumber int    `json:"installmentNumber"`
	InstallmentPrice  string `json:"installmentPrice"`
	TotalPrice        string `json:"totalPrice"`
}

type installmentDetailWire struct {
	BankName          string                 `json:"bankName"`
	CardFamilyName    string                 `json:"cardFamilyName"`
	InstallmentPrices []installmentPriceWire `json:"installmentPrices"`
}

type quoteWire struct {
	Status             string                  `json:"status"`
	ErrorCode          string                  `json:"errorCode"`
	ErrorMessage       string                  `json:"errorMessage"`
	InstallmentDetails []installmentDetailWire `json:"installmentDetails"`
}

// Quote asks the gateway for installment plans available to a BIN. An
// unrecognized BIN is reported as domain.ErrBINNotRecognized so the caller
// can degrade gracefully.
func (c *Client) Quote(ctx context.Context, bin string, amount decimal.Decimal) ([]domain.InstallmentPlan, error) {
	var resp quoteWire
	err := c.post(ctx, "/v1/installments", map[string]string{
		"binNumber": bin,
		"price":     amount.StringFixed(2),
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != "success" {
		if resp.ErrorCode == "BIN_NOT_FOUND" {
			return nil, domain.ErrBINNotRecognized
		}
		return nil, fmt.Errorf("%w: installment lookup %s", domain.ErrGatewayUnavailable, resp.ErrorCode)
	}

	var plans []domain.InstallmentPlan
	for _, detail := range resp.InstallmentDetails {
		for _, p := range detail.InstallmentPrices {
			per, err := centsFromWire(p.InstallmentPrice)
			if err != nil {
				return nil, err
			}
			total, err := centsFromWire(p.TotalPrice)
			if err != nil {
				return nil, err
			}
			plans = append(plans, domain.InstallmentPlan{
				Count:               p.InstallmentNumber,
				PerInstallmentCents: per,
				TotalCents:          total,
				BankName:            detail.BankName,
				CardFamily:          detail.CardFamilyName,
			})
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Count < plans[j].Count })
	return plans, nil
}

type authorizeWire struct {
	Status       string `json:"status"`
	ResultCode   string `json:"resultCode"`
	ErrorMessage string `json:"errorMessage"`
	HTMLContent  string `json:"htmlContent"`
}

// Authorize submits the payment. The htmlContent the gateway returns for
// strong authentication is carried verbatim as an opaque form.
func (c *Client) Authorize(ctx context.Context, req domain.AuthorizationRequest) (domain.GatewayAuthorization, error) {
	body := map[string]any{
		"conversationId": req.GatewayAttemptID,
		"price":          domain.DecimalFromCents(req.AmountCents).StringFixed(2),
		"currency":       req.Currency,
		"installment":    req.Installments,
		"callbackUrl":    c.callbackURL,
		"paymentCard": map[string]string{
			"cardHolderName": req.Card.HolderName,
			"cardNumber":     req.Card.Number,
			"expireMonth":    req.Card.ExpireMonth,
			"expireYear":     req.Card.ExpireYear,
			"cvc":            req.Card.CVC,
		},
		"buyer": map[string]string{
			"name":  req.Buyer.Name,
			"email": req.Buyer.Email,
		},
	}

	var resp authorizeWire
	if err := c.post(ctx, "/v1/authorizations", body, &resp); err != nil {
		return domain.GatewayAuthorization{}, err
	}

	if resp.Status == "awaiting_authentication" {
		if resp.HTMLContent == "" {
			return domain.GatewayAuthorization{}, fmt.Errorf("%w: authentication demanded without form", domain.ErrGatewayUnavailable)
		}
		return domain.GatewayAuthorization{
			RequiresAuthentication: true,
			Form: domain.OpaqueForm{
				ContentType: "text/html; charset=utf-8",
				Body:        []byte(resp.HTMLContent),
			},
		}, nil
	}

	return domain.GatewayAuthorization{Outcome: TranslateOutcome(resp.Status, resp.ResultCode)}, nil
}

// Result fetches the current outcome of an attempt, for manual re-checks.
func (c *Client) Result(ctx context.Context, gatewayAttemptID string) (domain.Outcome, error) {
	var resp authorizeWire
	if err := c.get(ctx, "/v1/authorizations/"+gatewayAttemptID, &resp); err != nil {
		return domain.Outcome{}, err
	}
	return TranslateOutcome(resp.Status, resp.ResultCode), nil
}

type refundWire struct {
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode"`
}

func (c *Client) Refund(ctx context.Context, gatewayAttemptID string, amountCents int64) error {
	var resp refundWire
	err := c.post(ctx, "/v1/refunds", map[string]string{
		"conversationId": gatewayAttemptID,
		"price":          domain.DecimalFromCents(amountCents).StringFixed(2),
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("%w: refund rejected (%s)", domain.ErrGatewayUnavailable, resp.ErrorCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}

func centsFromWire(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed amount %q", domain.ErrGatewayUnavailable, s)
	}
	return domain.CentsFromDecimal(d)
}
