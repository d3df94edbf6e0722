package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gateway is the online payment provider surface. Implementations talk to an
// external PSP; every call carries a bounded deadline so gateway latency never
// backs up into request handlers.
type Gateway interface {
	// Provider names the gateway; it becomes the callback path segment the
	// provider redirects back to.
	Provider() string
	// RequestAuthority opens a payment session and returns the provider's
	// authority code plus the URL the payer is redirected to.
	RequestAuthority(ctx context.Context, req AuthorityRequest) (*AuthorityResult, error)
	// Verify settles a completed session. A verification failure is a normal
	// outcome (the payer abandoned or the amount mismatched), not an error.
	Verify(ctx context.Context, authority string, amount int64) (*VerifyResult, error)
}

type AuthorityRequest struct {
	Amount      int64
	Description string
	CallbackURL string
}

type AuthorityResult struct {
	Authority string
	PayURL    string
}

type VerifyResult struct {
	OK    bool
	RefID string
}

// HTTPGateway implements Gateway against a JSON-over-HTTP provider.
type HTTPGateway struct {
	provider string
	baseURL  string
	client   *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(provider, baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		provider: provider,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Provider() string { return g.provider }

type gatewayRequestBody struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
}

type gatewayRequestResponse struct {
	Authority string `json:"authority"`
	PayURL    string `json:"pay_url"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

func (g *HTTPGateway) RequestAuthority(ctx context.Context, req AuthorityRequest) (*AuthorityResult, error) {
	var resp gatewayRequestResponse
	err := g.post(ctx, "/v1/payment/request", gatewayRequestBody{
		Amount:      req.Amount,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("gateway.RequestAuthority: %w", err)
	}
	if resp.Authority == "" {
		return nil, fmt.Errorf("gateway.RequestAuthority: provider refused: code=%d %s", resp.Code, resp.Message)
	}

	return &AuthorityResult{Authority: resp.Authority, PayURL: resp.PayURL}, nil
}

type gatewayVerifyBody struct {
	Authority string `json:"authority"`
	Amount    int64  `json:"amount"`
}

type gatewayVerifyResponse struct {
	OK    bool   `json:"ok"`
	RefID string `json:"ref_id"`
}

func (g *HTTPGateway) Verify(ctx context.Context, authority string, amount int64) (*VerifyResult, error) {
	var resp gatewayVerifyResponse
	err := g.post(ctx, "/v1/payment/verify", gatewayVerifyBody{Authority: authority, Amount: amount}, &resp)
	if err != nil {
		return nil, fmt.Errorf("gateway.Verify: %w", err)
	}

	return &VerifyResult{OK: resp.OK, RefID: resp.RefID}, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}
