// Package portfolio is the HTTP client for the external portfolio service.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
)

// Client wraps the portfolio service's REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ gateway.PortfolioClient = (*Client)(nil)

func NewClient(rawURL string, timeout time.Duration) (*Client, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("portfolio url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing portfolio url failed: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) GetPositionRisk(ctx context.Context, accountID, symbol string) (gateway.PositionRisk, error) {
	path := fmt.Sprintf("/accounts/%s/positions/%s/risk", url.PathEscape(accountID), url.PathEscape(symbol))
	body, err := c.get(ctx, path)
	if err != nil {
		return gateway.PositionRisk{}, err
	}
	parsed := gjson.ParseBytes(body)
	return gateway.PositionRisk{
		Symbol:          symbol,
		CurrentQuantity: parsed.Get("current_quantity").Int(),
		PositionLimit:   parsed.Get("position_limit").Int(),
		ExposureValue:   decimalField(parsed, "exposure_value"),
		PortfolioValue:  decimalField(parsed, "portfolio_value"),
	}, nil
}

func (c *Client) CalculateImpact(ctx context.Context, accountID string, req *domain.OrderRequest) (gateway.ImpactAssessment, error) {
	path := fmt.Sprintf("/accounts/%s/impact", url.PathEscape(accountID))
	payload := map[string]any{}
	if req != nil {
		payload = map[string]any{
			"symbol":      req.Symbol,
			"exchange":    req.Exchange,
			"side":        req.Side,
			"order_type":  req.Type,
			"quantity":    req.Quantity,
			"limit_price": req.LimitPrice.String(),
		}
	}
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return gateway.ImpactAssessment{}, err
	}
	parsed := gjson.ParseBytes(body)
	return gateway.ImpactAssessment{
		RequiredFunds:             decimalField(parsed, "required_funds"),
		AvailableFunds:            decimalField(parsed, "available_funds"),
		MarkPrice:                 decimalField(parsed, "mark_price"),
		ProjectedMarginUsagePct:   parsed.Get("projected_margin_usage_pct").Float(),
		ProjectedConcentrationPct: parsed.Get("projected_concentration_pct").Float(),
	}, nil
}

// decimalField parses a numeric-or-string JSON field exactly; portfolio
// responses carry money as strings to avoid float drift.
func decimalField(parsed gjson.Result, key string) decimal.Decimal {
	field := parsed.Get(key)
	if !field.Exists() {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(field.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	target := c.baseURL.JoinPath(path)
	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyReader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portfolio %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
