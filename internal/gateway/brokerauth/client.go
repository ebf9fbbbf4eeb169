// Package brokerauth is the HTTP client for the external broker-auth
// service, which manages broker sessions and proxies order operations to
// the venue.
package brokerauth

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

// Client wraps the broker-auth service's REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ gateway.BrokerAuthClient = (*Client)(nil)

func NewClient(rawURL string, timeout time.Duration) (*Client, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("broker-auth url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing broker-auth url failed: %w", err)
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

func (c *Client) GetConnection(ctx context.Context, broker string) (gateway.BrokerConn, error) {
	body, err := c.do(ctx, http.MethodPost, "/brokers/"+url.PathEscape(broker)+"/sessions", nil)
	if err != nil {
		return nil, err
	}
	token := gjson.GetBytes(body, "token").String()
	if token == "" {
		return nil, fmt.Errorf("broker-auth returned no session token for %s", broker)
	}
	return &conn{client: c, broker: broker, token: token}, nil
}

func (c *Client) ValidateToken(ctx context.Context, broker string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/brokers/"+url.PathEscape(broker)+"/sessions/validate", nil)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(body, "valid").Bool(), nil
}

func (c *Client) RefreshToken(ctx context.Context, broker string) error {
	_, err := c.do(ctx, http.MethodPost, "/brokers/"+url.PathEscape(broker)+"/sessions/refresh", nil)
	return err
}

// conn is one authenticated broker session.
type conn struct {
	client *Client
	broker string
	token  string
}

var _ gateway.BrokerConn = (*conn)(nil)

func (s *conn) Broker() string { return s.broker }

func (s *conn) SubmitOrder(ctx context.Context, order *domain.Order) (gateway.BrokerAck, error) {
	payload := map[string]any{
		"client_order_id": order.ID,
		"symbol":          order.Symbol,
		"exchange":        order.Exchange,
		"side":            order.Side,
		"order_type":      order.Type,
		"quantity":        order.Quantity,
		"limit_price":     order.LimitPrice.String(),
		"stop_price":      order.StopPrice.String(),
		"time_in_force":   order.TimeInForce,
	}
	body, err := s.do(ctx, http.MethodPost, "/brokers/"+url.PathEscape(s.broker)+"/orders", payload)
	if err != nil {
		return gateway.BrokerAck{}, err
	}
	parsed := gjson.ParseBytes(body)
	ack := gateway.BrokerAck{
		BrokerOrderID:  parsed.Get("broker_order_id").String(),
		Status:         domain.OrderStatus(parsed.Get("status").String()),
		FilledQuantity: parsed.Get("filled_quantity").Int(),
		Fills:          parseFills(parsed.Get("fills")),
		Commission:     decimalField(parsed, "commission"),
		Rejected:       parsed.Get("rejected").Bool(),
		RejectReason:   parsed.Get("reject_reason").String(),
	}
	return ack, nil
}

func (s *conn) GetOrderStatus(ctx context.Context, brokerOrderID string) (gateway.BrokerOrderState, error) {
	path := "/brokers/" + url.PathEscape(s.broker) + "/orders/" + url.PathEscape(brokerOrderID)
	body, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return gateway.BrokerOrderState{}, err
	}
	parsed := gjson.ParseBytes(body)
	return gateway.BrokerOrderState{
		Status:         domain.OrderStatus(parsed.Get("status").String()),
		FilledQuantity: parsed.Get("filled_quantity").Int(),
		Fills:          parseFills(parsed.Get("fills")),
		Commission:     decimalField(parsed, "commission"),
	}, nil
}

func (s *conn) CancelOrder(ctx context.Context, brokerOrderID string) (gateway.BrokerCancelAck, error) {
	path := "/brokers/" + url.PathEscape(s.broker) + "/orders/" + url.PathEscape(brokerOrderID)
	body, err := s.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return gateway.BrokerCancelAck{}, err
	}
	parsed := gjson.ParseBytes(body)
	return gateway.BrokerCancelAck{
		Cancelled:      parsed.Get("cancelled").Bool(),
		Reason:         parsed.Get("reason").String(),
		FilledQuantity: parsed.Get("filled_quantity").Int(),
	}, nil
}

func (s *conn) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return s.client.doAuthed(ctx, method, path, payload, s.token)
}

func parseFills(field gjson.Result) []domain.FillDetail {
	if !field.IsArray() {
		return nil
	}
	var fills []domain.FillDetail
	field.ForEach(func(_, fill gjson.Result) bool {
		price, err := decimal.NewFromString(fill.Get("price").String())
		if err != nil {
			return true
		}
		ts, _ := time.Parse(time.RFC3339, fill.Get("timestamp").String())
		fills = append(fills, domain.FillDetail{
			Price:     price,
			Quantity:  fill.Get("quantity").Int(),
			Timestamp: ts,
			Venue:     fill.Get("venue").String(),
		})
		return true
	})
	return fills
}

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

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return c.doAuthed(ctx, method, path, payload, "")
}

func (c *Client) doAuthed(ctx context.Context, method, path string, payload any, token string) ([]byte, error) {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("broker-auth %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
