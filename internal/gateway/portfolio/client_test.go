package portfolio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"tradepipe/internal/domain"
)

func TestGetPositionRisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts/ACC-1/positions/RELIANCE/risk", r.URL.Path)
		w.Write([]byte(`{
			"current_quantity": 900,
			"position_limit": 1000,
			"exposure_value": "2250000.50",
			"portfolio_value": "10000000"
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	risk, err := c.GetPositionRisk(context.Background(), "ACC-1", "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", risk.Symbol)
	assert.Equal(t, int64(900), risk.CurrentQuantity)
	assert.Equal(t, int64(1000), risk.PositionLimit)
	assert.True(t, risk.ExposureValue.Equal(decimal.NewFromFloat(2250000.50)))
}

func TestCalculateImpact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/ACC-1/impact", r.URL.Path)
		w.Write([]byte(`{
			"required_funds": "250000",
			"available_funds": "1000000",
			"mark_price": "2500.05",
			"projected_margin_usage_pct": 42.5,
			"projected_concentration_pct": 12.0
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	impact, err := c.CalculateImpact(context.Background(), "ACC-1", &domain.OrderRequest{
		Symbol:     "RELIANCE",
		Exchange:   "NSE",
		Side:       domain.SideBuy,
		Type:       domain.TypeLimit,
		Quantity:   100,
		LimitPrice: decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	assert.True(t, impact.MarkPrice.Equal(decimal.NewFromFloat(2500.05)), "money fields must parse exactly, got %s", impact.MarkPrice)
	assert.True(t, impact.AvailableFunds.Equal(decimal.NewFromInt(1_000_000)))
	assert.InDelta(t, 42.5, impact.ProjectedMarginUsagePct, 1e-9)
}

func TestCalculateImpactNilRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		assert.False(t, gjson.GetBytes(body, "symbol").Exists(), "advisory reads carry no order payload")
		w.Write([]byte(`{"available_funds": "1000000", "projected_margin_usage_pct": 30}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	impact, err := c.CalculateImpact(context.Background(), "ACC-1", nil)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, impact.ProjectedMarginUsagePct, 1e-9)
}

func TestNon200IsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "account unknown", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.GetPositionRisk(context.Background(), "ACC-404", "RELIANCE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	_, err := NewClient("  ", time.Second)
	assert.Error(t, err)
}
