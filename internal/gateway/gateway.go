// Package gateway defines the narrow client interfaces through which the
// pipeline reaches its external collaborators: the portfolio service, the
// broker-auth service and order persistence. Implementations live in
// subpackages; the pipeline only sees these contracts.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradepipe/internal/domain"
)

// ErrOrderNotFound is returned by OrderStore.Load for unknown IDs.
var ErrOrderNotFound = errors.New("order not found")

// PositionRisk is the portfolio service's view of one symbol's exposure.
type PositionRisk struct {
	Symbol          string
	CurrentQuantity int64
	PositionLimit   int64           // max quantity allowed in this symbol
	ExposureValue   decimal.Decimal // current market value of the position
	PortfolioValue  decimal.Decimal // total portfolio market value
}

// ImpactAssessment is the portfolio service's projection of what executing
// the order would do to the account.
type ImpactAssessment struct {
	RequiredFunds            decimal.Decimal
	AvailableFunds           decimal.Decimal
	MarkPrice                decimal.Decimal
	ProjectedMarginUsagePct  float64
	ProjectedConcentrationPct float64
}

// PortfolioClient is the risk engine's window into account state. Both calls
// are remote and must honor ctx deadlines.
type PortfolioClient interface {
	GetPositionRisk(ctx context.Context, accountID, symbol string) (PositionRisk, error)
	CalculateImpact(ctx context.Context, accountID string, req *domain.OrderRequest) (ImpactAssessment, error)
}

// BrokerAck is the broker's immediate answer to a submission.
type BrokerAck struct {
	BrokerOrderID  string
	Status         domain.OrderStatus
	FilledQuantity int64
	Fills          []domain.FillDetail
	Commission     decimal.Decimal
	Rejected       bool
	RejectReason   string
}

// BrokerOrderState is one polled status snapshot.
type BrokerOrderState struct {
	Status         domain.OrderStatus
	FilledQuantity int64
	Fills          []domain.FillDetail
	Commission     decimal.Decimal
}

// BrokerCancelAck is the broker's answer to a cancel request.
type BrokerCancelAck struct {
	Cancelled      bool
	Reason         string
	FilledQuantity int64
}

// BrokerConn is a usable session with one broker venue.
type BrokerConn interface {
	Broker() string
	SubmitOrder(ctx context.Context, order *domain.Order) (BrokerAck, error)
	GetOrderStatus(ctx context.Context, brokerOrderID string) (BrokerOrderState, error)
	CancelOrder(ctx context.Context, brokerOrderID string) (BrokerCancelAck, error)
}

// BrokerAuthClient manages broker sessions. GetConnection returning an error
// means the broker is unusable right now; the router treats that as a
// fallback trigger, never a hard failure.
type BrokerAuthClient interface {
	GetConnection(ctx context.Context, broker string) (BrokerConn, error)
	ValidateToken(ctx context.Context, broker string) (bool, error)
	RefreshToken(ctx context.Context, broker string) error
}

// OrderStore persists the order aggregate and its audit trail.
type OrderStore interface {
	Load(ctx context.Context, orderID string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
	LogTransition(ctx context.Context, orderID string, from, to domain.OrderStatus, note string, at time.Time) error
}
