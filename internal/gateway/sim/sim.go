// Package sim provides in-memory implementations of the collaborator
// interfaces: a portfolio service and a small broker network with
// configurable fill and failure behavior. Used by tests and by the daemon's
// sim gateway mode.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
)

// ---------------------------------------------------------------------------
// Portfolio

// AccountState seeds one simulated account.
type AccountState struct {
	AvailableFunds decimal.Decimal
	PortfolioValue decimal.Decimal
	Positions      map[string]int64
	PositionLimit  int64
	MarginUsagePct float64
}

type Portfolio struct {
	mu          sync.RWMutex
	accounts    map[string]AccountState
	markPrices  map[string]decimal.Decimal
	unavailable bool
}

var _ gateway.PortfolioClient = (*Portfolio)(nil)

func NewPortfolio() *Portfolio {
	return &Portfolio{
		accounts:   make(map[string]AccountState),
		markPrices: make(map[string]decimal.Decimal),
	}
}

func (p *Portfolio) SeedAccount(accountID string, state AccountState) {
	p.mu.Lock()
	p.accounts[accountID] = state
	p.mu.Unlock()
}

func (p *Portfolio) SetMarkPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	p.markPrices[symbol] = price
	p.mu.Unlock()
}

// SetUnavailable makes every portfolio call fail, simulating an outage.
func (p *Portfolio) SetUnavailable(down bool) {
	p.mu.Lock()
	p.unavailable = down
	p.mu.Unlock()
}

func (p *Portfolio) GetPositionRisk(_ context.Context, accountID, symbol string) (gateway.PositionRisk, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.unavailable {
		return gateway.PositionRisk{}, fmt.Errorf("portfolio service unavailable")
	}
	acct, ok := p.accounts[accountID]
	if !ok {
		return gateway.PositionRisk{}, fmt.Errorf("unknown account %s", accountID)
	}
	qty := acct.Positions[symbol]
	mark := p.markPrices[symbol]
	return gateway.PositionRisk{
		Symbol:          symbol,
		CurrentQuantity: qty,
		PositionLimit:   acct.PositionLimit,
		ExposureValue:   mark.Mul(decimal.NewFromInt(qty)),
		PortfolioValue:  acct.PortfolioValue,
	}, nil
}

func (p *Portfolio) CalculateImpact(_ context.Context, accountID string, req *domain.OrderRequest) (gateway.ImpactAssessment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.unavailable {
		return gateway.ImpactAssessment{}, fmt.Errorf("portfolio service unavailable")
	}
	acct, ok := p.accounts[accountID]
	if !ok {
		return gateway.ImpactAssessment{}, fmt.Errorf("unknown account %s", accountID)
	}
	out := gateway.ImpactAssessment{
		AvailableFunds:          acct.AvailableFunds,
		ProjectedMarginUsagePct: acct.MarginUsagePct,
	}
	if req == nil {
		// Account-level advisory read.
		return out, nil
	}
	mark := p.markPrices[req.Symbol]
	out.MarkPrice = mark
	out.RequiredFunds = req.Notional(mark)
	if acct.PortfolioValue.IsPositive() {
		exposure := mark.Mul(decimal.NewFromInt(acct.Positions[req.Symbol]))
		projected := exposure
		if req.Side == domain.SideBuy {
			projected = projected.Add(out.RequiredFunds)
		}
		pct, _ := projected.Div(acct.PortfolioValue).Mul(decimal.NewFromInt(100)).Float64()
		out.ProjectedConcentrationPct = pct
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Broker network

type simOrder struct {
	order      *domain.Order
	filledQty  int64
	fills      []domain.FillDetail
	status     domain.OrderStatus
	pollsSeen  int
	fillAfter  int // polls before the configured fill appears
	targetQty  int64
	cancelled  bool
}

// Broker is one simulated venue session.
type Broker struct {
	mu   sync.Mutex
	name string

	// knobs
	down         bool
	rejectReason string
	fillRatio    float64 // fraction of quantity that fills, 1.0 = full
	fillAfter    int     // status polls before fills appear; 0 = fill on ack
	commission   decimal.Decimal
	price        decimal.Decimal

	orders map[string]*simOrder
}

var _ gateway.BrokerConn = (*Broker)(nil)

func NewBroker(name string) *Broker {
	return &Broker{
		name:      name,
		fillRatio: 1.0,
		price:     decimal.NewFromInt(100),
		orders:    make(map[string]*simOrder),
	}
}

func (b *Broker) Broker() string { return b.name }

func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

func (b *Broker) SetReject(reason string) {
	b.mu.Lock()
	b.rejectReason = reason
	b.mu.Unlock()
}

// SetFill shapes execution: ratio of quantity that fills and how many polls
// it takes to appear.
func (b *Broker) SetFill(ratio float64, afterPolls int) {
	b.mu.Lock()
	b.fillRatio = ratio
	b.fillAfter = afterPolls
	b.mu.Unlock()
}

func (b *Broker) SetPrice(price decimal.Decimal) {
	b.mu.Lock()
	b.price = price
	b.mu.Unlock()
}

func (b *Broker) SubmitOrder(_ context.Context, order *domain.Order) (gateway.BrokerAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return gateway.BrokerAck{}, fmt.Errorf("broker %s unreachable", b.name)
	}
	if b.rejectReason != "" {
		return gateway.BrokerAck{Rejected: true, RejectReason: b.rejectReason}, nil
	}

	so := &simOrder{
		order:     order,
		status:    domain.StatusAcknowledged,
		fillAfter: b.fillAfter,
		targetQty: int64(float64(order.Quantity) * b.fillRatio),
	}
	brokerOrderID := "SIM-" + uuid.NewString()[:8]
	b.orders[brokerOrderID] = so

	ack := gateway.BrokerAck{BrokerOrderID: brokerOrderID, Status: domain.StatusAcknowledged}
	if b.fillAfter == 0 {
		b.applyFillLocked(so)
		ack.Status = so.status
		ack.FilledQuantity = so.filledQty
		ack.Fills = so.fills
		ack.Commission = b.commission
	}
	return ack, nil
}

func (b *Broker) applyFillLocked(so *simOrder) {
	if so.targetQty <= 0 {
		return
	}
	so.filledQty = so.targetQty
	so.fills = []domain.FillDetail{{
		Price:     b.price,
		Quantity:  so.targetQty,
		Timestamp: time.Now().UTC(),
		Venue:     so.order.Exchange,
	}}
	if so.filledQty >= so.order.Quantity {
		so.status = domain.StatusFilled
	} else {
		so.status = domain.StatusPartiallyFilled
	}
}

func (b *Broker) GetOrderStatus(_ context.Context, brokerOrderID string) (gateway.BrokerOrderState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return gateway.BrokerOrderState{}, fmt.Errorf("broker %s unreachable", b.name)
	}
	so, ok := b.orders[brokerOrderID]
	if !ok {
		return gateway.BrokerOrderState{}, fmt.Errorf("unknown broker order %s", brokerOrderID)
	}
	so.pollsSeen++
	if !so.status.Terminal() && so.filledQty == 0 && so.pollsSeen >= so.fillAfter {
		b.applyFillLocked(so)
	}
	return gateway.BrokerOrderState{
		Status:         so.status,
		FilledQuantity: so.filledQty,
		Fills:          so.fills,
	}, nil
}

func (b *Broker) CancelOrder(_ context.Context, brokerOrderID string) (gateway.BrokerCancelAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return gateway.BrokerCancelAck{}, fmt.Errorf("broker %s unreachable", b.name)
	}
	so, ok := b.orders[brokerOrderID]
	if !ok {
		return gateway.BrokerCancelAck{}, fmt.Errorf("unknown broker order %s", brokerOrderID)
	}
	if so.status == domain.StatusFilled {
		return gateway.BrokerCancelAck{Cancelled: false, Reason: "already filled", FilledQuantity: so.filledQty}, nil
	}
	so.cancelled = true
	so.status = domain.StatusCancelled
	return gateway.BrokerCancelAck{Cancelled: true, FilledQuantity: so.filledQty}, nil
}

// SubmitCount reports how many live orders the broker holds, used by the
// idempotency tests.
func (b *Broker) SubmitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

// BrokerNet implements BrokerAuthClient over a set of simulated brokers.
type BrokerNet struct {
	mu      sync.RWMutex
	brokers map[string]*Broker
}

var _ gateway.BrokerAuthClient = (*BrokerNet)(nil)

func NewBrokerNet(brokers ...*Broker) *BrokerNet {
	n := &BrokerNet{brokers: make(map[string]*Broker)}
	for _, b := range brokers {
		n.brokers[b.name] = b
	}
	return n
}

func (n *BrokerNet) broker(name string) (*Broker, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	b, ok := n.brokers[name]
	if !ok {
		return nil, fmt.Errorf("unknown broker %s", name)
	}
	return b, nil
}

func (n *BrokerNet) GetConnection(_ context.Context, name string) (gateway.BrokerConn, error) {
	b, err := n.broker(name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	down := b.down
	b.mu.Unlock()
	if down {
		return nil, fmt.Errorf("broker %s unreachable", name)
	}
	return b, nil
}

func (n *BrokerNet) ValidateToken(_ context.Context, name string) (bool, error) {
	b, err := n.broker(name)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	down := b.down
	b.mu.Unlock()
	if down {
		return false, fmt.Errorf("broker %s unreachable", name)
	}
	return true, nil
}

func (n *BrokerNet) RefreshToken(ctx context.Context, name string) error {
	_, err := n.ValidateToken(ctx, name)
	return err
}
