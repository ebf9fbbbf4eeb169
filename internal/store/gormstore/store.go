// Package gormstore implements order persistence over Gorm + SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
	storemodel "tradepipe/internal/store/model"
)

type Store struct {
	db *gorm.DB
}

var _ gateway.OrderStore = (*Store)(nil)

// New opens (creating if needed) the SQLite order store at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: db path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.OrderModel{}, &storemodel.OrderTransitionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent reads while keeping
	// lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Load(ctx context.Context, orderID string) (*domain.Order, error) {
	var row storemodel.OrderModel
	err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gateway.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row)
}

func (s *Store) Save(ctx context.Context, order *domain.Order) error {
	row := toRow(order)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

func (s *Store) LogTransition(ctx context.Context, orderID string, from, to domain.OrderStatus, note string, at time.Time) error {
	return s.db.WithContext(ctx).Create(&storemodel.OrderTransitionModel{
		OrderID:    orderID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Note:       note,
		At:         at,
	}).Error
}

// Transitions returns the audit trail for one order, oldest first.
func (s *Store) Transitions(ctx context.Context, orderID string) ([]storemodel.OrderTransitionModel, error) {
	var rows []storemodel.OrderTransitionModel
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&rows).Error
	return rows, err
}

func toRow(o *domain.Order) *storemodel.OrderModel {
	row := &storemodel.OrderModel{
		ID:              o.ID,
		UserID:          o.UserID,
		AccountID:       o.AccountID,
		Symbol:          o.Symbol,
		Exchange:        o.Exchange,
		Side:            string(o.Side),
		OrderType:       string(o.Type),
		TimeInForce:     string(o.TimeInForce),
		Quantity:        o.Quantity,
		FilledQuantity:  o.FilledQuantity,
		LimitPrice:      o.LimitPrice.String(),
		StopPrice:       o.StopPrice.String(),
		Status:          string(o.Status),
		BrokerOrderID:   o.BrokerOrderID,
		BrokerName:      o.BrokerName,
		RejectionReason: o.RejectionReason,
		CreatedAtUnix:   o.CreatedAt.Unix(),
		UpdatedAtUnix:   o.UpdatedAt.Unix(),
	}
	if !o.ExpiryDate.IsZero() {
		row.ExpiryUnix = o.ExpiryDate.Unix()
	}
	return row
}

func fromRow(row *storemodel.OrderModel) (*domain.Order, error) {
	limitPx, err := decimal.NewFromString(row.LimitPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad limit price %q: %w", row.ID, row.LimitPrice, err)
	}
	stopPx, err := decimal.NewFromString(row.StopPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad stop price %q: %w", row.ID, row.StopPrice, err)
	}
	o := &domain.Order{
		ID:              row.ID,
		UserID:          row.UserID,
		AccountID:       row.AccountID,
		Symbol:          row.Symbol,
		Exchange:        row.Exchange,
		Side:            domain.Side(row.Side),
		Type:            domain.OrderType(row.OrderType),
		TimeInForce:     domain.TimeInForce(row.TimeInForce),
		Quantity:        row.Quantity,
		FilledQuantity:  row.FilledQuantity,
		LimitPrice:      limitPx,
		StopPrice:       stopPx,
		Status:          domain.OrderStatus(row.Status),
		BrokerOrderID:   row.BrokerOrderID,
		BrokerName:      row.BrokerName,
		RejectionReason: row.RejectionReason,
		CreatedAt:       time.Unix(row.CreatedAtUnix, 0).UTC(),
		UpdatedAt:       time.Unix(row.UpdatedAtUnix, 0).UTC(),
	}
	if row.ExpiryUnix > 0 {
		o.ExpiryDate = time.Unix(row.ExpiryUnix, 0).UTC()
	}
	return o, nil
}
