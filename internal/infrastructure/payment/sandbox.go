package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/application"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

// DeclinedMethod を指定すると決済は拒否される（テスト用）
const DeclinedMethod = "declined-card"

var (
	ErrUnknownTransaction  = errors.New("取引が見つかりません")
	ErrRefundExceedsCharge = errors.New("返金額が決済額を超えています")
	ErrInvalidAmount       = errors.New("金額が不正です")
)

type charge struct {
	amount   int
	refunded int
}

// SandboxGateway は外部決済を模したゲートウェイ。取引はメモリに保持する
type SandboxGateway struct {
	mu           sync.Mutex
	transactions map[string]*charge
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{transactions: make(map[string]*charge)}
}

func (g *SandboxGateway) Charge(ctx context.Context, req application.ChargeRequest) (*application.ChargeResult, error) {
	if req.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	txID := "sbx_" + uuid.NewString()
	if req.Method == DeclinedMethod {
		logger.Info("サンドボックス決済を拒否", zap.String("booking_id", req.BookingID))
		return &application.ChargeResult{TransactionID: txID, Amount: req.Amount, DeclineReason: "card_declined"}, nil
	}

	g.mu.Lock()
	g.transactions[txID] = &charge{amount: req.Amount}
	g.mu.Unlock()

	logger.Info("サンドボックス決済",
		zap.String("booking_id", req.BookingID),
		zap.String("transaction_id", txID),
		zap.Int("amount", req.Amount),
	)
	return &application.ChargeResult{TransactionID: txID, Amount: req.Amount, Approved: true}, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, transactionID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.transactions[transactionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}
	if c.refunded+amount > c.amount {
		return ErrRefundExceedsCharge
	}
	c.refunded += amount
	logger.Info("サンドボックス返金", zap.String("transaction_id", transactionID), zap.Int("amount", amount))
	return nil
}

// Refunded は取引に対する返金済み合計を返す
func (g *SandboxGateway) Refunded(transactionID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.transactions[transactionID]; ok {
		return c.refunded
	}
	return 0
}

var _ application.PaymentGateway = (*SandboxGateway)(nil)
