package application

import "context"

// ChargeRequest は決済ゲートウェイへの請求内容
type ChargeRequest struct {
	BookingID string
	Reference string // 予約コード
	Amount    int
	Method    string
}

// ChargeResult は決済ゲートウェイからの結果
type ChargeResult struct {
	TransactionID string
	Amount        int
	Approved      bool
	DeclineReason string
}

// PaymentGateway は外部の決済ゲートウェイ
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amount int) error
}
