package application

import "errors"

var (
	ErrPaymentGatewayUnavailable = errors.New("決済ゲートウェイが設定されていません")
)
