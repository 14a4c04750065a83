package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound        = errors.New("予約が見つかりません")
	ErrDuplicateBookingCode   = errors.New("予約コードが重複しています")
	ErrDuplicateTicketID      = errors.New("チケットIDが重複しています")
	ErrInvalidTransition      = errors.New("予約の状態遷移が不正です")
	ErrLeaseExpired           = errors.New("仮押さえの有効期限が切れています")
	ErrPaymentMismatch        = errors.New("支払額が予約総額と一致しません")
	ErrPaymentFailed          = errors.New("支払いに失敗しました")
	ErrNotCancellable         = errors.New("この予約はキャンセルできません")
	ErrHoldNotExpired         = errors.New("仮押さえはまだ有効です")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
	ErrVenueIDRequired        = errors.New("会場IDは必須です")
	ErrMatchIDRequired        = errors.New("試合IDは必須です")
	ErrContactRequired        = errors.New("連絡先メールアドレスは必須です")
	ErrTicketsRequired        = errors.New("チケットが1枚以上必要です")
)
