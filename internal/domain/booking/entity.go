package booking

import (
	"fmt"
	"time"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusExpired   Status = "expired"
)

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusRefunded || s == StatusExpired
}

// PaymentStatus は支払いの状態を表す
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Ticket は座席のスナップショットと、確定時に採番されるチケットID
type Ticket struct {
	TicketID string
	Seat     seat.Key
	Category string
	Price    int
}

// Contact は購入者の連絡先
type Contact struct {
	Name  string
	Email string
	Phone string
}

// CancellationPolicy はキャンセル可否と手数料
type CancellationPolicy struct {
	Refundable      bool
	RefundUntil     *time.Time
	CancellationFee int
}

// RefundDetails はキャンセル・返金の記録
type RefundDetails struct {
	Amount     int
	Reason     string
	RefundedAt time.Time
}

// PaymentDetails は決済ゲートウェイからの確定通知
type PaymentDetails struct {
	TransactionID string
	Amount        int
	Method        string
	Succeeded     bool
}

// Booking は予約集約のルート
type Booking struct {
	ID                 string
	Code               string
	VenueID            string
	MatchID            string
	Contact            Contact
	PaymentMethod      string
	Tickets            []Ticket
	Subtotal           int
	Taxes              int
	Fees               int
	Discount           int
	TotalAmount        int
	Status             Status
	PaymentStatus      PaymentStatus
	TransactionID      string
	HoldExpiresAt      time.Time
	CancellationPolicy CancellationPolicy
	Refund             *RefundDetails
	CancelReason       string
	ConfirmedAt        *time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int // 楽観的ロック用
}

// NewBookingInput は予約作成時の入力
type NewBookingInput struct {
	ID            string
	Code          string
	VenueID       string
	MatchID       string
	Contact       Contact
	PaymentMethod string
	Seats         []*seat.Seat
	HoldExpiresAt time.Time
	Policy        CancellationPolicy
	Now           time.Time
}

// NewBooking は仮押さえ済み座席から保留中の予約を作成する
func NewBooking(in NewBookingInput) *Booking {
	tickets := make([]Ticket, len(in.Seats))
	for i, s := range in.Seats {
		tickets[i] = Ticket{Seat: s.Key, Category: s.Category, Price: s.Price}
	}
	return &Booking{
		ID:                 in.ID,
		Code:               in.Code,
		VenueID:            in.VenueID,
		MatchID:            in.MatchID,
		Contact:            in.Contact,
		PaymentMethod:      in.PaymentMethod,
		Tickets:            tickets,
		Status:             StatusPending,
		PaymentStatus:      PaymentPending,
		HoldExpiresAt:      in.HoldExpiresAt,
		CancellationPolicy: in.Policy,
		CreatedAt:          in.Now,
		UpdatedAt:          in.Now,
	}
}

// SeatKeys は予約が参照する座席キーを返す
func (b *Booking) SeatKeys() []seat.Key {
	keys := make([]seat.Key, len(b.Tickets))
	for i, t := range b.Tickets {
		keys[i] = t.Seat
	}
	return keys
}

// IsExpired は仮押さえ期限を過ぎているかを返す
func (b *Booking) IsExpired(now time.Time) bool {
	return now.After(b.HoldExpiresAt)
}

// LeaseElapsed は仮押さえ期間が終了したか（holdExpiresAt <= now）を返す
// 台帳の ExpireStale と同じ境界で、失効処理の判定に使う
func (b *Booking) LeaseElapsed(now time.Time) bool {
	return !now.Before(b.HoldExpiresAt)
}

// CanBeCancelled は確定済みかつ返金可能な期限内かを返す
func (b *Booking) CanBeCancelled(now time.Time) bool {
	if b.Status != StatusConfirmed || !b.CancellationPolicy.Refundable {
		return false
	}
	until := b.CancellationPolicy.RefundUntil
	return until == nil || !now.After(*until)
}

// RefundAmount はキャンセル時の返金額を返す
func (b *Booking) RefundAmount(now time.Time) int {
	if !b.CanBeCancelled(now) {
		return 0
	}
	return max(0, b.TotalAmount-b.CancellationPolicy.CancellationFee)
}

// GenerateTicketIDs はチケットIDを "<code>-T001" 形式で採番する
// 同じ予約コードに対しては常に同じIDになる
func (b *Booking) GenerateTicketIDs() {
	for i := range b.Tickets {
		b.Tickets[i].TicketID = fmt.Sprintf("%s-T%03d", b.Code, i+1)
	}
}

// ValidateConfirmation は支払い確定を受け付けられるかを検証する（状態は変更しない）
// 失効済みの予約は保留中の期限切れと同じく ErrLeaseExpired を返す
func (b *Booking) ValidateConfirmation(p PaymentDetails, now time.Time) error {
	if b.Status == StatusExpired {
		return ErrLeaseExpired
	}
	if b.Status != StatusPending {
		return fmt.Errorf("%w: %s から confirmed へは遷移できません", ErrInvalidTransition, b.Status)
	}
	if b.IsExpired(now) {
		return ErrLeaseExpired
	}
	if p.Amount != b.TotalAmount {
		return fmt.Errorf("%w: 支払額 %d, 予約総額 %d", ErrPaymentMismatch, p.Amount, b.TotalAmount)
	}
	return nil
}

// MarkConfirmed は座席昇格後に予約を確定状態にする
func (b *Booking) MarkConfirmed(p PaymentDetails, now time.Time) error {
	if b.Status != StatusPending {
		return fmt.Errorf("%w: %s から confirmed へは遷移できません", ErrInvalidTransition, b.Status)
	}
	b.GenerateTicketIDs()
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentCompleted
	b.TransactionID = p.TransactionID
	if p.Method != "" {
		b.PaymentMethod = p.Method
	}
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// MarkPaymentFailed は支払い失敗を記録する。予約は保留中のまま
func (b *Booking) MarkPaymentFailed(p PaymentDetails, now time.Time) error {
	if b.Status == StatusExpired {
		return ErrLeaseExpired
	}
	if b.Status != StatusPending {
		return fmt.Errorf("%w: %s の予約に支払い結果を適用できません", ErrInvalidTransition, b.Status)
	}
	b.PaymentStatus = PaymentFailed
	b.TransactionID = p.TransactionID
	b.UpdatedAt = now
	return nil
}

// Cancel は確定済み予約をキャンセルし返金額を記録する
func (b *Booking) Cancel(reason string, now time.Time) error {
	if !b.CanBeCancelled(now) {
		return ErrNotCancellable
	}
	b.Refund = &RefundDetails{
		Amount:     b.RefundAmount(now),
		Reason:     reason,
		RefundedAt: now,
	}
	b.Status = StatusRefunded
	b.PaymentStatus = PaymentRefunded
	b.CancelReason = reason
	b.ClosedAt = &now
	b.UpdatedAt = now
	return nil
}

// Abandon は支払い前の予約を取り消す
func (b *Booking) Abandon(reason string, now time.Time) error {
	if b.Status != StatusPending {
		return fmt.Errorf("%w: %s から cancelled へは遷移できません", ErrInvalidTransition, b.Status)
	}
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.ClosedAt = &now
	b.UpdatedAt = now
	return nil
}

// Expire は期限切れの保留中予約を失効させる。既に失効済みなら false を返す
func (b *Booking) Expire(now time.Time) (bool, error) {
	if b.Status == StatusExpired {
		return false, nil
	}
	if b.Status != StatusPending {
		return false, fmt.Errorf("%w: %s から expired へは遷移できません", ErrInvalidTransition, b.Status)
	}
	if !b.LeaseElapsed(now) {
		return false, ErrHoldNotExpired
	}
	b.Status = StatusExpired
	b.ClosedAt = &now
	b.UpdatedAt = now
	return true, nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.VenueID == "" {
		return ErrVenueIDRequired
	}
	if b.MatchID == "" {
		return ErrMatchIDRequired
	}
	if b.Contact.Email == "" {
		return ErrContactRequired
	}
	if len(b.Tickets) == 0 {
		return ErrTicketsRequired
	}
	return nil
}

// Clone は予約のディープコピーを返す
func (b *Booking) Clone() *Booking {
	c := *b
	c.Tickets = append([]Ticket(nil), b.Tickets...)
	if b.Refund != nil {
		r := *b.Refund
		c.Refund = &r
	}
	if b.CancellationPolicy.RefundUntil != nil {
		u := *b.CancellationPolicy.RefundUntil
		c.CancellationPolicy.RefundUntil = &u
	}
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if b.ClosedAt != nil {
		t := *b.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
