package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
)

// EventType は予約通知の種別
type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingAbandoned EventType = "booking.abandoned"
	EventBookingExpired   EventType = "booking.expired"
)

// BookingEvent は状態遷移後に外部へ送る通知の内容
type BookingEvent struct {
	Type         EventType `json:"type"`
	BookingID    string    `json:"booking_id"`
	BookingCode  string    `json:"booking_code"`
	MatchID      string    `json:"match_id"`
	VenueID      string    `json:"venue_id"`
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	TotalAmount  int       `json:"total_amount"`
	RefundAmount int       `json:"refund_amount,omitempty"`
	Seats        []string  `json:"seats"`
	TicketIDs    []string  `json:"ticket_ids,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewBookingEvent(t EventType, b *booking.Booking, now time.Time) BookingEvent {
	ev := BookingEvent{
		Type:        t,
		BookingID:   b.ID,
		BookingCode: b.Code,
		MatchID:     b.MatchID,
		VenueID:     b.VenueID,
		Email:       b.Contact.Email,
		Status:      string(b.Status),
		TotalAmount: b.TotalAmount,
		OccurredAt:  now,
	}
	for _, tk := range b.Tickets {
		ev.Seats = append(ev.Seats, tk.Seat.Label())
		if tk.TicketID != "" {
			ev.TicketIDs = append(ev.TicketIDs, tk.TicketID)
		}
	}
	if b.Refund != nil {
		ev.RefundAmount = b.Refund.Amount
	}
	return ev
}

// Notifier は予約通知の送信先（メール等の配信サービスへの橋渡し）
type Notifier interface {
	Notify(ctx context.Context, ev BookingEvent) error
}

// LogNotifier は通知をログに出すだけの実装
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev BookingEvent) error {
	logger.Info("予約通知",
		zap.String("event", string(ev.Type)),
		zap.String("booking_code", ev.BookingCode),
		zap.String("email", ev.Email),
	)
	return nil
}
