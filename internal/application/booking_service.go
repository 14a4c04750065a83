package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/match"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/metrics"
)

// 予約コード衝突時の再生成回数
const maxCodeAttempts = 5

// BookingPolicy は料金とキャンセル規定の設定
type BookingPolicy struct {
	Pricing         booking.Pricing
	CancellationFee int
	RefundCutoff    time.Duration // キックオフの何時間前まで返金可能か
}

// DefaultBookingPolicy は税5%・手数料20・キャンセル料100・キックオフ24時間前まで
func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		Pricing:         booking.Pricing{TaxRateBP: 500, Fee: 20},
		CancellationFee: 100,
		RefundCutoff:    24 * time.Hour,
	}
}

// AvailabilityCache は会場ごとの空席数キャッシュ。未キャッシュなら ok=false
type AvailabilityCache interface {
	GetFreeCount(ctx context.Context, venueID string) (count int, ok bool, err error)
	SetFreeCount(ctx context.Context, venueID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, venueID string) error
}

type BookingService struct {
	bookings  booking.Repository
	matches   match.Repository
	leases    *HoldLeaseManager
	lifecycle *LifecycleController
	gateway   PaymentGateway
	cache     AvailabilityCache
	policy    BookingPolicy
	codes     booking.CodeGenerator
	clock     clock.Clock
	metrics   *metrics.Metrics
}

type BookingServiceOption func(*BookingService)

func WithPaymentGateway(g PaymentGateway) BookingServiceOption {
	return func(s *BookingService) { s.gateway = g }
}

func WithAvailabilityCache(c AvailabilityCache) BookingServiceOption {
	return func(s *BookingService) { s.cache = c }
}

func WithBookingPolicy(p BookingPolicy) BookingServiceOption {
	return func(s *BookingService) { s.policy = p }
}

// WithCodeGenerator は予約コードの生成関数を差し替える
func WithCodeGenerator(g booking.CodeGenerator) BookingServiceOption {
	return func(s *BookingService) { s.codes = g }
}

func WithBookingClock(c clock.Clock) BookingServiceOption {
	return func(s *BookingService) { s.clock = c }
}

func WithBookingMetrics(m *metrics.Metrics) BookingServiceOption {
	return func(s *BookingService) { s.metrics = m }
}

func NewBookingService(
	bookings booking.Repository,
	matches match.Repository,
	leases *HoldLeaseManager,
	lifecycle *LifecycleController,
	opts ...BookingServiceOption,
) *BookingService {
	s := &BookingService{
		bookings:  bookings,
		matches:   matches,
		leases:    leases,
		lifecycle: lifecycle,
		policy:    DefaultBookingPolicy(),
		codes:     booking.GenerateBookingCode,
		clock:     clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ReserveInput struct {
	MatchID       string
	VenueID       string
	Seats         []seat.Key
	Contact       booking.Contact
	PaymentMethod string
}

// Reserve は座席を仮押さえし、保留中の予約を作成する
func (s *BookingService) Reserve(ctx context.Context, input ReserveInput) (*booking.Booking, error) {
	m, err := s.matches.GetByID(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	if input.VenueID == "" {
		input.VenueID = m.VenueID
	}
	if m.VenueID != input.VenueID {
		return nil, match.ErrVenueMismatch
	}
	if !m.IsBookingOpen(s.clock.Now()) {
		return nil, match.ErrMatchNotOpen
	}

	keys := make([]seat.Key, len(input.Seats))
	for i, k := range input.Seats {
		if k.VenueID == "" {
			k.VenueID = input.VenueID
		}
		if k.VenueID != input.VenueID {
			return nil, fmt.Errorf("%w: 座席 %s は別会場のものです", match.ErrVenueMismatch, k)
		}
		keys[i] = k
	}
	if input.Contact.Email == "" {
		return nil, booking.ErrContactRequired
	}

	id := uuid.NewString()
	hold, err := s.leases.CreateHold(ctx, keys, id)
	if err != nil {
		if errors.Is(err, seat.ErrSeatUnavailable) {
			s.metrics.ObserveReservation("conflict")
		} else {
			s.metrics.ObserveReservation("error")
		}
		return nil, err
	}

	b := booking.NewBooking(booking.NewBookingInput{
		ID:            id,
		VenueID:       input.VenueID,
		MatchID:       m.ID,
		Contact:       input.Contact,
		PaymentMethod: input.PaymentMethod,
		Seats:         hold.Seats,
		HoldExpiresAt: hold.ExpiresAt,
		Policy:        s.cancellationPolicy(m),
		Now:           hold.GrantedAt,
	})
	s.policy.Pricing.Apply(b)

	if err := s.save(ctx, b); err != nil {
		// 予約を保存できなければ仮押さえを戻す
		if _, relErr := s.leases.Release(ctx, hold.Keys(), id); relErr != nil {
			logger.Error("仮押さえの取り消しに失敗", zap.String("booking_id", id), zap.Error(relErr))
		}
		s.metrics.ObserveReservation("error")
		return nil, err
	}

	s.metrics.ObserveReservation("success")
	s.invalidate(ctx, b.VenueID)
	logger.FromContext(ctx).Info("予約を作成",
		zap.String("booking_id", b.ID),
		zap.String("booking_code", b.Code),
		zap.Int("seats", len(b.Tickets)),
		zap.Int("total_amount", b.TotalAmount),
		zap.Time("hold_expires_at", b.HoldExpiresAt),
	)
	return b, nil
}

func (s *BookingService) save(ctx context.Context, b *booking.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		code, err := s.codes()
		if err != nil {
			return fmt.Errorf("予約コードの生成に失敗: %w", err)
		}
		b.Code = code
		err = s.bookings.Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, booking.ErrDuplicateBookingCode) || attempt >= maxCodeAttempts {
			return fmt.Errorf("予約の保存に失敗: %w", err)
		}
		logger.Debug("予約コードが重複したため再生成", zap.Int("attempt", attempt))
	}
}

func (s *BookingService) cancellationPolicy(m *match.Match) booking.CancellationPolicy {
	until := m.KickoffAt.Add(-s.policy.RefundCutoff)
	return booking.CancellationPolicy{
		Refundable:      true,
		RefundUntil:     &until,
		CancellationFee: s.policy.CancellationFee,
	}
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) GetBookingByCode(ctx context.Context, code string) (*booking.Booking, error) {
	return s.bookings.GetByCode(ctx, code)
}

func (s *BookingService) ListBookingsByEmail(ctx context.Context, email string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.bookings.ListByEmail(ctx, email, limit, offset)
}

// Confirm は決済ゲートウェイからの支払い結果を適用する
func (s *BookingService) Confirm(ctx context.Context, id string, p booking.PaymentDetails) (*booking.Booking, error) {
	b, err := s.lifecycle.Confirm(ctx, id, p)
	if err != nil {
		return b, err
	}
	s.invalidate(ctx, b.VenueID)
	return b, nil
}

// Pay は予約総額をゲートウェイで決済し、その結果で予約を確定する。
// ゲートウェイ呼び出しはロックの外で行う
func (s *BookingService) Pay(ctx context.Context, id, method string) (*booking.Booking, error) {
	if s.gateway == nil {
		return nil, ErrPaymentGatewayUnavailable
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusConfirmed {
		return b, nil
	}
	if b.Status == booking.StatusExpired || (b.Status == booking.StatusPending && b.IsExpired(s.clock.Now())) {
		return nil, booking.ErrLeaseExpired
	}
	if b.Status != booking.StatusPending {
		return nil, fmt.Errorf("%w: %s の予約は支払いできません", booking.ErrInvalidTransition, b.Status)
	}
	if method == "" {
		method = b.PaymentMethod
	}

	res, err := s.gateway.Charge(ctx, ChargeRequest{
		BookingID: b.ID,
		Reference: b.Code,
		Amount:    b.TotalAmount,
		Method:    method,
	})
	if err != nil {
		return nil, fmt.Errorf("決済に失敗: %w", err)
	}

	confirmed, err := s.Confirm(ctx, id, booking.PaymentDetails{
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		Method:        method,
		Succeeded:     res.Approved,
	})
	if err != nil && res.Approved {
		// 決済は成功したが確定できなかった場合は返金する
		s.refund(ctx, b.ID, res.TransactionID, res.Amount)
	}
	return confirmed, err
}

// Cancel は確定済み予約をキャンセルし、返金額をゲートウェイに送る
func (s *BookingService) Cancel(ctx context.Context, id, reason string) (*booking.Booking, error) {
	before, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// 座席解放に失敗しても状態が保存されていれば b が返るので、返金は送る
	b, err := s.lifecycle.Cancel(ctx, id, reason)
	if b == nil {
		return nil, err
	}
	s.invalidate(ctx, b.VenueID)
	if before.Status == booking.StatusConfirmed && b.Status == booking.StatusRefunded &&
		b.Refund != nil && b.Refund.Amount > 0 {
		s.refund(ctx, b.ID, b.TransactionID, b.Refund.Amount)
	}
	return b, err
}

// Abandon は支払い前の予約を取り消す
func (s *BookingService) Abandon(ctx context.Context, id, reason string) (*booking.Booking, error) {
	b, err := s.lifecycle.Abandon(ctx, id, reason)
	if b == nil {
		return nil, err
	}
	s.invalidate(ctx, b.VenueID)
	return b, err
}

func (s *BookingService) refund(ctx context.Context, bookingID, transactionID string, amount int) {
	if s.gateway == nil || transactionID == "" {
		return
	}
	if err := s.gateway.Refund(ctx, transactionID, amount); err != nil {
		logger.Error("返金の送信に失敗",
			zap.String("booking_id", bookingID),
			zap.String("transaction_id", transactionID),
			zap.Int("amount", amount),
			zap.Error(err),
		)
	}
}

func (s *BookingService) invalidate(ctx context.Context, venueID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, venueID); err != nil {
		logger.Warn("空席数キャッシュの無効化に失敗", zap.String("venue_id", venueID), zap.Error(err))
	}
}
