package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
)

const bookingColumns = `id, code, venue_id, match_id, contact_name, contact_email, contact_phone, payment_method,
	subtotal, taxes, fees, discount, total_amount, status, payment_status, transaction_id, hold_expires_at,
	refundable, refund_until, cancellation_fee, refund_amount, refund_reason, refunded_at, cancel_reason,
	confirmed_at, closed_at, created_at, updated_at, version`

type bookingRow struct {
	ID              string     `db:"id"`
	Code            string     `db:"code"`
	VenueID         string     `db:"venue_id"`
	MatchID         string     `db:"match_id"`
	ContactName     string     `db:"contact_name"`
	ContactEmail    string     `db:"contact_email"`
	ContactPhone    string     `db:"contact_phone"`
	PaymentMethod   string     `db:"payment_method"`
	Subtotal        int        `db:"subtotal"`
	Taxes           int        `db:"taxes"`
	Fees            int        `db:"fees"`
	Discount        int        `db:"discount"`
	TotalAmount     int        `db:"total_amount"`
	Status          string     `db:"status"`
	PaymentStatus   string     `db:"payment_status"`
	TransactionID   string     `db:"transaction_id"`
	HoldExpiresAt   time.Time  `db:"hold_expires_at"`
	Refundable      bool       `db:"refundable"`
	RefundUntil     *time.Time `db:"refund_until"`
	CancellationFee int        `db:"cancellation_fee"`
	RefundAmount    *int       `db:"refund_amount"`
	RefundReason    *string    `db:"refund_reason"`
	RefundedAt      *time.Time `db:"refunded_at"`
	CancelReason    string     `db:"cancel_reason"`
	ConfirmedAt     *time.Time `db:"confirmed_at"`
	ClosedAt        *time.Time `db:"closed_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	Version         int        `db:"version"`
}

type ticketRow struct {
	BookingID string  `db:"booking_id"`
	Position  int     `db:"position"`
	TicketID  *string `db:"ticket_id"`
	VenueID   string  `db:"venue_id"`
	Section   string  `db:"section"`
	Row       string  `db:"row_name"`
	Number    string  `db:"number"`
	Category  string  `db:"category"`
	Price     int     `db:"price"`
}

func (r *bookingRow) toEntity(tickets []booking.Ticket) *booking.Booking {
	b := &booking.Booking{
		ID:            r.ID,
		Code:          r.Code,
		VenueID:       r.VenueID,
		MatchID:       r.MatchID,
		Contact:       booking.Contact{Name: r.ContactName, Email: r.ContactEmail, Phone: r.ContactPhone},
		PaymentMethod: r.PaymentMethod,
		Tickets:       tickets,
		Subtotal:      r.Subtotal,
		Taxes:         r.Taxes,
		Fees:          r.Fees,
		Discount:      r.Discount,
		TotalAmount:   r.TotalAmount,
		Status:        booking.Status(r.Status),
		PaymentStatus: booking.PaymentStatus(r.PaymentStatus),
		TransactionID: r.TransactionID,
		HoldExpiresAt: r.HoldExpiresAt,
		CancellationPolicy: booking.CancellationPolicy{
			Refundable:      r.Refundable,
			RefundUntil:     r.RefundUntil,
			CancellationFee: r.CancellationFee,
		},
		CancelReason: r.CancelReason,
		ConfirmedAt:  r.ConfirmedAt,
		ClosedAt:     r.ClosedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Version:      r.Version,
	}
	if r.RefundAmount != nil && r.RefundedAt != nil {
		b.Refund = &booking.RefundDetails{Amount: *r.RefundAmount, RefundedAt: *r.RefundedAt}
		if r.RefundReason != nil {
			b.Refund.Reason = *r.RefundReason
		}
	}
	return b
}

// refundColumns は RefundDetails を列の値に分解する
func refundColumns(b *booking.Booking) (amount *int, reason *string, at *time.Time) {
	if b.Refund == nil {
		return nil, nil, nil
	}
	return &b.Refund.Amount, &b.Refund.Reason, &b.Refund.RefundedAt
}

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`
	amount, reason, at := refundColumns(b)
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			b.ID, b.Code, b.VenueID, b.MatchID, b.Contact.Name, b.Contact.Email, b.Contact.Phone, b.PaymentMethod,
			b.Subtotal, b.Taxes, b.Fees, b.Discount, b.TotalAmount, string(b.Status), string(b.PaymentStatus),
			b.TransactionID, b.HoldExpiresAt, b.CancellationPolicy.Refundable, b.CancellationPolicy.RefundUntil,
			b.CancellationPolicy.CancellationFee, amount, reason, at, b.CancelReason,
			b.ConfirmedAt, b.ClosedAt, b.CreatedAt, b.UpdatedAt, b.Version,
		)
		if err != nil {
			if isUniqueViolation(err, "bookings_code_key") {
				return booking.ErrDuplicateBookingCode
			}
			return fmt.Errorf("予約作成に失敗: %w", err)
		}
		return insertTickets(ctx, tx, b)
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) GetByCode(ctx context.Context, code string) (*booking.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE code = $1`, code)
}

func (r *BookingRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE contact_email = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, email, limit, offset)
}

// Update は予約を更新する（楽観的ロック）。チケットは確定時の採番のみ書き戻す
func (r *BookingRepository) Update(ctx context.Context, b *booking.Booking) error {
	query := `
		UPDATE bookings
		SET payment_method = $1, status = $2, payment_status = $3, transaction_id = $4,
		    refund_amount = $5, refund_reason = $6, refunded_at = $7, cancel_reason = $8,
		    confirmed_at = $9, closed_at = $10, updated_at = $11, version = version + 1
		WHERE id = $12 AND version = $13
	`
	amount, reason, at := refundColumns(b)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			b.PaymentMethod, string(b.Status), string(b.PaymentStatus), b.TransactionID,
			amount, reason, at, b.CancelReason, b.ConfirmedAt, b.ClosedAt, b.UpdatedAt,
			b.ID, b.Version,
		)
		if err != nil {
			return fmt.Errorf("予約更新に失敗: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("更新結果の確認に失敗: %w", err)
		}
		if rows == 0 {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID); err != nil {
				return fmt.Errorf("予約の存在確認に失敗: %w", err)
			}
			if !exists {
				return booking.ErrBookingNotFound
			}
			return booking.ErrOptimisticLockConflict
		}
		for i, t := range b.Tickets {
			if t.TicketID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE booking_tickets SET ticket_id = $1 WHERE booking_id = $2 AND position = $3`,
				t.TicketID, b.ID, i+1,
			); err != nil {
				if isUniqueViolation(err, ticketIDConstraint) {
					return booking.ErrDuplicateTicketID
				}
				return fmt.Errorf("チケット更新に失敗: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.Version++
	return nil
}

func (r *BookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*booking.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND hold_expires_at <= $1
		ORDER BY hold_expires_at
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg interface{}) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	tickets, err := r.tickets(ctx, []string{row.ID})
	if err != nil {
		return nil, err
	}
	return row.toEntity(tickets[row.ID]), nil
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...interface{}) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	tickets, err := r.tickets(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity(tickets[rows[i].ID])
	}
	return result, nil
}

// tickets は複数予約のチケットをまとめて取得する
func (r *BookingRepository) tickets(ctx context.Context, bookingIDs []string) (map[string][]booking.Ticket, error) {
	out := make(map[string][]booking.Ticket, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return out, nil
	}
	var rows []ticketRow
	query := `
		SELECT booking_id, position, ticket_id, venue_id, section, row_name, number, category, price
		FROM booking_tickets
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, position
	`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(bookingIDs)); err != nil {
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	for _, row := range rows {
		t := booking.Ticket{
			Seat:     seat.Key{VenueID: row.VenueID, Section: row.Section, Row: row.Row, Number: row.Number},
			Category: row.Category,
			Price:    row.Price,
		}
		if row.TicketID != nil {
			t.TicketID = *row.TicketID
		}
		out[row.BookingID] = append(out[row.BookingID], t)
	}
	return out, nil
}

const ticketIDConstraint = "booking_tickets_ticket_id_key"

func insertTickets(ctx context.Context, tx *sqlx.Tx, b *booking.Booking) error {
	query := `
		INSERT INTO booking_tickets (booking_id, position, ticket_id, venue_id, section, row_name, number, category, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, t := range b.Tickets {
		var ticketID *string
		if t.TicketID != "" {
			ticketID = &t.TicketID
		}
		if _, err := tx.ExecContext(ctx, query,
			b.ID, i+1, ticketID, t.Seat.VenueID, t.Seat.Section, t.Seat.Row, t.Seat.Number, t.Category, t.Price,
		); err != nil {
			if isUniqueViolation(err, ticketIDConstraint) {
				return booking.ErrDuplicateTicketID
			}
			return fmt.Errorf("チケット作成に失敗: %w", err)
		}
	}
	return nil
}

var _ booking.Repository = (*BookingRepository)(nil)
