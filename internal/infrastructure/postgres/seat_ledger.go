package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-match-ticket-booking/internal/domain/seat"
	"github.com/sanosuguru/go-match-ticket-booking/internal/pkg/clock"
)

const seatColumns = `venue_id, section, row_name, number, category, price, availability, holder_booking_id, hold_expires_at, updated_at, version`

type seatRow struct {
	VenueID         string     `db:"venue_id"`
	Section         string     `db:"section"`
	Row             string     `db:"row_name"`
	Number          string     `db:"number"`
	Category        string     `db:"category"`
	Price           int        `db:"price"`
	Availability    string     `db:"availability"`
	HolderBookingID *string    `db:"holder_booking_id"`
	HoldExpiresAt   *time.Time `db:"hold_expires_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	Version         int        `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		Key:             seat.Key{VenueID: r.VenueID, Section: r.Section, Row: r.Row, Number: r.Number},
		Category:        r.Category,
		Price:           r.Price,
		Availability:    seat.Availability(r.Availability),
		HolderBookingID: r.HolderBookingID,
		HoldExpiresAt:   r.HoldExpiresAt,
		UpdatedAt:       r.UpdatedAt,
		Version:         r.Version,
	}
}

// SeatLedger は座席台帳のPostgreSQL実装。
// 各操作は1トランザクションで、対象行を決まった順序で FOR UPDATE してから検査・更新する
type SeatLedger struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewSeatLedger(db *sqlx.DB, clk clock.Clock) *SeatLedger {
	return &SeatLedger{db: db, clock: clk}
}

// Register は座席を空席として一括登録する
func (l *SeatLedger) Register(ctx context.Context, seats []*seat.Seat) error {
	for _, s := range seats {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 1000
	return withTx(ctx, l.db, func(tx *sqlx.Tx) error {
		for i := 0; i < len(seats); i += batchSize {
			end := min(i+batchSize, len(seats))
			if err := l.registerBatch(ctx, tx, seats[i:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *SeatLedger) registerBatch(ctx context.Context, tx *sqlx.Tx, seats []*seat.Seat) error {
	const cols = 8
	query := `INSERT INTO seats (venue_id, section, row_name, number, category, price, availability, updated_at) VALUES `
	args := make([]interface{}, 0, len(seats)*cols)
	placeholders := make([]string, 0, len(seats))
	now := l.clock.Now()

	for i, s := range seats {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, s.VenueID, s.Section, s.Row, s.Number, s.Category, s.Price, string(seat.Free), now)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "") {
			return seat.ErrSeatAlreadyExists
		}
		return fmt.Errorf("座席一括登録に失敗: %w", err)
	}
	return nil
}

func (l *SeatLedger) Get(ctx context.Context, key seat.Key) (*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE venue_id = $1 AND section = $2 AND row_name = $3 AND number = $4`
	var rows []seatRow
	if err := l.db.SelectContext(ctx, &rows, query, key.VenueID, key.Section, key.Row, key.Number); err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", seat.ErrSeatNotFound, key)
	}
	return rows[0].toEntity(), nil
}

func (l *SeatLedger) ListByVenue(ctx context.Context, venueID string, onlyFree bool) ([]*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE venue_id = $1`
	args := []interface{}{venueID}
	if onlyFree {
		query += ` AND availability = $2`
		args = append(args, string(seat.Free))
	}
	query += ` ORDER BY section, row_name, number`

	var rows []seatRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("座席一覧取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

func (l *SeatLedger) CountFree(ctx context.Context, venueID string) (int, error) {
	var count int
	err := l.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM seats WHERE venue_id = $1 AND availability = 'free'`, venueID)
	if err != nil {
		return 0, fmt.Errorf("空席数取得に失敗: %w", err)
	}
	return count, nil
}

// TryReserve は他のトランザクションが処理中の座席を待たず、競合として即座に返す
func (l *SeatLedger) TryReserve(ctx context.Context, keys []seat.Key, bookingID string, lease time.Duration) (*seat.Hold, error) {
	var hold *seat.Hold
	err := l.mutate(ctx, keys, lockSkipBusy, func(seats []*seat.Seat, now time.Time) ([]*seat.Seat, error) {
		var conflicts []seat.Key
		for _, s := range seats {
			if !s.IsFree() {
				conflicts = append(conflicts, s.Key)
			}
		}
		if len(conflicts) > 0 {
			return nil, &seat.UnavailableError{Conflicts: conflicts}
		}

		expiresAt := now.Add(lease)
		hold = &seat.Hold{BookingID: bookingID, GrantedAt: now, ExpiresAt: expiresAt}
		for _, s := range seats {
			if err := s.Hold(bookingID, expiresAt, now); err != nil {
				return nil, fmt.Errorf("%w: %v", seat.ErrInvariantViolation, err)
			}
			hold.Seats = append(hold.Seats, s.Clone())
		}
		return seats, nil
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (l *SeatLedger) Release(ctx context.Context, keys []seat.Key, bookingID string) ([]seat.Key, error) {
	var released []seat.Key
	err := l.mutate(ctx, keys, lockWait, func(seats []*seat.Seat, now time.Time) ([]*seat.Seat, error) {
		var changed []*seat.Seat
		for _, s := range seats {
			if s.ReleaseFor(bookingID, now) {
				changed = append(changed, s)
				released = append(released, s.Key)
			}
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (l *SeatLedger) Promote(ctx context.Context, keys []seat.Key, bookingID string) error {
	return l.mutate(ctx, keys, lockWait, func(seats []*seat.Seat, now time.Time) ([]*seat.Seat, error) {
		for _, s := range seats {
			if !s.IsHeldBy(bookingID) && !s.IsBookedBy(bookingID) {
				return nil, fmt.Errorf("%w: %s は予約 %s の仮押さえではありません", seat.ErrInvariantViolation, s.Key, bookingID)
			}
		}
		var changed []*seat.Seat
		for _, s := range seats {
			if s.IsBookedBy(bookingID) {
				continue
			}
			if err := s.Promote(bookingID, now); err != nil {
				return nil, err
			}
			changed = append(changed, s)
		}
		return changed, nil
	})
}

// ExpireStale は期限切れの仮押さえを解放する。
// 他のトランザクションがロック中の行は飛ばし、次回のスイープで拾う
func (l *SeatLedger) ExpireStale(ctx context.Context, now time.Time) ([]seat.Expired, error) {
	query := `
		WITH stale AS (
			SELECT venue_id, section, row_name, number, holder_booking_id
			FROM seats
			WHERE availability = 'held' AND hold_expires_at <= $1
			ORDER BY venue_id, section, row_name, number
			FOR UPDATE SKIP LOCKED
		)
		UPDATE seats AS s
		SET availability = 'free', holder_booking_id = NULL, hold_expires_at = NULL,
		    updated_at = $1, version = s.version + 1
		FROM stale
		WHERE s.venue_id = stale.venue_id AND s.section = stale.section
		  AND s.row_name = stale.row_name AND s.number = stale.number
		RETURNING stale.venue_id, stale.section, stale.row_name, stale.number, stale.holder_booking_id
	`
	var rows []struct {
		VenueID   string `db:"venue_id"`
		Section   string `db:"section"`
		Row       string `db:"row_name"`
		Number    string `db:"number"`
		BookingID string `db:"holder_booking_id"`
	}
	if err := l.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("期限切れ座席の解放に失敗: %w", err)
	}

	expired := make([]seat.Expired, len(rows))
	for i, r := range rows {
		expired[i] = seat.Expired{
			Key:       seat.Key{VenueID: r.VenueID, Section: r.Section, Row: r.Row, Number: r.Number},
			BookingID: r.BookingID,
		}
	}
	return expired, nil
}

// lockMode は座席の行ロックの取り方
type lockMode int

const (
	// lockWait は他のトランザクションのロック解放を待つ
	lockWait lockMode = iota
	// lockSkipBusy はロック中の行を待たずに飛ばし、競合として扱う
	lockSkipBusy
)

// mutate は対象座席を行ロックして fn に渡し、fn が返した座席を書き戻す。
// fn がエラーを返すとトランザクションごと取り消す
func (l *SeatLedger) mutate(
	ctx context.Context,
	keys []seat.Key,
	mode lockMode,
	fn func(seats []*seat.Seat, now time.Time) ([]*seat.Seat, error),
) error {
	keys, err := seat.NormalizeKeys(keys)
	if err != nil {
		return err
	}
	return withTx(ctx, l.db, func(tx *sqlx.Tx) error {
		seats, busy, err := lockSeats(ctx, tx, keys, mode)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return busyConflict(keys, seats, busy)
		}
		changed, err := fn(seats, l.clock.Now())
		if err != nil {
			return err
		}
		for _, s := range changed {
			if err := updateSeat(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// lockSeats は keys の座席を行ロックして keys の順で返す。
// lockSkipBusy では他のトランザクションがロック中の座席を busy として返す
func lockSeats(ctx context.Context, tx *sqlx.Tx, keys []seat.Key, mode lockMode) ([]*seat.Seat, []seat.Key, error) {
	venueIDs, sections, rowNames, numbers := keyArrays(keys)

	lockClause := "FOR UPDATE"
	if mode == lockSkipBusy {
		lockClause = "FOR UPDATE SKIP LOCKED"
	}
	query := `
		SELECT ` + seatColumns + `
		FROM seats
		WHERE (venue_id, section, row_name, number) IN (
			SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[])
		)
		ORDER BY venue_id, section, row_name, number
		` + lockClause
	var rows []seatRow
	if err := tx.SelectContext(ctx, &rows, query,
		pq.Array(venueIDs), pq.Array(sections), pq.Array(rowNames), pq.Array(numbers),
	); err != nil {
		return nil, nil, fmt.Errorf("座席ロックに失敗: %w", err)
	}

	found := make(map[seat.Key]*seat.Seat, len(rows))
	for i := range rows {
		s := rows[i].toEntity()
		found[s.Key] = s
	}
	var missing []seat.Key
	seats := make([]*seat.Seat, 0, len(keys))
	for _, k := range keys {
		if s, ok := found[k]; ok {
			seats = append(seats, s)
		} else {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return seats, nil, nil
	}
	if mode != lockSkipBusy {
		return nil, nil, fmt.Errorf("%w: %s", seat.ErrSeatNotFound, missing[0])
	}

	// 飛ばされた行と存在しない座席を区別する
	exists, err := existingKeys(ctx, tx, missing)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range missing {
		if !exists[k] {
			return nil, nil, fmt.Errorf("%w: %s", seat.ErrSeatNotFound, k)
		}
	}
	return seats, missing, nil
}

func existingKeys(ctx context.Context, tx *sqlx.Tx, keys []seat.Key) (map[seat.Key]bool, error) {
	venueIDs, sections, rowNames, numbers := keyArrays(keys)
	query := `
		SELECT venue_id, section, row_name, number
		FROM seats
		WHERE (venue_id, section, row_name, number) IN (
			SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[])
		)
	`
	var rows []struct {
		VenueID string `db:"venue_id"`
		Section string `db:"section"`
		Row     string `db:"row_name"`
		Number  string `db:"number"`
	}
	if err := tx.SelectContext(ctx, &rows, query,
		pq.Array(venueIDs), pq.Array(sections), pq.Array(rowNames), pq.Array(numbers),
	); err != nil {
		return nil, fmt.Errorf("座席の存在確認に失敗: %w", err)
	}
	exists := make(map[seat.Key]bool, len(rows))
	for _, r := range rows {
		exists[seat.Key{VenueID: r.VenueID, Section: r.Section, Row: r.Row, Number: r.Number}] = true
	}
	return exists, nil
}

// busyConflict はロック中の座席と空席でない座席を keys の順にまとめた競合エラーを返す
func busyConflict(keys []seat.Key, locked []*seat.Seat, busy []seat.Key) error {
	taken := make(map[seat.Key]bool, len(keys))
	for _, k := range busy {
		taken[k] = true
	}
	for _, s := range locked {
		if !s.IsFree() {
			taken[s.Key] = true
		}
	}
	conflicts := make([]seat.Key, 0, len(taken))
	for _, k := range keys {
		if taken[k] {
			conflicts = append(conflicts, k)
		}
	}
	return &seat.UnavailableError{Conflicts: conflicts}
}

func keyArrays(keys []seat.Key) (venueIDs, sections, rowNames, numbers []string) {
	venueIDs = make([]string, len(keys))
	sections = make([]string, len(keys))
	rowNames = make([]string, len(keys))
	numbers = make([]string, len(keys))
	for i, k := range keys {
		venueIDs[i], sections[i], rowNames[i], numbers[i] = k.VenueID, k.Section, k.Row, k.Number
	}
	return venueIDs, sections, rowNames, numbers
}

func updateSeat(ctx context.Context, tx *sqlx.Tx, s *seat.Seat) error {
	query := `
		UPDATE seats
		SET availability = $1, holder_booking_id = $2, hold_expires_at = $3, updated_at = $4, version = version + 1
		WHERE venue_id = $5 AND section = $6 AND row_name = $7 AND number = $8
	`
	if _, err := tx.ExecContext(ctx, query,
		string(s.Availability), s.HolderBookingID, s.HoldExpiresAt, s.UpdatedAt,
		s.VenueID, s.Section, s.Row, s.Number,
	); err != nil {
		return fmt.Errorf("座席更新に失敗: %w", err)
	}
	return nil
}

var _ seat.Ledger = (*SeatLedger)(nil)
