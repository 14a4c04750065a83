package match

import "time"

// Status は試合の状態を表す
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusFinished  Status = "finished"
)

// Match は会場に対して組まれた試合エンティティを表す
type Match struct {
	ID          string
	VenueID     string
	HomeTeam    string
	AwayTeam    string
	Competition string
	KickoffAt   time.Time
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用
}

// NewMatch は新しい試合を作成する
func NewMatch(venueID, homeTeam, awayTeam, competition string, kickoffAt time.Time) *Match {
	now := time.Now().UTC()
	return &Match{
		VenueID:     venueID,
		HomeTeam:    homeTeam,
		AwayTeam:    awayTeam,
		Competition: competition,
		KickoffAt:   kickoffAt,
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsBookingOpen は予約受付中かを返す
func (m *Match) IsBookingOpen(now time.Time) bool {
	return m.Status == StatusScheduled && now.Before(m.KickoffAt)
}

// Validate は試合の検証を行う
func (m *Match) Validate() error {
	if m.VenueID == "" {
		return ErrVenueIDRequired
	}
	if m.HomeTeam == "" || m.AwayTeam == "" {
		return ErrTeamRequired
	}
	if m.HomeTeam == m.AwayTeam {
		return ErrSameTeams
	}
	if m.KickoffAt.IsZero() {
		return ErrKickoffRequired
	}
	return nil
}
