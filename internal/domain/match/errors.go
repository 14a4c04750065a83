package match

import "errors"

// Match ドメインのエラー定義
var (
	ErrMatchNotFound          = errors.New("試合が見つかりません")
	ErrVenueIDRequired        = errors.New("会場IDは必須です")
	ErrTeamRequired           = errors.New("対戦チームは必須です")
	ErrSameTeams              = errors.New("ホームとアウェイは別のチームである必要があります")
	ErrKickoffRequired        = errors.New("キックオフ時刻は必須です")
	ErrVenueMismatch          = errors.New("試合はこの会場で開催されません")
	ErrMatchNotOpen           = errors.New("試合の予約受付期間外です")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
)
