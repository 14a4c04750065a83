package seat

import (
	"errors"
	"strings"
)

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound       = errors.New("座席が見つかりません")
	ErrSeatUnavailable    = errors.New("座席は予約できません")
	ErrSeatAlreadyExists  = errors.New("座席は既に登録されています")
	ErrInvariantViolation = errors.New("座席状態の不変条件違反")
	ErrNoSeatsRequested   = errors.New("座席が指定されていません")
	ErrVenueIDRequired    = errors.New("会場IDは必須です")
	ErrSectionRequired    = errors.New("セクションは必須です")
	ErrRowRequired        = errors.New("列は必須です")
	ErrSeatNumberRequired = errors.New("座席番号は必須です")
	ErrInvalidPrice       = errors.New("価格は0以上である必要があります")
)

// UnavailableError は空席でなかった座席の一覧を持つ
type UnavailableError struct {
	Conflicts []Key
}

func (e *UnavailableError) Error() string {
	labels := make([]string, len(e.Conflicts))
	for i, k := range e.Conflicts {
		labels[i] = k.QualifiedLabel()
	}
	return ErrSeatUnavailable.Error() + ": " + strings.Join(labels, ", ")
}

// Is は errors.Is(err, ErrSeatUnavailable) を満たす
func (e *UnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}

// ConflictLabels は競合した座席のセクション付きラベル一覧を返す
func (e *UnavailableError) ConflictLabels() []string {
	labels := make([]string, len(e.Conflicts))
	for i, k := range e.Conflicts {
		labels[i] = k.QualifiedLabel()
	}
	return labels
}
