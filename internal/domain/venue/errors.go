package venue

import "errors"

// Venue ドメインのエラー定義
var (
	ErrVenueNotFound       = errors.New("会場が見つかりません")
	ErrVenueNameRequired   = errors.New("会場名は必須です")
	ErrSectionsRequired    = errors.New("セクションが1つ以上必要です")
	ErrSectionNameRequired = errors.New("セクション名は必須です")
	ErrDuplicateSection    = errors.New("セクション名が重複しています")
	ErrRowsRequired        = errors.New("列が1つ以上必要です")
	ErrInvalidRow          = errors.New("列名と座席数（1以上）が必要です")
	ErrInvalidPrice        = errors.New("価格は0以上である必要があります")
)
