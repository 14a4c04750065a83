package booking

import (
	"crypto/rand"
	"fmt"
)

// Pricing は税・手数料・割引の計算ルール
type Pricing struct {
	TaxRateBP int // 税率（ベーシスポイント、500 = 5%）
	Fee       int // 予約ごとの固定手数料
	Discount  int
}

// Apply は小計から税・手数料を計算して総額を設定する
func (p Pricing) Apply(b *Booking) {
	b.Subtotal = subtotal(b.Tickets)
	b.Taxes = b.Subtotal * p.TaxRateBP / 10000
	b.Fees = p.Fee
	b.Discount = p.Discount
	b.ComputeTotal()
}

// ComputeTotal は小計と総額を計算する。総額は0未満にならない
func (b *Booking) ComputeTotal() int {
	b.Subtotal = subtotal(b.Tickets)
	b.TotalAmount = max(0, b.Subtotal+b.Taxes+b.Fees-b.Discount)
	return b.TotalAmount
}

func subtotal(tickets []Ticket) int {
	sum := 0
	for _, t := range tickets {
		sum += t.Price
	}
	return sum
}

const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator は予約コードを生成する関数
type CodeGenerator func() (string, error)

// GenerateBookingCode は [A-Z0-9] から一様に選んだ8文字の予約コードを生成する
// 一意性は保証しないため、呼び出し側は ErrDuplicateBookingCode で再試行すること
func GenerateBookingCode() (string, error) {
	// 252 = 36*7 未満のバイトのみ採用して偏りを無くす
	const limit = 256 - 256%len(codeAlphabet)
	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("予約コード生成に失敗: %w", err)
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(c)%len(codeAlphabet)])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out), nil
}
