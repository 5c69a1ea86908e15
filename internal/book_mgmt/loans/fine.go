package loans

import "time"

// DateOf は時刻を UTC の日付（0時0分）に切り捨てる。
// 貸出日・返却日は DATE 粒度で扱うため、日数計算の前に必ずこれを通す。
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OverdueFine は延滞罰金を計算する純粋関数。
// 返却日が期限を過ぎていれば遅延日数 × ratePerDay、それ以外は 0。
// 日付粒度なので端数日は発生しない。上限なし。
func OverdueFine(dueDate, returnDate time.Time, ratePerDay float64) float64 {
	days := int(DateOf(returnDate).Sub(DateOf(dueDate)) / (24 * time.Hour))
	if days <= 0 {
		return 0
	}
	return float64(days) * ratePerDay
}
