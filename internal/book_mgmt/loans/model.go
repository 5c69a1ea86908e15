package loans

import (
	"database/sql"
	"time"
)

const (
	StatusIssued   = "issued"
	StatusReturned = "returned"
)

const (
	// 貸出期間。due_date = borrow_date + LoanPeriodDays（作成時に確定、以後再計算しない）
	LoanPeriodDays = 14
	// 延滞1日あたりの罰金
	FinePerDay = 1.00
)

// Loan は loans テーブルの1行を表す
type Loan struct {
	LoanID     int64
	LoanULID   string
	UserID     int64
	BookID     int64
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate sql.NullTime
	FineAmount float64
	Status     string
}

// 一覧取得用。ダッシュボード表示のために user/book を JOIN した行
type LoanDetail struct {
	Loan
	Username string
	Title    string
	ImageURL sql.NullString
}

// 貸出リスト取得用の検索条件
type LoanFilter struct {
	UserID *int64
	BookID *int64
	Status *string
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}
