package loans

import "time"

// 貸出登録リクエスト
type IssueLoanRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
	// 管理者が他ユーザーの代理で貸出する場合のみ指定。通常はトークンのsubを使う
	UserID int64 `json:"user_id,omitempty"`
}

// 貸出レスポンス
type LoanResponse struct {
	LoanID     int64      `json:"loan_id"`
	LoanULID   string     `json:"loan_ulid"`
	UserID     int64      `json:"user_id"`
	BookID     int64      `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	FineAmount float64    `json:"fine_amount"`
	Status     string     `json:"status"`
	Username   *string    `json:"username,omitempty"`
	Title      *string    `json:"title,omitempty"`
	ImageURL   *string    `json:"image_url,omitempty"`
}

// 返却レスポンス
type ReturnResponse struct {
	LoanID     int64     `json:"loan_id"`
	LoanULID   string    `json:"loan_ulid"`
	BookID     int64     `json:"book_id"`
	ReturnDate time.Time `json:"return_date"`
	FineAmount float64   `json:"fine_amount"`
	Status     string    `json:"status"`
}

type ListLoansResponse struct {
	Items []LoanResponse `json:"items"`
	Total int64          `json:"total"`
}
