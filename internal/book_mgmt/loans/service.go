package loans

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strconv"
	"time"

	ulid "github.com/oklog/ulid/v2"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	NewULID(t time.Time) string
}

type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t.UTC()), entropy).String()
}

// ===== Service本体 =====

type Service struct {
	store LoanStore
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB) *Service {
	return &Service{
		store: NewStore(db),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// NewServiceWithStore は組み込みストア（MemStore等）を差し込む用
func NewServiceWithStore(store LoanStore) *Service {
	return &Service{
		store: store,
		clock: realClock{},
		id:    ulidGen{},
	}
}

// 貸出登録
// 在庫の引き当てと貸出レコードの作成はストア側で1つの原子単位として実行される。
// 在庫切れは想定内の失敗（BOOK_UNAVAILABLE）としてそのまま呼び出し元へ返す。
func (s *Service) IssueLoan(ctx context.Context, userID, bookID int64) (*LoanResponse, error) {
	if userID <= 0 {
		return nil, ErrInvalid("user_id must be > 0")
	}
	if bookID <= 0 {
		return nil, ErrInvalid("book_id must be > 0")
	}

	now := s.clock.Now()
	borrowDate := DateOf(now)

	l := &Loan{
		LoanULID:   s.id.NewULID(now),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    borrowDate.AddDate(0, 0, LoanPeriodDays),
		Status:     StatusIssued,
	}

	if err := s.store.IssueLoan(ctx, l); err != nil {
		return nil, err
	}

	resp := buildLoanResponse(l, "", "", nil)
	return &resp, nil
}

// 返却登録
// key は loan_id（数値）か loan_ulid のどちらでも良い。
func (s *Service) ReturnLoan(ctx context.Context, key string) (*ReturnResponse, error) {
	if key == "" {
		return nil, ErrInvalid("loan id or ulid is required")
	}

	now := s.clock.Now()

	var l *Loan
	var err error
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil && id > 0 {
		l, err = s.store.ReturnLoanByID(ctx, id, now)
	} else {
		l, err = s.store.ReturnLoanByULID(ctx, key, now)
	}
	if err != nil {
		return nil, err
	}

	return &ReturnResponse{
		LoanID:     l.LoanID,
		LoanULID:   l.LoanULID,
		BookID:     l.BookID,
		ReturnDate: l.ReturnDate.Time,
		FineAmount: l.FineAmount,
		Status:     l.Status,
	}, nil
}

// 貸出単一取得（ID or ULID）
func (s *Service) GetLoanByKey(ctx context.Context, key string) (*LoanResponse, error) {
	if key == "" {
		return nil, ErrInvalid("loan id or ulid is required")
	}

	var d *LoanDetail
	var err error
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil && id > 0 {
		d, err = s.store.GetLoanByID(ctx, id)
	} else {
		d, err = s.store.GetLoanByULID(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	var img *string
	if d.ImageURL.Valid {
		v := d.ImageURL.String
		img = &v
	}
	resp := buildLoanResponse(&d.Loan, d.Username, d.Title, img)
	return &resp, nil
}

// 貸出一覧
func (s *Service) ListLoans(ctx context.Context, f LoanFilter, p Page) ([]LoanResponse, int64, error) {
	details, total, err := s.store.ListLoans(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}

	result := make([]LoanResponse, 0, len(details))
	for i := range details {
		d := &details[i]
		var img *string
		if d.ImageURL.Valid {
			v := d.ImageURL.String
			img = &v
		}
		result = append(result, buildLoanResponse(&d.Loan, d.Username, d.Title, img))
	}
	return result, total, nil
}

// ヘルパー関数
func buildLoanResponse(l *Loan, username, title string, imageURL *string) LoanResponse {
	resp := LoanResponse{
		LoanID:     l.LoanID,
		LoanULID:   l.LoanULID,
		UserID:     l.UserID,
		BookID:     l.BookID,
		BorrowDate: l.BorrowDate,
		DueDate:    l.DueDate,
		FineAmount: l.FineAmount,
		Status:     l.Status,
	}
	if l.ReturnDate.Valid {
		val := l.ReturnDate.Time
		resp.ReturnDate = &val
	}
	if username != "" {
		resp.Username = &username
	}
	if title != "" {
		resp.Title = &title
	}
	resp.ImageURL = imageURL
	return resp
}
