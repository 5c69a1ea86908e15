package loans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

// LoanStore は貸出・返却の原子的実行の契約。
// MySQL実装（行ロック）と組み込み用のメモリ実装（本ごとのmutex）がある。
type LoanStore interface {
	// IssueLoan は在庫1冊の引き当てと貸出レコード作成を1トランザクションで行う。
	// 在庫0なら CodeBookUnavailable、在庫減算と INSERT は必ず一緒にコミットされる。
	IssueLoan(ctx context.Context, l *Loan) error
	// ReturnLoan は貸出のクローズ・罰金確定・在庫返却を1トランザクションで行う。
	// 対象が存在しない／返却済みなら CodeLoanNotActive で、状態は一切変更しない。
	ReturnLoanByID(ctx context.Context, loanID int64, returnedOn time.Time) (*Loan, error)
	ReturnLoanByULID(ctx context.Context, loanULID string, returnedOn time.Time) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*LoanDetail, error)
	GetLoanByULID(ctx context.Context, loanULID string) (*LoanDetail, error)
	ListLoans(ctx context.Context, f LoanFilter, p Page) ([]LoanDetail, int64, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// lock inventory row (books) by book id
func lockBookRow(ctx context.Context, tx *sql.Tx, bookID int64) (available, total int, err error) {
	const q = `SELECT available_copies, total_copies FROM books WHERE book_id = ? FOR UPDATE`
	row := tx.QueryRowContext(ctx, q, bookID)
	if err = row.Scan(&available, &total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotFound("book not found")
		}
		return 0, 0, err
	}
	return available, total, nil
}

func updateAvailableCopies(ctx context.Context, tx *sql.Tx, bookID int64, delta int) error {
	const q = `UPDATE books SET available_copies = available_copies + ? WHERE book_id = ?`
	res, err := tx.ExecContext(ctx, q, delta, bookID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrInternal("failed to update books.available_copies")
	}
	return nil
}

// ---- Transactional Methods ----

func (s *Store) IssueLoan(ctx context.Context, l *Loan) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return ErrStoreUnavailable("begin tx: " + err.Error())
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// 1. Lock book row
	available, _, err := lockBookRow(ctx, tx, l.BookID)
	if err != nil {
		return err
	}

	// 2. Stock check
	if available <= 0 {
		err = ErrBookUnavailable()
		return err
	}

	// 3. Decrement stock
	if err = updateAvailableCopies(ctx, tx, l.BookID, -1); err != nil {
		return err
	}

	// 4. Insert loan
	// INSERTが失敗した場合は在庫減算ごとROLLBACKされる（部分適用の禁止）
	const q = `
	INSERT INTO loans
	(loan_ulid, user_id, book_id, borrow_date, due_date, fine_amount, status)
	VALUES
	(?, ?, ?, ?, ?, 0.00, 'issued')`

	res, err := tx.ExecContext(ctx, q,
		l.LoanULID,
		l.UserID,
		l.BookID,
		l.BorrowDate,
		l.DueDate,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1452 { // foreign key constraint fails
			err = ErrInvalid("unknown user_id")
		}
		return err
	}
	id, _ := res.LastInsertId()
	l.LoanID = id
	l.Status = StatusIssued
	l.FineAmount = 0

	if err = tx.Commit(); err != nil {
		err = ErrStoreUnavailable("commit: " + err.Error())
		return err
	}
	return nil
}

func (s *Store) ReturnLoanByID(ctx context.Context, loanID int64, returnedOn time.Time) (*Loan, error) {
	return s.execReturnLoan(ctx, `WHERE loan_id = ?`, loanID, returnedOn)
}

func (s *Store) ReturnLoanByULID(ctx context.Context, loanULID string, returnedOn time.Time) (*Loan, error) {
	return s.execReturnLoan(ctx, `WHERE loan_ulid = ?`, loanULID, returnedOn)
}

func (s *Store) execReturnLoan(ctx context.Context, where string, key any, returnedOn time.Time) (l *Loan, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, ErrStoreUnavailable("begin tx: " + err.Error())
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// 1. Lock loan row
	// 未知のIDと返却済みはどちらも LOAN_NOT_ACTIVE（二重返却は在庫を増やさない）
	q := `
	SELECT loan_id, loan_ulid, user_id, book_id, borrow_date, due_date, fine_amount, status
	FROM loans ` + where + ` FOR UPDATE`

	var m Loan
	err = tx.QueryRowContext(ctx, q, key).Scan(
		&m.LoanID, &m.LoanULID, &m.UserID, &m.BookID,
		&m.BorrowDate, &m.DueDate, &m.FineAmount, &m.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrLoanNotActive()
		}
		return nil, err
	}
	if m.Status != StatusIssued {
		err = ErrLoanNotActive()
		return nil, err
	}

	// 2. Lock book row & overflow check
	available, total, err := lockBookRow(ctx, tx, m.BookID)
	if err != nil {
		return nil, err
	}
	if available >= total {
		// available == total で返却が来るのはカウンタ破壊か二重返却。握りつぶさない
		log.Printf("[ERROR] inventory overflow: book_id=%d available=%d total=%d loan_id=%d",
			m.BookID, available, total, m.LoanID)
		err = ErrInventoryOverflow(fmt.Sprintf("available_copies would exceed total_copies for book %d", m.BookID))
		return nil, err
	}

	// 3. Fine & close loan
	// fine_amount は返却確定の瞬間に固定され、以後再計算されない
	fine := OverdueFine(m.DueDate, returnedOn, FinePerDay)
	retDate := DateOf(returnedOn)

	const updQ = `
	UPDATE loans
	SET return_date = ?, fine_amount = ?, status = 'returned'
	WHERE loan_id = ?`
	res, err := tx.ExecContext(ctx, updQ, retDate, fine, m.LoanID)
	if err != nil {
		return nil, err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		err = ErrInternal("failed to update loans row")
		return nil, err
	}

	// 4. Increment stock（3と4は必ず一緒にコミット）
	if err = updateAvailableCopies(ctx, tx, m.BookID, +1); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = ErrStoreUnavailable("commit: " + err.Error())
		return nil, err
	}

	m.ReturnDate = sql.NullTime{Time: retDate, Valid: true}
	m.FineAmount = fine
	m.Status = StatusReturned
	return &m, nil
}

// ---- Queries ----

const loanDetailSelect = `
	SELECT
	l.loan_id, l.loan_ulid, l.user_id, l.book_id, l.borrow_date, l.due_date,
	l.return_date, l.fine_amount, l.status,
	u.username, b.title, b.image_url
	FROM loans l
	JOIN users u ON u.user_id = l.user_id
	JOIN books b ON b.book_id = l.book_id`

func (s *Store) GetLoanByID(ctx context.Context, loanID int64) (*LoanDetail, error) {
	return s.getLoan(ctx, loanDetailSelect+` WHERE l.loan_id = ?`, loanID)
}

func (s *Store) GetLoanByULID(ctx context.Context, loanULID string) (*LoanDetail, error) {
	return s.getLoan(ctx, loanDetailSelect+` WHERE l.loan_ulid = ?`, loanULID)
}

func (s *Store) getLoan(ctx context.Context, q string, key any) (*LoanDetail, error) {
	var d LoanDetail
	err := s.db.QueryRowContext(ctx, q, key).Scan(
		&d.LoanID, &d.LoanULID, &d.UserID, &d.BookID, &d.BorrowDate, &d.DueDate,
		&d.ReturnDate, &d.FineAmount, &d.Status,
		&d.Username, &d.Title, &d.ImageURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound("loan not found")
		}
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListLoans(ctx context.Context, f LoanFilter, p Page) ([]LoanDetail, int64, error) {
	where, args := buildLoanWhere(f)

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := loanDetailSelect + where + fmt.Sprintf(` ORDER BY l.borrow_date %s, l.loan_id %s LIMIT ? OFFSET ?`, order, order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []LoanDetail
	for rows.Next() {
		var d LoanDetail
		if err := rows.Scan(
			&d.LoanID, &d.LoanULID, &d.UserID, &d.BookID, &d.BorrowDate, &d.DueDate,
			&d.ReturnDate, &d.FineAmount, &d.Status,
			&d.Username, &d.Title, &d.ImageURL,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cntQ := `SELECT COUNT(*) FROM loans l` + where
	if err := s.db.QueryRowContext(ctx, cntQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildLoanWhere(f LoanFilter) (string, []any) {
	sb := strings.Builder{}
	sb.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.UserID != nil {
		sb.WriteString(` AND l.user_id = ?`)
		args = append(args, *f.UserID)
	}
	if f.BookID != nil {
		sb.WriteString(` AND l.book_id = ?`)
		args = append(args, *f.BookID)
	}
	if f.Status != nil {
		sb.WriteString(` AND l.status = ?`)
		args = append(args, *f.Status)
	}
	return sb.String(), args
}
