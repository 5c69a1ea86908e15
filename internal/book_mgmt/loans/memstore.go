package loans

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// MemStore は LoanStore のメモリ実装。
// DBを持たない組み込み構成とテスト用で、本（book_id）ごとの mutex で
// 在庫カウンタへの操作を直列化する。別の本どうしはブロックしない。
type MemStore struct {
	mu     sync.Mutex // guards maps and nextID
	locks  map[int64]*sync.Mutex
	books  map[int64]*memBook
	loans  map[int64]*Loan
	byULID map[string]int64
	nextID int64

	// INSERT相当の失敗を注入するテスト用フック。nil以外を返すと
	// 貸出作成は失敗し、在庫減算も巻き戻る
	insertHook func() error
}

type memBook struct {
	total     int
	available int
}

func NewMemStore() *MemStore {
	return &MemStore{
		locks:  make(map[int64]*sync.Mutex),
		books:  make(map[int64]*memBook),
		loans:  make(map[int64]*Loan),
		byULID: make(map[string]int64),
	}
}

// AddBook は在庫を登録する（available = total = copies）
func (m *MemStore) AddBook(bookID int64, copies int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[bookID] = &memBook{total: copies, available: copies}
}

// Copies は検証用に (available, total) を返す
func (m *MemStore) Copies(bookID int64) (available, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return 0, 0
	}
	return b.available, b.total
}

func (m *MemStore) bookLock(bookID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.locks[bookID]
	if !ok {
		lk = &sync.Mutex{}
		m.locks[bookID] = lk
	}
	return lk
}

func (m *MemStore) IssueLoan(ctx context.Context, l *Loan) error {
	lk := m.bookLock(l.BookID)
	lk.Lock()
	defer lk.Unlock()

	m.mu.Lock()
	b, ok := m.books[l.BookID]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound("book not found")
	}
	if b.available <= 0 {
		return ErrBookUnavailable()
	}

	if m.insertHook != nil {
		if err := m.insertHook(); err != nil {
			// 減算前に失敗させる＝MySQL実装のROLLBACKと同じ観測結果になる
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b.available--
	m.nextID++
	l.LoanID = m.nextID
	l.Status = StatusIssued
	l.FineAmount = 0
	cp := *l
	m.loans[l.LoanID] = &cp
	m.byULID[l.LoanULID] = l.LoanID
	return nil
}

func (m *MemStore) ReturnLoanByID(ctx context.Context, loanID int64, returnedOn time.Time) (*Loan, error) {
	return m.execReturn(loanID, returnedOn)
}

func (m *MemStore) ReturnLoanByULID(ctx context.Context, loanULID string, returnedOn time.Time) (*Loan, error) {
	m.mu.Lock()
	id, ok := m.byULID[loanULID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrLoanNotActive()
	}
	return m.execReturn(id, returnedOn)
}

func (m *MemStore) execReturn(loanID int64, returnedOn time.Time) (*Loan, error) {
	m.mu.Lock()
	l, ok := m.loans[loanID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrLoanNotActive()
	}

	lk := m.bookLock(l.BookID)
	lk.Lock()
	defer lk.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// ロック獲得までの間に別callerが返却済みにした可能性があるので再確認
	if l.Status != StatusIssued {
		return nil, ErrLoanNotActive()
	}
	b, ok := m.books[l.BookID]
	if !ok {
		return nil, ErrNotFound("book not found")
	}
	if b.available >= b.total {
		return nil, ErrInventoryOverflow("available_copies would exceed total_copies")
	}

	l.FineAmount = OverdueFine(l.DueDate, returnedOn, FinePerDay)
	l.ReturnDate = sql.NullTime{Time: DateOf(returnedOn), Valid: true}
	l.Status = StatusReturned
	b.available++

	cp := *l
	return &cp, nil
}

func (m *MemStore) GetLoanByID(ctx context.Context, loanID int64) (*LoanDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[loanID]
	if !ok {
		return nil, ErrNotFound("loan not found")
	}
	return &LoanDetail{Loan: *l}, nil
}

func (m *MemStore) GetLoanByULID(ctx context.Context, loanULID string) (*LoanDetail, error) {
	m.mu.Lock()
	id, ok := m.byULID[loanULID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound("loan not found")
	}
	return m.GetLoanByID(ctx, id)
}

func (m *MemStore) ListLoans(ctx context.Context, f LoanFilter, p Page) ([]LoanDetail, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []LoanDetail
	for _, l := range m.loans {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		if f.BookID != nil && l.BookID != *f.BookID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		out = append(out, LoanDetail{Loan: *l})
	}
	// メモリ実装はテスト・組み込み用なのでページングは適用しない
	return out, int64(len(out)), nil
}
