package loans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テスト用の固定時計。カーソルを進めて延滞を再現する
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advanceDays(d int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.AddDate(0, 0, d)
}

func newTestService(store LoanStore, now time.Time) (*Service, *fakeClock) {
	clk := &fakeClock{now: now}
	return &Service{store: store, clock: clk, id: ulidGen{}}, clk
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	require.ErrorAs(t, err, &api)
	return api.Code
}

func TestIssueLoanValidation(t *testing.T) {
	svc, _ := newTestService(NewMemStore(), date(2024, time.June, 1))

	_, err := svc.IssueLoan(context.Background(), 0, 3)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	_, err = svc.IssueLoan(context.Background(), 7, -1)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(3, 2)
	svc, _ := newTestService(store, date(2024, time.June, 1))

	res, err := svc.IssueLoan(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, res.Status)
	assert.Equal(t, date(2024, time.June, 1), res.BorrowDate)
	assert.Equal(t, date(2024, time.June, 15), res.DueDate)
	assert.NotEmpty(t, res.LoanULID)

	available, total := store.Copies(3)
	assert.Equal(t, 1, available)
	assert.Equal(t, 2, total)

	// 同日に返却: 罰金なし、在庫は元に戻る
	ret, err := svc.ReturnLoan(ctx, res.LoanULID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, ret.Status)
	assert.Equal(t, 0.00, ret.FineAmount)
	assert.Equal(t, date(2024, time.June, 1), ret.ReturnDate)

	available, _ = store.Copies(3)
	assert.Equal(t, 2, available)
}

func TestOverdueReturnChargesFine(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 1)
	svc, clk := newTestService(store, date(2024, time.January, 1))

	res, err := svc.IssueLoan(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 15), res.DueDate)

	// 期限の4日後に返却 → 4.00
	clk.advanceDays(18)
	ret, err := svc.ReturnLoan(ctx, res.LoanULID)
	require.NoError(t, err)
	assert.InDelta(t, 4.00, ret.FineAmount, 1e-9)
}

func TestIssueLoanUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 0)
	svc, _ := newTestService(store, date(2024, time.June, 1))

	_, err := svc.IssueLoan(ctx, 7, 1)
	assert.Equal(t, CodeBookUnavailable, apiCode(t, err))

	available, _ := store.Copies(1)
	assert.Equal(t, 0, available)
}

func TestConcurrentIssueNoOversell(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 1)
	svc, _ := newTestService(store, date(2024, time.June, 1))

	const callers = 16
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.IssueLoan(ctx, userID, 1)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	success, unavailable := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case apiCode(t, err) == CodeBookUnavailable:
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// 在庫1冊に対し成功はちょうど1回、残りは全員 BOOK_UNAVAILABLE
	assert.Equal(t, 1, success)
	assert.Equal(t, callers-1, unavailable)

	available, total := store.Copies(1)
	assert.Equal(t, 0, available)
	assert.Equal(t, 1, total)
}

func TestConcurrentIssueAndReturnKeepsBounds(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 5)
	svc, _ := newTestService(store, date(2024, time.June, 1))

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var issued []string

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			res, err := svc.IssueLoan(ctx, userID, 1)
			if err == nil {
				mu.Lock()
				issued = append(issued, res.LoanULID)
				mu.Unlock()
			}
		}(int64(i + 1))
	}
	wg.Wait()

	require.Len(t, issued, 5)
	available, total := store.Copies(1)
	assert.Equal(t, 0, available)
	assert.Equal(t, 5, total)

	// 全部並行で返却しても total を超えない
	for _, ulid := range issued {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := svc.ReturnLoan(ctx, key)
			assert.NoError(t, err)
		}(ulid)
	}
	wg.Wait()

	available, total = store.Copies(1)
	assert.Equal(t, 5, available)
	assert.Equal(t, 5, total)
}

func TestReturnIsGuardedAgainstDoubleCredit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 2)
	svc, _ := newTestService(store, date(2024, time.June, 1))

	res, err := svc.IssueLoan(ctx, 7, 1)
	require.NoError(t, err)
	available, _ := store.Copies(1)
	require.Equal(t, 1, available)

	_, err = svc.ReturnLoan(ctx, res.LoanULID)
	require.NoError(t, err)

	// 2回目の返却はエラーで、在庫は増えない
	_, err = svc.ReturnLoan(ctx, res.LoanULID)
	assert.Equal(t, CodeLoanNotActive, apiCode(t, err))

	available, _ = store.Copies(1)
	assert.Equal(t, 2, available)
}

func TestReturnUnknownLoan(t *testing.T) {
	svc, _ := newTestService(NewMemStore(), date(2024, time.June, 1))

	_, err := svc.ReturnLoan(context.Background(), "01JUNKJUNKJUNKJUNKJUNKJUNK")
	assert.Equal(t, CodeLoanNotActive, apiCode(t, err))

	_, err = svc.ReturnLoan(context.Background(), "9999")
	assert.Equal(t, CodeLoanNotActive, apiCode(t, err))
}

func TestIssueRollsBackCounterOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 3)
	store.insertHook = func() error { return errors.New("forced insert failure") }
	svc, _ := newTestService(store, date(2024, time.June, 1))

	_, err := svc.IssueLoan(ctx, 7, 1)
	require.Error(t, err)

	// 貸出レコードが作れなかったら在庫も消費されていないこと
	available, _ := store.Copies(1)
	assert.Equal(t, 3, available)

	store.insertHook = nil
	_, err = svc.IssueLoan(ctx, 7, 1)
	assert.NoError(t, err)
	available, _ = store.Copies(1)
	assert.Equal(t, 2, available)
}

func TestListLoansFiltersByUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddBook(1, 5)
	svc, _ := newTestService(store, date(2024, time.June, 1))

	for _, uid := range []int64{7, 7, 8} {
		_, err := svc.IssueLoan(ctx, uid, 1)
		require.NoError(t, err)
	}

	uid := int64(7)
	items, total, err := svc.ListLoans(ctx, LoanFilter{UserID: &uid}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, it := range items {
		assert.Equal(t, int64(7), it.UserID)
	}
}
