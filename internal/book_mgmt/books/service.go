package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
	"golang.org/x/text/unicode/norm"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service { return &Service{db: db, store: NewStore(db)} }

func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	if strings.TrimSpace(in.Title) == "" {
		return BookResponse{}, ErrInvalid("title is required")
	}
	if in.Copies < 0 {
		return BookResponse{}, ErrInvalid("copies must be >= 0")
	}

	b := &Book{
		Title:           strings.TrimSpace(in.Title),
		TotalCopies:     in.Copies,
		AvailableCopies: in.Copies, // 新規登録時は全冊貸出可能
	}
	b.ISBN = toNullString(in.ISBN)
	b.ImageURL = toNullString(in.ImageURL)
	if in.PublicationYear != nil {
		b.PublicationYear = sql.NullInt64{Int64: int64(*in.PublicationYear), Valid: true}
	}
	if in.AuthorID != nil {
		b.AuthorID = sql.NullInt64{Int64: *in.AuthorID, Valid: true}
	}
	if in.CategoryID != nil {
		b.CategoryID = sql.NullInt64{Int64: *in.CategoryID, Valid: true}
	}

	if err := s.store.InsertBook(ctx, b); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062: // duplicate key
				return BookResponse{}, ErrConflict("isbn already exists")
			case 1452: // foreign key constraint fails
				return BookResponse{}, ErrInvalid("invalid author_id or category_id")
			}
		}
		return BookResponse{}, err
	}

	return s.GetBook(ctx, b.BookID)
}

func (s *Service) GetBook(ctx context.Context, id int64) (BookResponse, error) {
	r, err := s.store.GetBookByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BookResponse{}, ErrNotFound("book not found")
		}
		return BookResponse{}, err
	}
	return buildBookResponse(r), nil
}

func (s *Service) ListBooks(ctx context.Context, q BookSearchQuery, p Page) ([]BookResponse, int64, error) {
	// 検索語はNFC正規化してからLIKEに渡す（合成済み・分解済みの揺れを吸収）
	q.Keyword = norm.NFC.String(strings.TrimSpace(q.Keyword))

	rows, total, err := s.store.ListBooks(ctx, q, p)
	if err != nil {
		return nil, 0, err
	}
	items := make([]BookResponse, 0, len(rows))
	for i := range rows {
		items = append(items, buildBookResponse(&rows[i]))
	}
	return items, total, nil
}

func (s *Service) UpdateBook(ctx context.Context, id int64, in UpdateBookRequest) (BookResponse, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return BookResponse{}, ErrInvalid("title must not be empty")
	}
	if in.TotalCopies != nil && *in.TotalCopies < 0 {
		return BookResponse{}, ErrInvalid("total_copies must be >= 0")
	}

	if err := s.store.UpdateBookTx(ctx, id, in); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BookResponse{}, ErrNotFound("book not found")
		}
		if errors.Is(err, errShrinkBelowCheckedOut) {
			return BookResponse{}, ErrConflict("total_copies cannot go below checked-out count")
		}
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062:
				return BookResponse{}, ErrConflict("isbn already exists")
			case 1452:
				return BookResponse{}, ErrInvalid("invalid author_id or category_id")
			}
		}
		return BookResponse{}, err
	}
	return s.GetBook(ctx, id)
}

// ヘルパー関数

func buildBookResponse(r *bookRow) BookResponse {
	resp := BookResponse{
		BookID:          r.BookID,
		Title:           r.Title,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
	}
	if r.ISBN.Valid {
		v := r.ISBN.String
		resp.ISBN = &v
	}
	if r.AuthorID.Valid {
		v := r.AuthorID.Int64
		resp.AuthorID = &v
	}
	if r.AuthorName.Valid {
		v := r.AuthorName.String
		resp.AuthorName = &v
	}
	if r.CategoryID.Valid {
		v := r.CategoryID.Int64
		resp.CategoryID = &v
	}
	if r.PublicationYear.Valid {
		v := int(r.PublicationYear.Int64)
		resp.PublicationYear = &v
	}
	if r.ImageURL.Valid {
		v := r.ImageURL.String
		resp.ImageURL = &v
	}
	return resp
}

func toNullString(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
