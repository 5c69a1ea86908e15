package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
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

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalid("name is required")
	}
	return name, nil
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

// ===== generic name-table ops =====

func (s *Service) list(ctx context.Context, t nameTable) ([]entry, error) {
	return s.store.list(ctx, t)
}

func (s *Service) get(ctx context.Context, t nameTable, id int64) (*entry, error) {
	e, err := s.store.getByID(ctx, t, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound(t.table + " entry not found")
		}
		return nil, ErrInternal("failed to get " + t.table + " entry")
	}
	return e, nil
}

func (s *Service) create(ctx context.Context, t nameTable, name string) (*entry, error) {
	n, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	e, err := s.store.create(ctx, t, n)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflict("name already exists")
		}
		return nil, ErrInternal("failed to create " + t.table + " entry")
	}
	return e, nil
}

func (s *Service) update(ctx context.Context, t nameTable, id int64, name string) (*entry, error) {
	n, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := s.store.update(ctx, t, id, n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound(t.table + " entry not found")
		}
		if isDuplicateKey(err) {
			return nil, ErrConflict("name already exists")
		}
		return nil, ErrInternal("failed to update " + t.table + " entry")
	}
	return s.get(ctx, t, id)
}

func (s *Service) remove(ctx context.Context, t nameTable, id int64) error {
	if err := s.store.delete(ctx, t, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound(t.table + " entry not found")
		}
		return ErrInternal("failed to delete " + t.table + " entry")
	}
	return nil
}

// ===== authors =====

func (s *Service) ListAuthors(ctx context.Context) ([]Author, error) {
	items, err := s.list(ctx, authorsTable)
	if err != nil {
		return nil, err
	}
	res := make([]Author, 0, len(items))
	for _, e := range items {
		res = append(res, Author{AuthorID: e.ID, Name: e.Name})
	}
	return res, nil
}

func (s *Service) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	e, err := s.get(ctx, authorsTable, id)
	if err != nil {
		return nil, err
	}
	return &Author{AuthorID: e.ID, Name: e.Name}, nil
}

func (s *Service) CreateAuthor(ctx context.Context, name string) (*Author, error) {
	e, err := s.create(ctx, authorsTable, name)
	if err != nil {
		return nil, err
	}
	return &Author{AuthorID: e.ID, Name: e.Name}, nil
}

func (s *Service) UpdateAuthor(ctx context.Context, id int64, name string) (*Author, error) {
	e, err := s.update(ctx, authorsTable, id, name)
	if err != nil {
		return nil, err
	}
	return &Author{AuthorID: e.ID, Name: e.Name}, nil
}

func (s *Service) DeleteAuthor(ctx context.Context, id int64) error {
	return s.remove(ctx, authorsTable, id)
}

// ===== categories =====

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	items, err := s.list(ctx, categoriesTable)
	if err != nil {
		return nil, err
	}
	res := make([]Category, 0, len(items))
	for _, e := range items {
		res = append(res, Category{CategoryID: e.ID, Name: e.Name})
	}
	return res, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	e, err := s.get(ctx, categoriesTable, id)
	if err != nil {
		return nil, err
	}
	return &Category{CategoryID: e.ID, Name: e.Name}, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	e, err := s.create(ctx, categoriesTable, name)
	if err != nil {
		return nil, err
	}
	return &Category{CategoryID: e.ID, Name: e.Name}, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, name string) (*Category, error) {
	e, err := s.update(ctx, categoriesTable, id, name)
	if err != nil {
		return nil, err
	}
	return &Category{CategoryID: e.ID, Name: e.Name}, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.remove(ctx, categoriesTable, id)
}
