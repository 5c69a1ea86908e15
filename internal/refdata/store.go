package refdata

import (
	"context"
	"database/sql"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// authors と categories は (id, name UNIQUE) の同型テーブルなので
// テーブル・カラム名だけ差し替えて共用する
type nameTable struct {
	table string
	idCol string
}

var (
	authorsTable    = nameTable{table: "authors", idCol: "author_id"}
	categoriesTable = nameTable{table: "categories", idCol: "category_id"}
)

// entry は name-table 1行の中立表現。handlerに出る前に Author/Category へ詰め替える
type entry struct {
	ID   int64
	Name string
}

func (s *Store) list(ctx context.Context, t nameTable) ([]entry, error) {
	q := `SELECT ` + t.idCol + `, name FROM ` + t.table + ` ORDER BY ` + t.idCol

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]entry, 0, 16)
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) getByID(ctx context.Context, t nameTable, id int64) (*entry, error) {
	q := `SELECT ` + t.idCol + `, name FROM ` + t.table + ` WHERE ` + t.idCol + ` = ?`
	var e entry
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Name); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) create(ctx context.Context, t nameTable, name string) (*entry, error) {
	q := `INSERT INTO ` + t.table + ` (name) VALUES (?)`
	r, err := s.db.ExecContext(ctx, q, name)
	if err != nil {
		return nil, err
	}
	lastID, err := r.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &entry{ID: lastID, Name: name}, nil
}

func (s *Store) update(ctx context.Context, t nameTable, id int64, name string) error {
	q := `UPDATE ` + t.table + ` SET name = ? WHERE ` + t.idCol + ` = ?`
	r, err := s.db.ExecContext(ctx, q, name, id)
	if err != nil {
		return err
	}
	aff, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DELETE: booksのFKは ON DELETE SET NULL なので参照中でも消せる
func (s *Store) delete(ctx context.Context, t nameTable, id int64) error {
	q := `DELETE FROM ` + t.table + ` WHERE ` + t.idCol + ` = ?`
	r, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	aff, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}
