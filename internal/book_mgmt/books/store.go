package books

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"libra-backend/internal/platform/db"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) InsertBook(ctx context.Context, b *Book) error {
	const q = `
	INSERT INTO books
	(title, isbn, author_id, category_id, total_copies, available_copies, publication_year, image_url)
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q,
		b.Title, b.ISBN, b.AuthorID, b.CategoryID,
		b.TotalCopies, b.AvailableCopies, b.PublicationYear, b.ImageURL,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	b.BookID = id
	return nil
}

const bookSelect = `
	SELECT
	b.book_id, b.title, b.isbn, b.author_id, b.category_id,
	b.total_copies, b.available_copies, b.publication_year, b.image_url,
	a.name
	FROM books b
	LEFT JOIN authors a ON a.author_id = b.author_id`

func (s *Store) GetBookByID(ctx context.Context, id int64) (*bookRow, error) {
	var r bookRow
	err := s.db.QueryRowContext(ctx, bookSelect+` WHERE b.book_id = ?`, id).Scan(
		&r.BookID, &r.Title, &r.ISBN, &r.AuthorID, &r.CategoryID,
		&r.TotalCopies, &r.AvailableCopies, &r.PublicationYear, &r.ImageURL,
		&r.AuthorName,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListBooks(ctx context.Context, q BookSearchQuery, p Page) ([]bookRow, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}

	if q.Keyword != "" {
		where.WriteString(` AND (b.title LIKE ? OR a.name LIKE ?)`)
		kw := "%" + q.Keyword + "%"
		args = append(args, kw, kw)
	}
	if q.CategoryID != nil {
		where.WriteString(` AND b.category_id = ?`)
		args = append(args, *q.CategoryID)
	}
	if q.AvailableOnly {
		where.WriteString(` AND b.available_copies > 0`)
	}

	if p.Limit <= 0 {
		p.Limit = 12
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	// ページと総件数を同一スナップショットで読む
	var out []bookRow
	var total int64
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		listQ := bookSelect + where.String() + ` ORDER BY b.book_id LIMIT ? OFFSET ?`
		rows, err := tx.QueryContext(ctx, listQ, append(args, p.Limit, p.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r bookRow
			if err := rows.Scan(
				&r.BookID, &r.Title, &r.ISBN, &r.AuthorID, &r.CategoryID,
				&r.TotalCopies, &r.AvailableCopies, &r.PublicationYear, &r.ImageURL,
				&r.AuthorName,
			); err != nil {
				return err
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		cntQ := `SELECT COUNT(*) FROM books b LEFT JOIN authors a ON a.author_id = b.author_id` + where.String()
		return tx.QueryRowContext(ctx, cntQ, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateBookTx は書誌情報と冊数をトランザクション内で更新する。
// total_copies の変更は行ロックの下で available_copies に差分反映し、
// 貸出中の冊数を下回る縮小は拒否する（available < 0 になるため）。
func (s *Store) UpdateBookTx(ctx context.Context, id int64, in UpdateBookRequest) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var total, available int
		err := tx.QueryRowContext(ctx,
			`SELECT total_copies, available_copies FROM books WHERE book_id = ? FOR UPDATE`, id,
		).Scan(&total, &available)
		if err != nil {
			return err
		}

		set := strings.Builder{}
		args := []any{}
		add := func(col string, v any) {
			if set.Len() > 0 {
				set.WriteString(", ")
			}
			set.WriteString(col + " = ?")
			args = append(args, v)
		}

		if in.Title != nil {
			add("title", *in.Title)
		}
		if in.ISBN != nil {
			add("isbn", *in.ISBN)
		}
		if in.PublicationYear != nil {
			add("publication_year", *in.PublicationYear)
		}
		if in.AuthorID != nil {
			add("author_id", *in.AuthorID)
		}
		if in.CategoryID != nil {
			add("category_id", *in.CategoryID)
		}
		if in.ImageURL != nil {
			add("image_url", *in.ImageURL)
		}
		if in.TotalCopies != nil {
			newTotal := *in.TotalCopies
			delta := newTotal - total
			newAvailable := available + delta
			if newTotal < 0 || newAvailable < 0 {
				return errShrinkBelowCheckedOut
			}
			add("total_copies", newTotal)
			add("available_copies", newAvailable)
		}

		if set.Len() == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `UPDATE books SET `+set.String()+` WHERE book_id = ?`, append(args, id)...)
		return err
	})
}

var errShrinkBelowCheckedOut = errors.New("total_copies below checked-out count")
