package books

import "database/sql"

// Book は books テーブルの1行を表す。
// available_copies は貸出・返却エンジンだけが変更する。
// total_copies の変更（管理者による冊数調整）は差分を available にも反映する。
type Book struct {
	BookID          int64
	Title           string
	ISBN            sql.NullString
	AuthorID        sql.NullInt64
	CategoryID      sql.NullInt64
	TotalCopies     int
	AvailableCopies int
	PublicationYear sql.NullInt64
	ImageURL        sql.NullString
}

// 一覧取得用。authors を JOIN した行
type bookRow struct {
	Book
	AuthorName sql.NullString
}

// 検索条件
type BookSearchQuery struct {
	Keyword       string // title / author name の部分一致
	CategoryID    *int64
	AvailableOnly bool
}

type Page struct {
	Limit  int
	Offset int
}
