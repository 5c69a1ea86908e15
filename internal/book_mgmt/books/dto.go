package books

// ===== Requests =====

type CreateBookRequest struct {
	Title           string  `json:"title" binding:"required"`
	ISBN            *string `json:"isbn,omitempty"`
	Copies          int     `json:"copies" binding:"required"`
	PublicationYear *int    `json:"publication_year,omitempty"`
	AuthorID        *int64  `json:"author_id,omitempty"`
	CategoryID      *int64  `json:"category_id,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
}

type UpdateBookRequest struct {
	Title           *string `json:"title,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	TotalCopies     *int    `json:"total_copies,omitempty"`
	PublicationYear *int    `json:"publication_year,omitempty"`
	AuthorID        *int64  `json:"author_id,omitempty"`
	CategoryID      *int64  `json:"category_id,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// ===== Responses =====

type BookResponse struct {
	BookID          int64   `json:"book_id"`
	Title           string  `json:"title"`
	ISBN            *string `json:"isbn,omitempty"`
	AuthorID        *int64  `json:"author_id,omitempty"`
	AuthorName      *string `json:"author_name,omitempty"`
	CategoryID      *int64  `json:"category_id,omitempty"`
	TotalCopies     int     `json:"total_copies"`
	AvailableCopies int     `json:"available_copies"`
	PublicationYear *int    `json:"publication_year,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
}

type ListBooksResponse struct {
	Items []BookResponse `json:"items"`
	Total int64          `json:"total"`
}
