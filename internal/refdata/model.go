package refdata

type Author struct {
	AuthorID int64  `json:"id"`
	Name     string `json:"name"`
}

type Category struct {
	CategoryID int64  `json:"id"`
	Name       string `json:"name"`
}

type CreateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateNameRequest struct {
	Name string `json:"name" binding:"required"`
}
