package refdata

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"libra-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, secret []byte) {
	h := &Handler{svc: svc}
	admin := []gin.HandlerFunc{auth.RequireAuth(secret), auth.RequireRole(auth.RoleAdmin)}

	r.GET("/authors", h.ListAuthors)
	r.POST("/authors", append(admin, h.CreateAuthor)...)
	r.PUT("/authors/:id", append(admin, h.UpdateAuthor)...)
	r.DELETE("/authors/:id", append(admin, h.DeleteAuthor)...)

	r.GET("/categories", h.ListCategories)
	r.POST("/categories", append(admin, h.CreateCategory)...)
	r.PUT("/categories/:id", append(admin, h.UpdateCategory)...)
	r.DELETE("/categories/:id", append(admin, h.DeleteCategory)...)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(status, v)
}

// ---------- authors ----------

func (h *Handler) ListAuthors(c *gin.Context) {
	res, err := h.svc.ListAuthors(c.Request.Context())
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) CreateAuthor(c *gin.Context) {
	var req CreateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.svc.CreateAuthor(c.Request.Context(), req.Name)
	respond(c, http.StatusCreated, res, err)
}

func (h *Handler) UpdateAuthor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.svc.UpdateAuthor(c.Request.Context(), id, req.Name)
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) DeleteAuthor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteAuthor(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ---------- categories ----------

func (h *Handler) ListCategories(c *gin.Context) {
	res, err := h.svc.ListCategories(c.Request.Context())
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.svc.CreateCategory(c.Request.Context(), req.Name)
	respond(c, http.StatusCreated, res, err)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.svc.UpdateCategory(c.Request.Context(), id, req.Name)
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
