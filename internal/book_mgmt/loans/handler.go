package loans

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"libra-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, secret []byte) {
	h := &Handler{svc: svc}
	authed := auth.RequireAuth(secret)

	// POST /loans （貸出）
	r.POST("/loans", authed, h.IssueLoan)
	// POST /loans/:loan_key/return （返却）
	r.POST("/loans/:loan_key/return", authed, h.ReturnLoan)
	// GET /loans （一覧。ダッシュボード用）
	r.GET("/loans", authed, h.ListLoans)
	// GET /loans/:loan_key （ID or ULID 指定）
	r.GET("/loans/:loan_key", authed, h.GetLoan)
}

// ---------- handlers ----------

func (h *Handler) IssueLoan(c *gin.Context) {
	var req IssueLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing book_id"))
		return
	}

	userID := callerUserID(c)
	// 他ユーザー指定はadminのみ
	if req.UserID > 0 && req.UserID != userID {
		if callerRole(c) != auth.RoleAdmin {
			c.JSON(http.StatusForbidden, errorBody(CodeInvalidArgument, "only admin can issue for another user"))
			return
		}
		userID = req.UserID
	}

	res, err := h.svc.IssueLoan(c.Request.Context(), userID, req.BookID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	c.Header("Location", "/loans/"+res.LoanULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ReturnLoan(c *gin.Context) {
	res, err := h.svc.ReturnLoan(c.Request.Context(), c.Param("loan_key"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetLoan(c *gin.Context) {
	res, err := h.svc.GetLoanByKey(c.Request.Context(), c.Param("loan_key"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListLoans(c *gin.Context) {
	f := LoanFilter{}
	if v := c.Query("status"); v == StatusIssued || v == StatusReturned {
		f.Status = &v
	}
	if v := c.Query("book_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.BookID = &id
		}
	}

	// 一般メンバーは自分の貸出しか見えない。adminは user_id で絞り込み可
	if callerRole(c) == auth.RoleAdmin {
		if v := c.Query("user_id"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				f.UserID = &id
			}
		}
	} else {
		uid := callerUserID(c)
		f.UserID = &uid
	}

	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}

	items, total, err := h.svc.ListLoans(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, ListLoansResponse{Items: items, Total: total})
}

// ---------- helpers ----------

func callerUserID(c *gin.Context) int64 {
	v, ok := c.Get(auth.CtxUserIDKey)
	if !ok {
		return 0
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func callerRole(c *gin.Context) string {
	v, ok := c.Get(auth.CtxRoleKey)
	if !ok {
		return ""
	}
	role, _ := v.(string)
	return role
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
