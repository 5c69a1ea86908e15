package loans

import (
	"errors"
	"fmt"
	"net/http"
)

// ===== Error model =====

type Code string

const (
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeBookUnavailable   Code = "BOOK_UNAVAILABLE"   // 在庫切れ（想定内の競合）
	CodeLoanNotActive     Code = "LOAN_NOT_ACTIVE"    // 返却済み・存在しない貸出
	CodeInventoryOverflow Code = "INVENTORY_OVERFLOW" // 在庫カウンタ破壊（不変条件違反）
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"  // DB側の一時障害。再試行可
	CodeInternal          Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ErrBookUnavailable() *APIError {
	return &APIError{Code: CodeBookUnavailable, Message: "no available copies"}
}

func ErrLoanNotActive() *APIError {
	return &APIError{Code: CodeLoanNotActive, Message: "loan not found or already returned"}
}

func ErrInventoryOverflow(msg string) *APIError {
	return &APIError{Code: CodeInventoryOverflow, Message: msg}
}

func ErrStoreUnavailable(msg string) *APIError {
	return &APIError{Code: CodeStoreUnavailable, Message: msg}
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeBookUnavailable, CodeLoanNotActive:
			return http.StatusConflict
		case CodeStoreUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
