package books

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// バリデーションはストアに触れる前に弾かれる想定（db nil でOK）
func TestCreateBookValidation(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	_, err := svc.CreateBook(ctx, CreateBookRequest{Title: "   ", Copies: 1})
	requireAPICode(t, err, CodeInvalidArgument)

	_, err = svc.CreateBook(ctx, CreateBookRequest{Title: "Dune", Copies: -1})
	requireAPICode(t, err, CodeInvalidArgument)
}

func TestUpdateBookValidation(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	empty := "  "
	_, err := svc.UpdateBook(ctx, 1, UpdateBookRequest{Title: &empty})
	requireAPICode(t, err, CodeInvalidArgument)

	neg := -3
	_, err = svc.UpdateBook(ctx, 1, UpdateBookRequest{TotalCopies: &neg})
	requireAPICode(t, err, CodeInvalidArgument)
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, toHTTPStatus(ErrInvalid("x")))
	assert.Equal(t, 404, toHTTPStatus(ErrNotFound("x")))
	assert.Equal(t, 409, toHTTPStatus(ErrConflict("x")))
	assert.Equal(t, 500, toHTTPStatus(ErrInternal("x")))
	assert.Equal(t, 500, toHTTPStatus(errors.New("plain")))
}

func requireAPICode(t *testing.T, err error, want Code) {
	t.Helper()
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, want, api.Code)
}
