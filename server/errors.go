package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vultisig/message-board/contexthelper"
	"github.com/vultisig/message-board/storage"
)

const (
	msgMessageNotFound  = "Message does not exist."
	msgUserNotFound     = "User does not exist."
	msgDeleted          = "Successfully deleted."
	msgAuthorNotFound   = "Author does not exist."
	msgAuthorImmutable  = "Author cannot be changed."
	msgAlreadyExists    = "Already exists."
	msgInvalidBody      = "Invalid request body."
	msgInternalError    = "Internal server error."
	msgRequestCancelled = "Request cancelled."
)

type statusResponse struct {
	Message string `json:"message"`
	ID      string `json:"_id,omitempty"`
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, statusResponse{Message: message})
}

// storageError turns an error returned by storage into a response. op names
// the failed operation in logs and metrics.
func (s *Server) storageError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, statusResponse{Message: "Not found."})
	case errors.Is(err, storage.ErrAuthorNotFound):
		return c.JSON(http.StatusUnprocessableEntity, statusResponse{Message: msgAuthorNotFound})
	case errors.Is(err, storage.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, statusResponse{Message: msgAlreadyExists})
	case errors.Is(err, storage.ErrAuthorImmutable):
		return badRequest(c, msgAuthorImmutable)
	case contexthelper.IsCancellation(err):
		c.Logger().Warnf("%s cancelled, err: %s", op, err)
		return c.JSON(http.StatusRequestTimeout, statusResponse{Message: msgRequestCancelled})
	default:
		c.Logger().Errorf("fail to %s, err: %s", op, err)
		s.metrics.RecordStorageError(op)
		return c.JSON(http.StatusInternalServerError, statusResponse{Message: msgInternalError})
	}
}
