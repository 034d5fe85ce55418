package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vultisig/message-board/contexthelper"
	"github.com/vultisig/message-board/model"
	"github.com/vultisig/message-board/storage"
)

func (s *Server) CreateUser(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	var nu model.NewUser
	if err := c.Bind(&nu); err != nil {
		c.Logger().Error(err)
		return badRequest(c, msgInvalidBody)
	}
	nu.ID = strings.TrimSpace(nu.ID)
	if err := nu.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	user, err := nu.User()
	if err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, statusResponse{Message: msgInternalError})
	}
	created, err := s.s.CreateUser(c.Request().Context(), user)
	if err != nil {
		return s.storageError(c, "create user", err)
	}
	return c.JSON(http.StatusOK, created.Sanitized())
}

func (s *Server) GetUser(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	userID := strings.TrimSpace(c.Param("userID"))
	if userID == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	user, err := s.s.GetUser(c.Request().Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, statusResponse{Message: msgUserNotFound})
	}
	if err != nil {
		return s.storageError(c, "get user", err)
	}
	return c.JSON(http.StatusOK, user.Sanitized())
}

// ListUserMessages returns the messages written by a user, found by author
// rather than through the user's message list.
func (s *Server) ListUserMessages(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	userID := strings.TrimSpace(c.Param("userID"))
	if userID == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	if _, err := s.s.GetUser(c.Request().Context(), userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, statusResponse{Message: msgUserNotFound})
		}
		return s.storageError(c, "get user", err)
	}
	messages, err := s.s.ListMessages(c.Request().Context(), model.MessageFilter{Author: userID})
	if err != nil {
		return s.storageError(c, "list user messages", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return c.JSON(http.StatusOK, messagesResponse{Messages: messages})
}
