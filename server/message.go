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

type messagesResponse struct {
	Messages []model.Message `json:"messages"`
}

type messageResponse struct {
	Message *model.Message `json:"message"`
}

// ListMessages returns every message.
func (s *Server) ListMessages(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	messages, err := s.s.ListMessages(c.Request().Context(), model.MessageFilter{})
	if err != nil {
		return s.storageError(c, "list messages", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return c.JSON(http.StatusOK, messagesResponse{Messages: messages})
}

func (s *Server) GetMessage(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	messageID := strings.TrimSpace(c.Param("messageID"))
	if messageID == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	message, err := s.s.GetMessage(c.Request().Context(), messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, statusResponse{Message: msgMessageNotFound})
	}
	if err != nil {
		return s.storageError(c, "get message", err)
	}
	return c.JSON(http.StatusOK, message)
}

// CreateMessage saves a new message and registers it with its author.
// The author must already exist.
func (s *Server) CreateMessage(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	var m model.Message
	if err := c.Bind(&m); err != nil {
		c.Logger().Error(err)
		return badRequest(c, msgInvalidBody)
	}
	m.ID = strings.TrimSpace(m.ID)
	m.Author = strings.TrimSpace(m.Author)
	if err := m.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	c.Logger().Debug("create message for author ", m.Author)
	created, err := s.s.CreateMessage(c.Request().Context(), m)
	if err != nil {
		return s.storageError(c, "create message", err)
	}
	return c.JSON(http.StatusOK, created)
}

// UpdateMessage replaces the fields present in the body and returns the updated message.
func (s *Server) UpdateMessage(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	messageID := strings.TrimSpace(c.Param("messageID"))
	if messageID == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	var patch model.MessagePatch
	if err := c.Bind(&patch); err != nil {
		c.Logger().Error(err)
		return badRequest(c, msgInvalidBody)
	}
	if err := patch.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	updated, err := s.s.UpdateMessage(c.Request().Context(), messageID, patch)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, statusResponse{Message: msgMessageNotFound})
	}
	if err != nil {
		return s.storageError(c, "update message", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: updated})
}

// DeleteMessage deletes a message. Deleting a message that does not exist is not an error.
func (s *Server) DeleteMessage(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	messageID := strings.TrimSpace(c.Param("messageID"))
	if messageID == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	err := s.s.DeleteMessage(c.Request().Context(), messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusOK, statusResponse{Message: msgMessageNotFound})
	}
	if err != nil {
		return s.storageError(c, "delete message", err)
	}
	return c.JSON(http.StatusOK, statusResponse{Message: msgDeleted, ID: messageID})
}
