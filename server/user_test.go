package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/message-board/model"
	"github.com/vultisig/message-board/storage"
)

func TestCreateUser(t *testing.T) {
	st := storage.NewMemoryStorage()
	s, _ := newTestServer(t, st)

	rec := doRequest(s, http.MethodPost, "/users", `{"_id":"`+sampleUserID+`","username":"myuser","password":"mypassword"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"_id":"`+sampleUserID+`","username":"myuser","messages":[]}`, rec.Body.String())
	stored, err := st.GetUser(context.Background(), sampleUserID)
	require.NoError(t, err)
	assert.True(t, stored.CheckPassword("mypassword"))
}

func TestCreateUserRejected(t *testing.T) {
	s, _ := newTestServer(t, seededStorage(t))

	rec := doRequest(s, http.MethodPost, "/users", `{"username":"myuser","password":"x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(s, http.MethodPost, "/users", `{"username":"someone"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password is required", decode[statusResponse](t, rec).Message)

	rec = doRequest(s, http.MethodPost, "/users", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUser(t *testing.T) {
	s, _ := newTestServer(t, seededStorage(t))

	rec := doRequest(s, http.MethodGet, "/users/"+sampleUserID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.User](t, rec)
	assert.Equal(t, "myuser", got.Username)
	assert.Equal(t, []string{sampleMessageID}, got.Messages)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doRequest(s, http.MethodGet, "/users/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgUserNotFound, decode[statusResponse](t, rec).Message)
}

func TestListUserMessages(t *testing.T) {
	st := seededStorage(t)
	s, _ := newTestServer(t, st)
	_, err := st.CreateUser(context.Background(), model.User{ID: "u2", Username: "other"})
	require.NoError(t, err)
	_, err = st.CreateMessage(context.Background(), model.Message{ID: "m2", Title: "t", Body: "b", Author: "u2"})
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/users/"+sampleUserID+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[messagesResponse](t, rec)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, sampleMessageID, got.Messages[0].ID)

	rec = doRequest(s, http.MethodGet, "/users/missing/messages", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
