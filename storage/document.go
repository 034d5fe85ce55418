package storage

import "github.com/vultisig/message-board/model"

// userDocument is the persisted form of a user. Unlike model.User it
// serializes the password hash.
type userDocument struct {
	ID       string   `json:"_id" bson:"_id"`
	Username string   `json:"username" bson:"username"`
	Password string   `json:"password" bson:"password"`
	Messages []string `json:"messages" bson:"messages"`
}

func storedUser(u model.User) userDocument {
	messages := u.Messages
	if messages == nil {
		messages = []string{}
	}
	return userDocument{
		ID:       u.ID,
		Username: u.Username,
		Password: u.Password,
		Messages: messages,
	}
}

func (d userDocument) user() model.User {
	messages := d.Messages
	if messages == nil {
		messages = []string{}
	}
	return model.User{
		ID:       d.ID,
		Username: d.Username,
		Password: d.Password,
		Messages: messages,
	}
}
