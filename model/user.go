package model

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User owns messages. Messages holds message IDs, most recent first.
type User struct {
	ID       string   `json:"_id,omitempty" bson:"_id"`
	Username string   `json:"username" bson:"username"`
	Password string   `json:"-" bson:"password"`
	Messages []string `json:"messages" bson:"messages"`
}

// NewUser is the payload accepted when registering a user.
type NewUser struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (u NewUser) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrMissingField("username")
	}
	if u.Password == "" {
		return ErrMissingField("password")
	}
	return nil
}

// User hashes the password and returns the user to persist.
func (u NewUser) User() (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("fail to hash password, err: %w", err)
	}
	return User{
		ID:       u.ID,
		Username: strings.TrimSpace(u.Username),
		Password: string(hash),
		Messages: []string{},
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// PrependMessage puts id at the front of the user's message list.
func (u *User) PrependMessage(id string) {
	u.Messages = append([]string{id}, u.Messages...)
}

// RemoveMessage drops every occurrence of id from the user's message list.
func (u *User) RemoveMessage(id string) {
	kept := u.Messages[:0]
	for _, m := range u.Messages {
		if m != id {
			kept = append(kept, m)
		}
	}
	u.Messages = kept
	u.ensureMessages()
}

func (u *User) ensureMessages() {
	if u.Messages == nil {
		u.Messages = []string{}
	}
}

// Sanitized returns a copy of u that is safe to hand out: no password hash and a non-nil message list.
func (u User) Sanitized() User {
	u.Password = ""
	u.Messages = append([]string{}, u.Messages...)
	return u
}
