package model

import "strings"

// Message is a titled post written by a user.
type Message struct {
	ID     string `json:"_id,omitempty" bson:"_id"`
	Title  string `json:"title" bson:"title"`
	Body   string `json:"body" bson:"body"`
	Author string `json:"author" bson:"author"`
}

// Validate reports which required field is missing, if any.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.Title) == "":
		return ErrMissingField("title")
	case strings.TrimSpace(m.Body) == "":
		return ErrMissingField("body")
	case strings.TrimSpace(m.Author) == "":
		return ErrMissingField("author")
	}
	return nil
}

// MessagePatch holds the fields of an update request. Nil fields are left untouched.
type MessagePatch struct {
	Title  *string `json:"title,omitempty"`
	Body   *string `json:"body,omitempty"`
	Author *string `json:"author,omitempty"`
}

// Apply returns m with the patched fields replaced.
func (p MessagePatch) Apply(m Message) Message {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Body != nil {
		m.Body = *p.Body
	}
	if p.Author != nil {
		m.Author = *p.Author
	}
	return m
}

// Validate rejects patches that would blank a required field.
func (p MessagePatch) Validate() error {
	switch {
	case p.Title != nil && strings.TrimSpace(*p.Title) == "":
		return ErrMissingField("title")
	case p.Body != nil && strings.TrimSpace(*p.Body) == "":
		return ErrMissingField("body")
	case p.Author != nil && strings.TrimSpace(*p.Author) == "":
		return ErrMissingField("author")
	}
	return nil
}

// ChangesAuthor reports whether applying the patch would move m to another author.
func (p MessagePatch) ChangesAuthor(m Message) bool {
	return p.Author != nil && *p.Author != m.Author
}

// MessageFilter narrows ListMessages. Empty fields match everything.
type MessageFilter struct {
	Title  string
	Author string
}

func (f MessageFilter) Match(m Message) bool {
	if f.Title != "" && m.Title != f.Title {
		return false
	}
	if f.Author != "" && m.Author != f.Author {
		return false
	}
	return true
}
