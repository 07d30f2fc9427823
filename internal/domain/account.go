package domain

import "errors"

var ErrAccountNotFound = errors.New("account not found")

// Account is the single managed resource. ID is zero until the store assigns one.
type Account struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name" validate:"required,min=5"`
	Document string `json:"document" validate:"required,len=11"`
	Phone    string `json:"phone" validate:"required,len=17"`
}

// Patch returns a copy of a with the mutable fields taken from src.
// The id and anything else stored on a are kept.
func (a Account) Patch(src Account) Account {
	out := a
	out.Name = src.Name
	out.Document = src.Document
	out.Phone = src.Phone
	return out
}

// ValidationError reports the first field constraint an Account violates.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
