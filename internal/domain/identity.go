package domain

import "strings"

// UserID identifies an authenticated caller (the subject of the bearer token).
// Ownership checks compare UserID values, never raw strings from requests.
type UserID string

// Equal reports whether two identities refer to the same user. Surrounding
// whitespace from token claims is ignored.
func (u UserID) Equal(other UserID) bool {
	a, b := strings.TrimSpace(string(u)), strings.TrimSpace(string(other))
	return a != "" && a == b
}

// IsZero reports whether the identity is empty.
func (u UserID) IsZero() bool {
	return strings.TrimSpace(string(u)) == ""
}

func (u UserID) String() string { return string(u) }
