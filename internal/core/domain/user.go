package domain

import "errors"

// Account models an administrator provisioned into the panel's user store.
// JSON names match the records the panel reads from the users collection.
type Account struct {
	ID             string   `json:"userId"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	CredentialHash string   `json:"password"`
	AccessTo       []string `json:"accessTo"`
	IsAdmin        bool     `json:"admin"`
	IsVerified     bool     `json:"verified"`
}

// NewAdmin returns a verified admin account with an empty access list.
func NewAdmin(id, username, email, credentialHash string) Account {
	return Account{
		ID:             id,
		Username:       username,
		Email:          email,
		CredentialHash: credentialHash,
		AccessTo:       []string{},
		IsAdmin:        true,
		IsVerified:     true,
	}
}

var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUserExists       = errors.New("user already exists")
	ErrHashing          = errors.New("password hashing failed")
	ErrPersistence      = errors.New("user directory unavailable")
	ErrDirectoryMissing = errors.New("users collection does not exist")
	ErrWriteConflict    = errors.New("users collection changed concurrently")
	ErrInterrupted      = errors.New("input interrupted")
)
