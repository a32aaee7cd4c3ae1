package ports

// CredentialPolicy validates operator input and turns secrets into storable hashes.
type CredentialPolicy interface {
	ValidateEmail(email string) bool
	ValidateInput(username, email string) error
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) bool
}
