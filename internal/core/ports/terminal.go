package ports

import "context"

// Prompter reads a single visible line of operator input.
type Prompter interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// SecretEntry acquires a password. A non-empty preset is returned unchanged;
// otherwise the operator is prompted until two masked entries match.
type SecretEntry interface {
	Acquire(ctx context.Context, preset string) (string, error)
}
