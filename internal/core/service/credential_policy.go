package service

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/create-admin/internal/core/domain"
	"github.com/99minutos/create-admin/internal/metrics"
)

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = 10

// emailShape accepts local@domain.tld with no whitespace and a single '@'.
// It is a shape check only.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type credentialInput struct {
	Username string `validate:"required"`
	Email    string `validate:"emailshape"`
}

// CredentialPolicy validates operator input and hashes passwords with bcrypt.
type CredentialPolicy struct {
	cost     int
	validate *validator.Validate
}

// NewCredentialPolicy returns a policy hashing at cost. A zero cost selects
// DefaultCost; out-of-range costs are rejected by bcrypt at Hash time.
func NewCredentialPolicy(cost int) *CredentialPolicy {
	if cost == 0 {
		cost = DefaultCost
	}
	v := validator.New()
	mustRegister(v, "emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	return &CredentialPolicy{cost: cost, validate: v}
}

// mustRegister panics when tag cannot be registered; tags are static.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

// Cost returns the configured bcrypt cost.
func (p *CredentialPolicy) Cost() int {
	return p.cost
}

func (p *CredentialPolicy) ValidateEmail(email string) bool {
	return emailShape.MatchString(email)
}

// ValidateInput checks the interactively collected username and email.
func (p *CredentialPolicy) ValidateInput(username, email string) error {
	err := p.validate.Struct(credentialInput{Username: username, Email: email})
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	for _, fe := range ve {
		if fe.Field() == "Username" {
			return domain.ErrInvalidUsername
		}
	}
	return domain.ErrInvalidEmail
}

// Hash returns the bcrypt hash of plaintext. Every call uses a fresh salt.
func (p *CredentialPolicy) Hash(plaintext string) (string, error) {
	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	metrics.HashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrHashing, err)
	}
	return string(hash), nil
}

func (p *CredentialPolicy) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
