package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/create-admin/internal/core/domain"
	"github.com/99minutos/create-admin/internal/core/ports"
	"github.com/99minutos/create-admin/internal/metrics"
)

// Outcome is the terminal state of a provisioning run.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeFailedValidation  Outcome = "failed_validation"
	OutcomeFailedDuplicate   Outcome = "failed_duplicate"
	OutcomeFailedPersistence Outcome = "failed_persistence"
)

// Request carries values supplied on the command line. Only a complete
// request skips interactive collection; a partial one is ignored entirely.
type Request struct {
	Username string
	Email    string
	Password string
}

func (r Request) Complete() bool {
	return r.Username != "" && r.Email != "" && r.Password != ""
}

// Result reports how a run ended. Account is set only on OutcomeCompleted.
type Result struct {
	Outcome Outcome
	Account *domain.Account
}

// Provisioner creates administrator accounts. Each Run is single-shot.
type Provisioner struct {
	directory ports.UserDirectory
	policy    ports.CredentialPolicy
	prompter  ports.Prompter
	secrets   ports.SecretEntry
	panelName string
	newID     func() string
	log       zerolog.Logger
}

func NewProvisioner(
	directory ports.UserDirectory,
	policy ports.CredentialPolicy,
	prompter ports.Prompter,
	secrets ports.SecretEntry,
	panelName string,
	log zerolog.Logger,
) *Provisioner {
	return &Provisioner{
		directory: directory,
		policy:    policy,
		prompter:  prompter,
		secrets:   secrets,
		panelName: panelName,
		newID:     uuid.NewString,
		log:       log,
	}
}

// Run collects input, checks uniqueness, hashes the password and persists the
// account. The returned error is nil only for OutcomeCompleted.
func (p *Provisioner) Run(ctx context.Context, req Request) (Result, error) {
	res, err := p.run(ctx, req)
	metrics.RunsTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, err
}

func (p *Provisioner) run(ctx context.Context, req Request) (Result, error) {
	in, err := p.collect(ctx, req)
	if err != nil {
		return Result{Outcome: OutcomeFailedValidation}, err
	}

	usernameTaken, err := p.directory.UsernameTaken(ctx, in.Username)
	if err != nil {
		p.log.Error().Err(err).Msg("Error reading users")
		return Result{Outcome: OutcomeFailedPersistence}, err
	}
	emailTaken, err := p.directory.EmailTaken(ctx, in.Email)
	if err != nil {
		p.log.Error().Err(err).Msg("Error reading users")
		return Result{Outcome: OutcomeFailedPersistence}, err
	}
	if usernameTaken || emailTaken {
		p.log.Error().
			Str("username", in.Username).
			Str("email", in.Email).
			Msg("User already exists!")
		return Result{Outcome: OutcomeFailedDuplicate}, domain.ErrUserExists
	}

	hash, err := p.policy.Hash(in.Password)
	if err != nil {
		p.log.Error().Err(err).Msg("Error creating user")
		return Result{Outcome: OutcomeFailedPersistence}, err
	}

	account := domain.NewAdmin(p.newID(), in.Username, in.Email, hash)
	if err := p.directory.UpsertAppend(ctx, account); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			p.log.Error().Str("username", in.Username).Msg("User already exists!")
			return Result{Outcome: OutcomeFailedDuplicate}, err
		}
		p.log.Error().Err(err).Msg("Error creating user")
		return Result{Outcome: OutcomeFailedPersistence}, err
	}

	p.log.Info().
		Str("user_id", account.ID).
		Str("username", account.Username).
		Msg("Done! User created.")
	return Result{Outcome: OutcomeCompleted, Account: &account}, nil
}

// collect returns req unchanged when complete. The command-line path does not
// check the email shape; only interactively entered input is validated.
func (p *Provisioner) collect(ctx context.Context, req Request) (Request, error) {
	if req.Complete() {
		return req, nil
	}

	p.log.Info().Msgf("Create a new *admin* user for the %s:", p.panelName)
	p.log.Info().Msg("You can make regular users from the admin -> users page.")

	username, err := p.prompter.ReadLine(ctx, "Username: ")
	if err != nil {
		p.log.Error().Err(err).Msg("Error reading username")
		return Request{}, err
	}
	email, err := p.prompter.ReadLine(ctx, "Email: ")
	if err != nil {
		p.log.Error().Err(err).Msg("Error reading email")
		return Request{}, err
	}

	if err := p.policy.ValidateInput(username, email); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidUsername):
			p.log.Error().Msg("Invalid username!")
		default:
			p.log.Error().Msg("Invalid email!")
		}
		return Request{}, err
	}

	password, err := p.secrets.Acquire(ctx, "")
	if err != nil {
		p.log.Error().Err(err).Msg("Error reading password")
		return Request{}, err
	}

	return Request{Username: username, Email: email, Password: password}, nil
}
