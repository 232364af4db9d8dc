package access

import (
	"context"
	"errors"
	"strings"
)

// Resolver maps a verified caller identity onto an Account.
type Resolver struct {
	accounts AccountStore
}

// NewResolver returns a Resolver over accounts.
func NewResolver(accounts AccountStore) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve looks the caller up by external reference first and falls back to
// email, exact match before case-insensitive. A storage failure at any step
// aborts resolution; it is never treated as a miss.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (Account, error) {
	if ref := strings.TrimSpace(id.ExternalRef); ref != "" {
		acc, err := r.accounts.FindByExternalRef(ctx, ref)
		switch {
		case err == nil:
			return acc, nil
		case !errors.Is(err, ErrNotFound):
			return Account{}, infra("resolve by external ref", err)
		}
	}

	email := NormalizeEmail(id.Email)
	if email == "" {
		return Account{}, ErrNotFound
	}
	acc, err := r.accounts.FindByEmail(ctx, email)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, infra("resolve by email", err)
	}
	acc, err = r.accounts.FindByEmailFold(ctx, email)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, infra("resolve by email fold", err)
	}
	return Account{}, ErrNotFound
}
