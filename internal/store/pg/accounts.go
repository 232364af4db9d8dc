package pg

import (
	"context"
	"database/sql"
	"time"

	"dispatchdesk.io/internal/access"
)

const accountColumns = `id, external_ref, email, primary_role, status, status_reason,
	suspension_expires_at, failed_login_attempts, account_locked_until,
	activated_by, activated_at, last_login_at, deleted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (access.Account, error) {
	var (
		acc                               access.Account
		ref, reason, activatedBy          sql.NullString
		expires, lockedUntil, activatedAt sql.NullTime
		lastLogin, deletedAt              sql.NullTime
		role, status                      string
	)
	if err := row.Scan(&acc.ID, &ref, &acc.Email, &role, &status, &reason,
		&expires, &acc.FailedLoginAttempts, &lockedUntil,
		&activatedBy, &activatedAt, &lastLogin, &deletedAt, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return access.Account{}, mapError(err)
	}
	acc.PrimaryRole = access.Role(role)
	acc.Status = access.Status(status)
	acc.ExternalRef = stringFrom(ref)
	acc.StatusReason = stringFrom(reason)
	acc.ActivatedBy = stringFrom(activatedBy)
	acc.SuspensionExpiresAt = timeFrom(expires)
	acc.AccountLockedUntil = timeFrom(lockedUntil)
	acc.ActivatedAt = timeFrom(activatedAt)
	acc.LastLoginAt = timeFrom(lastLogin)
	acc.DeletedAt = timeFrom(deletedAt)
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

type accounts struct {
	db *sql.DB
}

func (s accounts) Create(ctx context.Context, acc access.Account) (access.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into accounts(id, external_ref, email, primary_role, status, status_reason,
			suspension_expires_at, failed_login_attempts, account_locked_until,
			activated_by, activated_at, last_login_at, deleted_at, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		returning `+accountColumns,
		acc.ID, nullString(acc.ExternalRef), acc.Email, string(acc.PrimaryRole), string(acc.Status),
		nullString(acc.StatusReason), nullTime(acc.SuspensionExpiresAt), acc.FailedLoginAttempts,
		nullTime(acc.AccountLockedUntil), nullString(acc.ActivatedBy), nullTime(acc.ActivatedAt),
		nullTime(acc.LastLoginAt), nullTime(acc.DeletedAt), acc.CreatedAt.UTC(), acc.UpdatedAt.UTC())
	return scanAccount(row)
}

func (s accounts) Get(ctx context.Context, id string) (access.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id))
}

func (s accounts) FindByExternalRef(ctx context.Context, ref string) (access.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where external_ref = $1`, ref))
}

func (s accounts) FindByEmail(ctx context.Context, email string) (access.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where email = $1`, email))
}

func (s accounts) FindByEmailFold(ctx context.Context, email string) (access.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		select `+accountColumns+` from accounts
		where lower(trim(email)) = lower(trim($1))
		order by created_at, id
		limit 1`, email))
}

func (s accounts) Update(ctx context.Context, id string, fn func(*access.Account) error) (access.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return access.Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	acc, err := scanAccount(tx.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1 for update`, id))
	if err != nil {
		return access.Account{}, err
	}
	if err := fn(&acc); err != nil {
		return access.Account{}, err
	}
	updated, err := scanAccount(tx.QueryRowContext(ctx, `
		update accounts set
			external_ref = $2, email = $3, primary_role = $4, status = $5, status_reason = $6,
			suspension_expires_at = $7, failed_login_attempts = $8, account_locked_until = $9,
			activated_by = $10, activated_at = $11, last_login_at = $12, updated_at = $13
		where id = $1
		returning `+accountColumns,
		id, nullString(acc.ExternalRef), acc.Email, string(acc.PrimaryRole), string(acc.Status),
		nullString(acc.StatusReason), nullTime(acc.SuspensionExpiresAt), acc.FailedLoginAttempts,
		nullTime(acc.AccountLockedUntil), nullString(acc.ActivatedBy), nullTime(acc.ActivatedAt),
		nullTime(acc.LastLoginAt), acc.UpdatedAt.UTC()))
	if err != nil {
		return access.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return access.Account{}, err
	}
	return updated, nil
}

func (s accounts) ReactivateExpiredSuspension(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set status = 'ACTIVE', status_reason = null, suspension_expires_at = null,
			failed_login_attempts = 0, updated_at = $2
		where id = $1 and status = 'SUSPENDED'
			and suspension_expires_at is not null and suspension_expires_at <= $2`, id, now.UTC())
	return affected(res, err)
}

func (s accounts) ReleaseExpiredLock(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set status = 'ACTIVE', account_locked_until = null, failed_login_attempts = 0, updated_at = $2
		where id = $1 and status = 'LOCKED'
			and account_locked_until is not null and account_locked_until <= $2`, id, now.UTC())
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s accounts) ListExpiredSuspensions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.listIDs(ctx, `
		select id from accounts
		where status = 'SUSPENDED' and suspension_expires_at is not null and suspension_expires_at <= $1
		order by suspension_expires_at, id
		limit $2`, now, limit)
}

func (s accounts) ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.listIDs(ctx, `
		select id from accounts
		where status = 'LOCKED' and account_locked_until is not null and account_locked_until <= $1
		order by account_locked_until, id
		limit $2`, now, limit)
}

func (s accounts) listIDs(ctx context.Context, query string, now time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
