package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dispatchdesk.io/internal/access"
)

type grants struct {
	db *sql.DB
}

func (s grants) UpsertDashboardGrant(ctx context.Context, g access.DashboardGrant) (access.DashboardGrant, error) {
	_, err := s.db.ExecContext(ctx, `
		insert into dashboard_access_grants(account_id, dashboard_type, access_level, is_active, granted_by, granted_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$6)
		on conflict (account_id, dashboard_type) do update
		set access_level = excluded.access_level,
			is_active = excluded.is_active,
			granted_by = excluded.granted_by,
			granted_at = excluded.granted_at,
			updated_at = excluded.updated_at`,
		g.AccountID, string(g.Dashboard), g.AccessLevel, g.IsActive, nullString(&g.GrantedBy), g.GrantedAt.UTC())
	if err != nil {
		return access.DashboardGrant{}, mapError(err)
	}
	return g, nil
}

func (s grants) HasActiveDashboard(ctx context.Context, accountID string, d access.DashboardType) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		select exists(
			select 1 from dashboard_access_grants
			where account_id = $1 and dashboard_type = $2 and is_active
		)`, accountID, string(d)).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s grants) ActiveDashboards(ctx context.Context, accountID string) ([]access.DashboardType, error) {
	rows, err := s.db.QueryContext(ctx, `
		select dashboard_type from dashboard_access_grants
		where account_id = $1 and is_active
		order by dashboard_type`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]access.DashboardType, 0)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, access.DashboardType(d))
	}
	return out, rows.Err()
}

func (s grants) SetDashboardGrantActive(ctx context.Context, accountID string, d access.DashboardType, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		update dashboard_access_grants set is_active = $3, updated_at = now()
		where account_id = $1 and dashboard_type = $2`, accountID, string(d), active)
	return requireRow(res, err)
}

func (s grants) UpsertAccessPointGrant(ctx context.Context, g access.AccessPointGrant) (access.AccessPointGrant, error) {
	actionsJSON, err := json.Marshal(actionsOrEmpty(g.AllowedActions))
	if err != nil {
		return access.AccessPointGrant{}, fmt.Errorf("encode actions: %w", err)
	}
	contextJSON := []byte("{}")
	if len(g.Context) > 0 {
		if contextJSON, err = json.Marshal(g.Context); err != nil {
			return access.AccessPointGrant{}, fmt.Errorf("encode context: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		insert into access_point_grants(account_id, dashboard_type, access_point_group, allowed_actions, context, is_active, granted_by, granted_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		on conflict (account_id, dashboard_type, access_point_group) do update
		set allowed_actions = excluded.allowed_actions,
			context = excluded.context,
			is_active = excluded.is_active,
			granted_by = excluded.granted_by,
			granted_at = excluded.granted_at,
			updated_at = excluded.updated_at`,
		g.AccountID, string(g.Dashboard), string(g.Group), actionsJSON, contextJSON, g.IsActive,
		nullString(&g.GrantedBy), g.GrantedAt.UTC())
	if err != nil {
		return access.AccessPointGrant{}, mapError(err)
	}
	return g, nil
}

func (s grants) ActiveAccessPoints(ctx context.Context, accountID string, d access.DashboardType) ([]access.AccessPointGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select access_point_group, allowed_actions, context, coalesce(granted_by, ''), granted_at
		from access_point_grants
		where account_id = $1 and dashboard_type = $2 and is_active
		order by access_point_group`, accountID, string(d))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]access.AccessPointGrant, 0)
	for rows.Next() {
		var (
			group              string
			rawActions, rawCtx []byte
		)
		g := access.AccessPointGrant{AccountID: accountID, Dashboard: d, IsActive: true}
		if err := rows.Scan(&group, &rawActions, &rawCtx, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		g.Group = access.AccessPointGroup(group)
		if len(rawActions) > 0 {
			if err := json.Unmarshal(rawActions, &g.AllowedActions); err != nil {
				return nil, fmt.Errorf("decode actions: %w", err)
			}
		}
		if len(rawCtx) > 0 {
			if err := json.Unmarshal(rawCtx, &g.Context); err != nil {
				return nil, fmt.Errorf("decode context: %w", err)
			}
		}
		g.GrantedAt = g.GrantedAt.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s grants) SetAccessPointActive(ctx context.Context, accountID string, d access.DashboardType, group access.AccessPointGroup, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		update access_point_grants set is_active = $4, updated_at = now()
		where account_id = $1 and dashboard_type = $2 and access_point_group = $3`,
		accountID, string(d), string(group), active)
	return requireRow(res, err)
}

func requireRow(res sql.Result, err error) error {
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return access.ErrNotFound
	}
	return nil
}

func actionsOrEmpty(actions []access.ActionType) []access.ActionType {
	if actions == nil {
		return []access.ActionType{}
	}
	return actions
}
