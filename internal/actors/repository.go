package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retrouvio/retrouvio/internal/perm"
)

// ErrNotFound indicates that the requested actor does not exist.
var ErrNotFound = errors.New("actors: not found")

// Repository provides PostgreSQL backed persistence for the actor directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const actorColumns = `id, email, name, role, status, permissions, created_at, updated_at`

// Get fetches one actor by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Actor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM admin_actors WHERE id = $1`, id)
	actor, err := scanActor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrNotFound
		}
		return Actor{}, err
	}
	return actor, nil
}

// List returns all actors ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Actor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+actorColumns+` FROM admin_actors ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActors(rows)
}

// ListByRoles returns active actors holding one of the given roles.
func (r *Repository) ListByRoles(ctx context.Context, roles []perm.Role) ([]Actor, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+actorColumns+`
FROM admin_actors WHERE role = ANY($1) AND status = 'active' ORDER BY created_at`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActors(rows)
}

// ListIDsByRoles returns the ids of active actors holding one of the given
// roles; used for broadcast target resolution.
func (r *Repository) ListIDsByRoles(ctx context.Context, roles []perm.Role) ([]uuid.UUID, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM admin_actors WHERE role = ANY($1) AND status = 'active'`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePermissions replaces the stored permission set for an actor. Returns
// ErrNotFound when the actor does not exist.
func (r *Repository) UpdatePermissions(ctx context.Context, id uuid.UUID, perms perm.PermissionSet) error {
	payload, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("actors: marshal permissions: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE admin_actors SET permissions = $2, updated_at = NOW() WHERE id = $1`, id, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectActors(rows pgx.Rows) ([]Actor, error) {
	var actors []Actor
	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actors, nil
}

func scanActor(row pgx.Row) (Actor, error) {
	var (
		actor    Actor
		role     string
		status   string
		rawPerms []byte
	)
	if err := row.Scan(&actor.ID, &actor.Email, &actor.Name, &role, &status, &rawPerms, &actor.CreatedAt, &actor.UpdatedAt); err != nil {
		return Actor{}, err
	}
	actor.Role = perm.Role(role)
	actor.Status = perm.Status(status)
	if len(rawPerms) > 0 {
		if err := json.Unmarshal(rawPerms, &actor.Permissions); err != nil {
			return Actor{}, fmt.Errorf("actors: decode permissions: %w", err)
		}
	}
	return actor, nil
}
