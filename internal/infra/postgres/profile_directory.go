package postgres

import (
	"context"
	"fmt"

	"livetrivia/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ProfileDirectory reads the externally managed profiles table.
type ProfileDirectory struct {
	pool *pgxpool.Pool
}

func NewProfileDirectory(pool *pgxpool.Pool) *ProfileDirectory {
	return &ProfileDirectory{pool: pool}
}

func (d *ProfileDirectory) Profiles(ctx context.Context, userIDs []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := d.pool.Query(ctx,
		`SELECT user_id, username, avatar_key, quip FROM profiles WHERE user_id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.AvatarKey, &p.Quip); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}
