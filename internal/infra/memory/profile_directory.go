package memory

import (
	"context"

	"livetrivia/internal/domain"
)

// ProfileDirectory is a simple directory backed by an in-memory map (useful for tests/demos).
type ProfileDirectory struct {
	profiles map[string]domain.Profile
}

func NewProfileDirectory(profiles ...domain.Profile) *ProfileDirectory {
	d := &ProfileDirectory{profiles: make(map[string]domain.Profile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.UserID] = p
	}
	return d
}

func (d *ProfileDirectory) Profiles(_ context.Context, userIDs []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
