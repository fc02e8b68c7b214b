package catalogstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/satcatalog/ingest/internal/db"
)

// LaunchStore provides database operations for launches.
type LaunchStore struct {
	dbtx db.DBTX
}

// NewLaunchStore creates a LaunchStore backed by dbtx.
func NewLaunchStore(dbtx db.DBTX) *LaunchStore {
	return &LaunchStore{dbtx: dbtx}
}

const launchColumns = `id, cospar_id, mission_name, launch_date, launch_site, rocket_type, created_at`

func scanLaunchRow(row pgx.Row) (Launch, error) {
	var l Launch
	err := row.Scan(&l.ID, &l.CosparID, &l.MissionName, &l.LaunchDate, &l.LaunchSite, &l.RocketType, &l.CreatedAt)
	return l, err
}

// GetByCospar returns a launch by its COSPAR international designator.
func (s *LaunchStore) GetByCospar(ctx context.Context, cosparID string) (Launch, error) {
	query := `SELECT ` + launchColumns + ` FROM launches WHERE cospar_id = $1`
	row := s.dbtx.QueryRow(ctx, query, cosparID)
	return scanLaunchRow(row)
}

// GetOrCreate returns the launch for cosparID, creating it if it does not
// exist. Two writers racing to create the same launch are tolerated: the
// loser's INSERT is absorbed by ON CONFLICT DO NOTHING and it falls through
// to a plain read, rather than erroring.
func (s *LaunchStore) GetOrCreate(ctx context.Context, cosparID string, missionName, launchSite, rocketType *string) (Launch, error) {
	insert := `
		INSERT INTO launches (cospar_id, mission_name, launch_site, rocket_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cospar_id) DO NOTHING
		RETURNING ` + launchColumns
	row := s.dbtx.QueryRow(ctx, insert, cosparID, missionName, launchSite, rocketType)
	l, err := scanLaunchRow(row)
	if err == nil {
		return l, nil
	}
	if err != pgx.ErrNoRows {
		return Launch{}, fmt.Errorf("creating launch %q: %w", cosparID, err)
	}

	l, err = s.GetByCospar(ctx, cosparID)
	if err != nil {
		return Launch{}, fmt.Errorf("fetching launch %q after conflict: %w", cosparID, err)
	}
	return l, nil
}
