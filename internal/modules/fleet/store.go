// README: Fleet store backed by PostgreSQL; sync methods run inside a caller's tx.
package fleet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"radar/internal/types"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx, so the call module can
// apply driver/ambulance sync inside its own transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Pool exposes the underlying pool for plain (non-tx) operations.
func (s *Store) Pool() DB { return s.db }

func (s *Store) CreateDriver(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, phone, ambulance_id, status, lat, lng,
			assigned_call_id, device_token, last_status_updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(d.ID), d.Name, d.Phone, idPtr(d.AmbulanceID), string(d.Status),
		latPtr(d.CurrentLocation), lngPtr(d.CurrentLocation),
		idPtr(d.AssignedCallID), d.DeviceToken, d.LastStatusUpdatedAt, d.CreatedAt,
	)
	return err
}

func (s *Store) GetDriver(ctx context.Context, db DB, id types.ID) (*Driver, error) {
	row := db.QueryRow(ctx, `
		SELECT id, name, phone, ambulance_id, status, lat, lng,
		       assigned_call_id, device_token, last_status_updated_at, created_at
		FROM drivers
		WHERE id = $1`, string(id),
	)
	return scanDriver(row)
}

func (s *Store) ListDrivers(ctx context.Context) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, ambulance_id, status, lat, lng,
		       assigned_call_id, device_token, last_status_updated_at, created_at
		FROM drivers
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateAmbulance(ctx context.Context, a *Ambulance) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ambulances (id, plate, type, capacity, provider, paramedics,
			status, current_call_id, driver_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(a.ID), a.Plate, a.Type, a.Capacity, a.Provider, a.Paramedics,
		string(a.Status), idPtr(a.CurrentCallID), idPtr(a.DriverID), a.CreatedAt,
	)
	return err
}

func (s *Store) GetAmbulance(ctx context.Context, id types.ID) (*Ambulance, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, plate, type, capacity, provider, paramedics,
		       status, current_call_id, driver_id, created_at
		FROM ambulances
		WHERE id = $1`, string(id),
	)
	var a Ambulance
	var currentCallID, driverID *string
	err := row.Scan(&a.ID, &a.Plate, &a.Type, &a.Capacity, &a.Provider, &a.Paramedics,
		&a.Status, &currentCallID, &driverID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CurrentCallID = toID(currentCallID)
	a.DriverID = toID(driverID)
	return &a, nil
}

// ClaimAvailable binds a call to the driver iff the driver is still
// available. The status guard gives compare-and-swap semantics: two calls
// racing for the same driver cannot both win.
func (s *Store) ClaimAvailable(ctx context.Context, db DB, driverID, callID types.ID, status DriverStatus) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE drivers
		SET status = $2,
		    assigned_call_id = $3,
		    last_status_updated_at = NOW()
		WHERE id = $1 AND status = 'available'`,
		string(driverID), string(status), string(callID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	return true, s.syncAmbulance(ctx, db, driverID, &callID, status)
}

// SyncActive mirrors an active call status onto the driver and its ambulance.
func (s *Store) SyncActive(ctx context.Context, db DB, driverID, callID types.ID, status DriverStatus) error {
	_, err := db.Exec(ctx, `
		UPDATE drivers
		SET status = $2,
		    assigned_call_id = $3,
		    last_status_updated_at = NOW()
		WHERE id = $1`,
		string(driverID), string(status), string(callID),
	)
	if err != nil {
		return err
	}
	return s.syncAmbulance(ctx, db, driverID, &callID, status)
}

// Release returns the driver and its ambulance to available with no call
// reference.
func (s *Store) Release(ctx context.Context, db DB, driverID types.ID) error {
	_, err := db.Exec(ctx, `
		UPDATE drivers
		SET status = 'available',
		    assigned_call_id = NULL,
		    last_status_updated_at = NOW()
		WHERE id = $1`,
		string(driverID),
	)
	if err != nil {
		return err
	}
	return s.syncAmbulance(ctx, db, driverID, nil, DriverAvailable)
}

func (s *Store) syncAmbulance(ctx context.Context, db DB, driverID types.ID, callID *types.ID, status DriverStatus) error {
	_, err := db.Exec(ctx, `
		UPDATE ambulances
		SET status = $2,
		    current_call_id = $3
		WHERE driver_id = $1`,
		string(driverID), string(status), idPtr(callID),
	)
	return err
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var ambulanceID, assignedCallID *string
	var lat, lng *float64
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &ambulanceID, &d.Status, &lat, &lng,
		&assignedCallID, &d.DeviceToken, &d.LastStatusUpdatedAt, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.AmbulanceID = toID(ambulanceID)
	d.AssignedCallID = toID(assignedCallID)
	if lat != nil && lng != nil {
		d.CurrentLocation = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &d, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toID(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

func latPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lat
}

func lngPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lng
}
