// README: Call store backed by PostgreSQL; transitions and fleet sync commit atomically.
package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"radar/internal/modules/fleet"
	"radar/internal/types"
)

const callColumns = `
	id, caller_phone, lat, lng, description, gender, room_number, priority,
	status, status_version,
	assigned_driver_id, assigned_driver, assigned_vehicle,
	assigned_hospital_id, assigned_hospital,
	forward_reason, forwarded_by,
	call_created_at, dispatched_at, driver_en_route_at, driver_arrived_at_caller_at,
	en_route_to_hospital_at, call_forwarded_at, arrived_at_hospital_at, completed_at`

// Store persists calls and, inside the same transaction, the driver/ambulance
// rows bound to them. A transition either fully applies (status, its
// timestamps, the audit event and the fleet sync) or not at all, so readers
// never observe a call and its driver disagreeing.
type Store struct {
	db    *pgxpool.Pool
	fleet *fleet.Store
}

func NewStore(db *pgxpool.Pool, fleetStore *fleet.Store) *Store {
	return &Store{db: db, fleet: fleetStore}
}

func (s *Store) Create(ctx context.Context, c *Call) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO emergency_calls (
			id, caller_phone, lat, lng, description, gender, room_number, priority,
			status, status_version, call_created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(c.ID), c.CallerPhone, c.Location.Lat, c.Location.Lng,
		c.Description, c.Gender, c.RoomNumber, c.Priority,
		string(c.Status), c.StatusVersion, c.CallCreatedAt,
	)
	if err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, &Event{
		CallID:     c.ID,
		FromStatus: StatusNone,
		ToStatus:   c.Status,
		ActorType:  "caller",
		CreatedAt:  c.CallCreatedAt,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Call, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+callColumns+` FROM emergency_calls WHERE id = $1`, string(id))
	c, err := scanCall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// Filter scopes a listing; zero-value lists everything.
type Filter struct {
	DriverID   *types.ID
	HospitalID *types.ID
	Statuses   []Status
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Call, error) {
	q := `SELECT ` + callColumns + ` FROM emergency_calls WHERE 1=1`
	args := []any{}
	if f.DriverID != nil {
		args = append(args, string(*f.DriverID))
		q += fmt.Sprintf(" AND assigned_driver_id = $%d", len(args))
	}
	if f.HospitalID != nil {
		args = append(args, string(*f.HospitalID))
		q += fmt.Sprintf(" AND assigned_hospital_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		in := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			in[i] = string(st)
		}
		args = append(args, in)
		q += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	q += " ORDER BY call_created_at DESC"

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Assign claims the driver and flips the call to dispatched in one
// transaction. claimed=false means the driver was no longer available;
// applied=false means the CAS on the call lost to a concurrent transition.
func (s *Store) Assign(ctx context.Context, callID types.ID, from Status, version int, d DriverAssignment) (claimed, applied bool, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx)

	claimed, err = s.fleet.ClaimAvailable(ctx, tx, d.DriverID, callID, fleet.DriverDispatched)
	if err != nil {
		return false, false, err
	}
	if !claimed {
		return false, false, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE emergency_calls
		SET status = 'dispatched',
		    status_version = status_version + 1,
		    assigned_driver_id = $3,
		    assigned_driver = $4,
		    assigned_vehicle = $5,
		    dispatched_at = NOW(),
		    driver_en_route_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $6`,
		string(callID), string(from), string(d.DriverID), d.Name, d.Vehicle, version,
	)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() != 1 {
		return true, false, nil
	}
	if err := appendEvent(ctx, tx, &Event{
		CallID:     callID,
		FromStatus: from,
		ToStatus:   StatusDispatched,
		ActorType:  "system",
		CreatedAt:  time.Now(),
	}); err != nil {
		return false, false, err
	}
	return true, true, tx.Commit(ctx)
}

// Pickup flips the call to transporting, records the hospital destination and
// mirrors the status onto the fleet.
func (s *Store) Pickup(ctx context.Context, callID types.ID, from Status, version int, driverID types.ID, hospitalID *types.ID, hospitalName string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE emergency_calls
		SET status = 'transporting',
		    status_version = status_version + 1,
		    assigned_hospital_id = $3,
		    assigned_hospital = $4,
		    driver_arrived_at_caller_at = NOW(),
		    en_route_to_hospital_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $5`,
		string(callID), string(from), idArg(hospitalID), hospitalName, version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := s.fleet.SyncActive(ctx, tx, driverID, callID, fleet.DriverTransporting); err != nil {
		return false, err
	}
	if err := appendEvent(ctx, tx, &Event{
		CallID:     callID,
		FromStatus: from,
		ToStatus:   StatusTransporting,
		ActorType:  "driver",
		ActorID:    &driverID,
		CreatedAt:  time.Now(),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Forward records the forward metadata, clears the driver assignment and
// releases the fleet pair, all in one transaction.
func (s *Store) Forward(ctx context.Context, callID types.ID, from Status, version int, reason, forwardedBy string, driverID *types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE emergency_calls
		SET status = 'forwarded',
		    status_version = status_version + 1,
		    forward_reason = $3,
		    forwarded_by = $4,
		    assigned_driver_id = NULL,
		    assigned_driver = '',
		    assigned_vehicle = '',
		    call_forwarded_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $5`,
		string(callID), string(from), reason, forwardedBy, version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if driverID != nil {
		if err := s.fleet.Release(ctx, tx, *driverID); err != nil {
			return false, err
		}
	}
	if err := appendEvent(ctx, tx, &Event{
		CallID:     callID,
		FromStatus: from,
		ToStatus:   StatusForwarded,
		ActorType:  "driver",
		ActorID:    driverID,
		CreatedAt:  time.Now(),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Complete terminates the call and releases its driver and ambulance.
func (s *Store) Complete(ctx context.Context, callID types.ID, from Status, version int, driverID *types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE emergency_calls
		SET status = 'completed',
		    status_version = status_version + 1,
		    arrived_at_hospital_at = NOW(),
		    completed_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $3`,
		string(callID), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if driverID != nil {
		if err := s.fleet.Release(ctx, tx, *driverID); err != nil {
			return false, err
		}
	}
	if err := appendEvent(ctx, tx, &Event{
		CallID:     callID,
		FromStatus: from,
		ToStatus:   StatusCompleted,
		ActorType:  "driver",
		ActorID:    driverID,
		CreatedAt:  time.Now(),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) Events(ctx context.Context, callID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, call_id, from_status, to_status, actor_type, actor_id, created_at
		FROM call_state_events
		WHERE call_id = $1
		ORDER BY id`, string(callID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.CallID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func appendEvent(ctx context.Context, tx pgx.Tx, e *Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO call_state_events (call_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.CallID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, idArg(e.ActorID), e.CreatedAt,
	)
	return err
}

func scanCall(row pgx.Row) (*Call, error) {
	var c Call
	var driverID, hospitalID *string
	var assignedDriver, assignedVehicle, assignedHospital, forwardReason, forwardedBy *string
	err := row.Scan(
		&c.ID, &c.CallerPhone, &c.Location.Lat, &c.Location.Lng,
		&c.Description, &c.Gender, &c.RoomNumber, &c.Priority,
		&c.Status, &c.StatusVersion,
		&driverID, &assignedDriver, &assignedVehicle,
		&hospitalID, &assignedHospital,
		&forwardReason, &forwardedBy,
		&c.CallCreatedAt, &c.DispatchedAt, &c.DriverEnRouteAt, &c.DriverArrivedAtCallerAt,
		&c.EnRouteToHospitalAt, &c.CallForwardedAt, &c.ArrivedAtHospitalAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		id := types.ID(*driverID)
		c.AssignedDriverID = &id
	}
	if hospitalID != nil {
		id := types.ID(*hospitalID)
		c.AssignedHospitalID = &id
	}
	c.AssignedDriver = deref(assignedDriver)
	c.AssignedVehicle = deref(assignedVehicle)
	c.AssignedHospital = deref(assignedHospital)
	c.ForwardReason = deref(forwardReason)
	c.ForwardedBy = deref(forwardedBy)
	return &c, nil
}

func idArg(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
