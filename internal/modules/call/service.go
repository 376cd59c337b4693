// README: Call lifecycle service; every transition is CAS-guarded and published to the bus.
package call

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"radar/internal/bus"
	"radar/internal/modules/matching"
	"radar/internal/types"
)

var (
	ErrNotFound          = errors.New("call not found")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrConflict          = errors.New("call changed concurrently, retry")
	ErrDriverUnavailable = errors.New("driver is not available")
	ErrBadRequest        = errors.New("invalid request")
)

// CallStore is what the service needs from persistence. *Store satisfies it.
type CallStore interface {
	Create(ctx context.Context, c *Call) error
	Get(ctx context.Context, id types.ID) (*Call, error)
	List(ctx context.Context, f Filter) ([]*Call, error)
	Assign(ctx context.Context, callID types.ID, from Status, version int, d DriverAssignment) (claimed, applied bool, err error)
	Pickup(ctx context.Context, callID types.ID, from Status, version int, driverID types.ID, hospitalID *types.ID, hospitalName string) (bool, error)
	Forward(ctx context.Context, callID types.ID, from Status, version int, reason, forwardedBy string, driverID *types.ID) (bool, error)
	Complete(ctx context.Context, callID types.ID, from Status, version int, driverID *types.ID) (bool, error)
	Events(ctx context.Context, callID types.ID) ([]Event, error)
}

// HospitalMatcher picks the transport destination at pickup time.
type HospitalMatcher interface {
	NearestHospital(ctx context.Context, origin types.Point) (matching.HospitalMatch, bool, error)
}

// DriverAssignment carries the driver identity stamped onto a dispatched call.
type DriverAssignment struct {
	DriverID types.ID
	Name     string
	Vehicle  string
}

type Service struct {
	store     CallStore
	hospitals HospitalMatcher
	events    *bus.Bus[*Call]
	log       *logrus.Logger
}

func NewService(store CallStore, hospitals HospitalMatcher, events *bus.Bus[*Call], log *logrus.Logger) *Service {
	return &Service{store: store, hospitals: hospitals, events: events, log: log}
}

type CreateCommand struct {
	CallerPhone string
	Location    types.Point
	Description string
	Gender      string
	RoomNumber  string
	Priority    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Call, error) {
	// caller contact is optional; someone else may be reporting for the patient
	if !cmd.Location.Valid() {
		return nil, ErrBadRequest
	}
	c := &Call{
		ID:            newID(),
		CallerPhone:   cmd.CallerPhone,
		Location:      cmd.Location,
		Description:   cmd.Description,
		Gender:        cmd.Gender,
		RoomNumber:    cmd.RoomNumber,
		Priority:      cmd.Priority,
		Status:        StatusPending,
		StatusVersion: 0,
		CallCreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"call_id": c.ID, "caller": c.CallerPhone}).Info("emergency call created")
	s.publish(c)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Call, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Call, error) {
	return s.store.List(ctx, f)
}

// CallActive reports whether the call is still in a dispatch-active status.
// Missing calls count as inactive so stale driver rows can be reconciled.
func (s *Service) CallActive(ctx context.Context, id types.ID) (bool, error) {
	c, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.Status.Active(), nil
}

type AssignCommand struct {
	CallID types.ID
	Driver DriverAssignment
}

// Assign moves a pending or forwarded call to dispatched, claiming the driver
// atomically. A driver that lost its availability race yields
// ErrDriverUnavailable; a call that moved underneath us yields ErrConflict.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*Call, error) {
	if cmd.Driver.DriverID == "" {
		return nil, ErrBadRequest
	}
	c, err := s.store.Get(ctx, cmd.CallID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusDispatched) {
		return nil, ErrInvalidTransition
	}
	claimed, applied, err := s.store.Assign(ctx, c.ID, c.Status, c.StatusVersion, cmd.Driver)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDriverUnavailable
	}
	if !applied {
		return nil, ErrConflict
	}
	updated, err := s.store.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"call_id": c.ID, "driver_id": cmd.Driver.DriverID}).Info("call dispatched")
	s.publish(updated)
	return updated, nil
}

type PickupCommand struct {
	CallID         types.ID
	DriverID       types.ID
	DriverLocation types.Point
}

// Pickup confirms the patient is aboard: the call moves to transporting and
// the nearest hospital is chosen as destination. Hospital matching is best
// effort, a call with no reachable hospital still transports.
func (s *Service) Pickup(ctx context.Context, cmd PickupCommand) (*Call, error) {
	c, err := s.store.Get(ctx, cmd.CallID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusTransporting) {
		return nil, ErrInvalidTransition
	}
	if c.AssignedDriverID == nil || *c.AssignedDriverID != cmd.DriverID {
		return nil, ErrBadRequest
	}

	origin := c.Location
	if cmd.DriverLocation.Valid() {
		origin = cmd.DriverLocation
	}
	var hospitalID *types.ID
	var hospitalName string
	if match, ok, err := s.hospitals.NearestHospital(ctx, origin); err != nil {
		s.log.WithError(err).WithField("call_id", c.ID).Warn("hospital matching failed, transporting without destination")
	} else if ok {
		id := match.HospitalID
		hospitalID = &id
		hospitalName = match.Name
		if match.Fallback {
			s.log.WithFields(logrus.Fields{"call_id": c.ID, "hospital_id": id}).Warn("all hospitals at capacity, routing to nearest anyway")
		}
	}

	applied, err := s.store.Pickup(ctx, c.ID, c.Status, c.StatusVersion, cmd.DriverID, hospitalID, hospitalName)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrConflict
	}
	updated, err := s.store.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"call_id": c.ID, "hospital": hospitalName}).Info("patient picked up, transporting")
	s.publish(updated)
	return updated, nil
}

type ForwardCommand struct {
	CallID      types.ID
	Reason      string
	ForwardedBy string
	// DriverID restricts the action to the assigned driver; empty means an
	// admin acting on the call.
	DriverID types.ID
}

// Forward returns a call to the dispatch queue when the assigned driver
// cannot continue. The driver assignment is cleared so a new one can claim it.
func (s *Service) Forward(ctx context.Context, cmd ForwardCommand) (*Call, error) {
	if cmd.Reason == "" {
		return nil, ErrBadRequest
	}
	c, err := s.store.Get(ctx, cmd.CallID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusForwarded) {
		return nil, ErrInvalidTransition
	}
	if cmd.DriverID != "" && (c.AssignedDriverID == nil || *c.AssignedDriverID != cmd.DriverID) {
		return nil, ErrBadRequest
	}
	applied, err := s.store.Forward(ctx, c.ID, c.Status, c.StatusVersion, cmd.Reason, cmd.ForwardedBy, c.AssignedDriverID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrConflict
	}
	updated, err := s.store.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"call_id": c.ID, "reason": cmd.Reason}).Info("call forwarded back to queue")
	s.publish(updated)
	return updated, nil
}

type CompleteCommand struct {
	CallID types.ID
	// DriverID restricts the action to the assigned driver; empty means an
	// admin acting on the call.
	DriverID types.ID
}

// Complete closes a transporting call and frees the driver and ambulance.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Call, error) {
	c, err := s.store.Get(ctx, cmd.CallID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusCompleted) {
		return nil, ErrInvalidTransition
	}
	if cmd.DriverID != "" && (c.AssignedDriverID == nil || *c.AssignedDriverID != cmd.DriverID) {
		return nil, ErrBadRequest
	}
	applied, err := s.store.Complete(ctx, c.ID, c.Status, c.StatusVersion, c.AssignedDriverID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrConflict
	}
	updated, err := s.store.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.log.WithField("call_id", c.ID).Info("call completed")
	s.publish(updated)
	return updated, nil
}

// Timeline returns the audit trail with derived phase durations.
func (s *Service) Timeline(ctx context.Context, id types.ID) (*Timeline, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.store.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildTimeline(c, events), nil
}

// publish pushes the latest snapshot to both the firehose topic and the
// per-call topic.
func (s *Service) publish(c *Call) {
	if s.events == nil {
		return
	}
	s.events.Publish("calls", c)
	s.events.Publish("call:"+string(c.ID), c)
}

func newID() types.ID {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
