// README: Fleet service: onboarding CRUD plus the driver reconnect reconciliation.
package fleet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"radar/internal/types"
)

var (
	ErrNotFound   = errors.New("fleet record not found")
	ErrBadRequest = errors.New("bad request")
)

// FleetStore is the persistence contract the service drives.
type FleetStore interface {
	Pool() DB
	CreateDriver(ctx context.Context, d *Driver) error
	GetDriver(ctx context.Context, db DB, id types.ID) (*Driver, error)
	ListDrivers(ctx context.Context) ([]*Driver, error)
	CreateAmbulance(ctx context.Context, a *Ambulance) error
	GetAmbulance(ctx context.Context, id types.ID) (*Ambulance, error)
	Release(ctx context.Context, db DB, driverID types.ID) error
}

// CallStatusReader reports whether a call exists and is still active (not
// completed). It keeps this module decoupled from the call module.
type CallStatusReader interface {
	CallActive(ctx context.Context, id types.ID) (bool, error)
}

type Service struct {
	store FleetStore
	calls CallStatusReader
	log   *logrus.Logger
}

func NewService(store FleetStore, calls CallStatusReader, log *logrus.Logger) *Service {
	return &Service{store: store, calls: calls, log: log}
}

type CreateDriverCommand struct {
	Name        string
	Phone       string
	AmbulanceID *types.ID
	DeviceToken string
}

func (s *Service) CreateDriver(ctx context.Context, cmd CreateDriverCommand) (types.ID, error) {
	if cmd.Name == "" {
		return "", ErrBadRequest
	}
	d := &Driver{
		ID:                  newID(),
		Name:                cmd.Name,
		Phone:               cmd.Phone,
		AmbulanceID:         cmd.AmbulanceID,
		Status:              DriverAvailable,
		DeviceToken:         cmd.DeviceToken,
		LastStatusUpdatedAt: time.Now(),
		CreatedAt:           time.Now(),
	}
	if err := s.store.CreateDriver(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

type CreateAmbulanceCommand struct {
	Plate      string
	Type       string
	Capacity   int
	Provider   string
	Paramedics []string
	DriverID   *types.ID
}

func (s *Service) CreateAmbulance(ctx context.Context, cmd CreateAmbulanceCommand) (types.ID, error) {
	if cmd.Plate == "" {
		return "", ErrBadRequest
	}
	a := &Ambulance{
		ID:         newID(),
		Plate:      cmd.Plate,
		Type:       cmd.Type,
		Capacity:   cmd.Capacity,
		Provider:   cmd.Provider,
		Paramedics: cmd.Paramedics,
		Status:     DriverAvailable,
		DriverID:   cmd.DriverID,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateAmbulance(ctx, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

func (s *Service) GetDriver(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.GetDriver(ctx, s.store.Pool(), id)
}

func (s *Service) ListDrivers(ctx context.Context) ([]*Driver, error) {
	return s.store.ListDrivers(ctx)
}

func (s *Service) GetAmbulance(ctx context.Context, id types.ID) (*Ambulance, error) {
	return s.store.GetAmbulance(ctx, id)
}

// Reconcile repairs a driver whose stored status drifted from reality, which
// can happen when a crash lands between the call write and the fleet sync.
// Called on driver reconnect: a dispatch-active status with no matching
// active call is forcibly reset to available, exactly once. Returns whether a
// reset was applied.
func (s *Service) Reconcile(ctx context.Context, driverID types.ID) (bool, error) {
	d, err := s.store.GetDriver(ctx, s.store.Pool(), driverID)
	if err != nil {
		return false, err
	}
	if !d.Status.DispatchActive() {
		return false, nil
	}

	stale := false
	if d.AssignedCallID == nil {
		stale = true
	} else {
		active, err := s.calls.CallActive(ctx, *d.AssignedCallID)
		if err != nil {
			return false, err
		}
		stale = !active
	}
	if !stale {
		return false, nil
	}

	if err := s.store.Release(ctx, s.store.Pool(), driverID); err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{
		"driver_id": driverID,
		"status":    d.Status,
	}).Warn("reconciled stale dispatch-active driver back to available")
	return true, nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
