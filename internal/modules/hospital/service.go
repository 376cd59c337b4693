// README: Hospital service enforces capacity on admissions and checkouts.
package hospital

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"radar/internal/types"
)

var (
	ErrNotFound        = errors.New("hospital not found")
	ErrAtCapacity      = errors.New("hospital at full capacity")
	ErrPatientNotFound = errors.New("patient not found")
	ErrBadRequest      = errors.New("bad request")
)

// HospitalStore is the persistence contract the service drives.
type HospitalStore interface {
	Create(ctx context.Context, h *Hospital) error
	Get(ctx context.Context, id types.ID) (*Hospital, error)
	List(ctx context.Context) ([]*Hospital, error)
	AdmitPatient(ctx context.Context, id types.ID, p Patient) (bool, error)
	CheckoutPatient(ctx context.Context, id types.ID, patientID string) (bool, error)
}

type Service struct {
	store HospitalStore
}

func NewService(store HospitalStore) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	Name       string
	Location   types.Point
	TotalUnits int
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.Name == "" || cmd.TotalUnits <= 0 || !cmd.Location.Valid() {
		return "", ErrBadRequest
	}
	h := &Hospital{
		ID:         newID(),
		Name:       cmd.Name,
		Location:   cmd.Location,
		TotalUnits: cmd.TotalUnits,
		Patients:   []Patient{},
		CreatedAt:  time.Now(),
	}
	if err := s.store.Create(ctx, h); err != nil {
		return "", err
	}
	return h.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Hospital, error) {
	return s.store.List(ctx)
}

type AdmitCommand struct {
	HospitalID types.ID
	Name       string
	Unit       string
	Condition  string
	Status     string
}

// Admit adds a patient, rejecting with ErrAtCapacity when no unit is free.
// A full hospital blocks admission only; it remains a valid (fallback)
// ambulance destination.
func (s *Service) Admit(ctx context.Context, cmd AdmitCommand) (Patient, error) {
	if cmd.Name == "" {
		return Patient{}, ErrBadRequest
	}
	if _, err := s.store.Get(ctx, cmd.HospitalID); err != nil {
		return Patient{}, err
	}
	p := Patient{
		ID:         string(newID()),
		Name:       cmd.Name,
		Unit:       cmd.Unit,
		Condition:  cmd.Condition,
		Status:     cmd.Status,
		AdmittedAt: time.Now(),
	}
	ok, err := s.store.AdmitPatient(ctx, cmd.HospitalID, p)
	if err != nil {
		return Patient{}, err
	}
	if !ok {
		return Patient{}, ErrAtCapacity
	}
	return p, nil
}

// Checkout releases the patient's unit.
func (s *Service) Checkout(ctx context.Context, hospitalID types.ID, patientID string) error {
	if _, err := s.store.Get(ctx, hospitalID); err != nil {
		return err
	}
	ok, err := s.store.CheckoutPatient(ctx, hospitalID, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
