// README: Hospital service tests (capacity enforcement, patient lifecycle).
package hospital

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"radar/internal/types"
)

// memStore applies the same capacity guard the SQL statements use: an
// admission lands only while occupied units are below total units.
type memStore struct {
	mu        sync.Mutex
	hospitals map[types.ID]*Hospital
}

func newMemStore() *memStore {
	return &memStore{hospitals: make(map[types.ID]*Hospital)}
}

func (m *memStore) Create(ctx context.Context, h *Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *h
	m.hospitals[h.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hospitals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	cp.Patients = append([]Patient(nil), h.Patients...)
	return &cp, nil
}

func (m *memStore) List(ctx context.Context) ([]*Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Hospital, 0, len(m.hospitals))
	for _, h := range m.hospitals {
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) AdmitPatient(ctx context.Context, id types.ID, p Patient) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hospitals[id]
	if !ok || h.OccupiedUnits >= h.TotalUnits {
		return false, nil
	}
	h.OccupiedUnits++
	h.Patients = append(h.Patients, p)
	return true, nil
}

func (m *memStore) CheckoutPatient(ctx context.Context, id types.ID, patientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hospitals[id]
	if !ok {
		return false, nil
	}
	for i, p := range h.Patients {
		if p.ID == patientID {
			h.Patients = append(h.Patients[:i], h.Patients[i+1:]...)
			if h.OccupiedUnits > 0 {
				h.OccupiedUnits--
			}
			return true, nil
		}
	}
	return false, nil
}

func mustCreateHospital(t *testing.T, svc *Service, units int) types.ID {
	t.Helper()
	id, err := svc.Create(context.Background(), CreateCommand{
		Name:       "Mpilo Central",
		Location:   types.Point{Lat: -20.155, Lng: 28.592},
		TotalUnits: units,
	})
	require.NoError(t, err)
	return id
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCommand{Name: "", TotalUnits: 5, Location: types.Point{Lat: -20, Lng: 28}})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Create(ctx, CreateCommand{Name: "x", TotalUnits: 0, Location: types.Point{Lat: -20, Lng: 28}})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Create(ctx, CreateCommand{Name: "x", TotalUnits: 5, Location: types.Point{Lat: 120, Lng: 28}})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestAdmitUntilFull(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	id := mustCreateHospital(t, svc, 2)

	_, err := svc.Admit(ctx, AdmitCommand{HospitalID: id, Name: "Patient One", Unit: "ICU"})
	require.NoError(t, err)
	_, err = svc.Admit(ctx, AdmitCommand{HospitalID: id, Name: "Patient Two", Unit: "ER"})
	require.NoError(t, err)

	// third admission is rejected, not queued
	_, err = svc.Admit(ctx, AdmitCommand{HospitalID: id, Name: "Patient Three"})
	require.ErrorIs(t, err, ErrAtCapacity)

	h, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, h.OccupiedUnits)
	require.Len(t, h.Patients, 2)
	require.False(t, h.HasCapacity())
}

func TestAdmitUnknownHospital(t *testing.T) {
	svc := NewService(newMemStore())
	_, err := svc.Admit(context.Background(), AdmitCommand{HospitalID: "missing", Name: "P"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCheckoutFreesUnit(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	id := mustCreateHospital(t, svc, 1)

	p, err := svc.Admit(ctx, AdmitCommand{HospitalID: id, Name: "Patient One"})
	require.NoError(t, err)

	_, err = svc.Admit(ctx, AdmitCommand{HospitalID: id, Name: "Patient Two"})
	require.ErrorIs(t, err, ErrAtCapacity)

	require.NoError(t, svc.Checkout(ctx, id, p.ID))

	// the freed unit admits again
	_, err = svc.Admit(ctx, AdmitCommand{HospitalID: id, Name: "Patient Two"})
	require.NoError(t, err)
}

func TestCheckoutUnknownPatient(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	id := mustCreateHospital(t, svc, 1)

	err := svc.Checkout(ctx, id, "nope")
	require.ErrorIs(t, err, ErrPatientNotFound)
}
