// README: Call lifecycle tests (transition table, flows, conflict handling).
package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"radar/internal/bus"
	"radar/internal/modules/matching"
	"radar/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusDispatched, true},
		{StatusDispatched, StatusTransporting, true},
		{StatusTransporting, StatusCompleted, true},
		// forward side-path and re-dispatch
		{StatusPending, StatusForwarded, true},
		{StatusDispatched, StatusForwarded, true},
		{StatusForwarded, StatusDispatched, true},
		// invalid: skipping states
		{StatusPending, StatusTransporting, false},
		{StatusPending, StatusCompleted, false},
		{StatusDispatched, StatusCompleted, false},
		// invalid: backwards or out of terminal
		{StatusTransporting, StatusForwarded, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusDispatched, false},
		{StatusForwarded, StatusTransporting, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusActive(t *testing.T) {
	active := []Status{StatusPending, StatusDispatched, StatusTransporting, StatusForwarded}
	for _, st := range active {
		if !st.Active() {
			t.Errorf("%s should be active", st)
		}
	}
	if StatusCompleted.Active() {
		t.Error("completed should not be active")
	}
}

// memStore mirrors the persistence contract: transitions apply only when the
// caller's status and version still match, and driver claims succeed at most
// once per driver.
type memStore struct {
	mu       sync.Mutex
	calls    map[types.ID]*Call
	events   map[types.ID][]Event
	busy     map[types.ID]bool // drivers no longer available
	released []types.ID
}

func newMemStore() *memStore {
	return &memStore{
		calls:  make(map[types.ID]*Call),
		events: make(map[types.ID][]Event),
		busy:   make(map[types.ID]bool),
	}
}

func (m *memStore) Create(ctx context.Context, c *Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.calls[c.ID] = &cp
	m.events[c.ID] = append(m.events[c.ID], Event{CallID: c.ID, FromStatus: StatusNone, ToStatus: c.Status, ActorType: "caller", CreatedAt: c.CallCreatedAt})
	return nil
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, f Filter) ([]*Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Call
	for _, c := range m.calls {
		if f.DriverID != nil && (c.AssignedDriverID == nil || *c.AssignedDriverID != *f.DriverID) {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, st := range f.Statuses {
				if c.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) transition(id types.ID, from, to Status, version int, mutate func(*Call)) bool {
	c, ok := m.calls[id]
	if !ok || c.Status != from || c.StatusVersion != version {
		return false
	}
	c.Status = to
	c.StatusVersion++
	mutate(c)
	m.events[id] = append(m.events[id], Event{CallID: id, FromStatus: from, ToStatus: to, CreatedAt: time.Now()})
	return true
}

func (m *memStore) Assign(ctx context.Context, callID types.ID, from Status, version int, d DriverAssignment) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy[d.DriverID] {
		return false, false, nil
	}
	applied := m.transition(callID, from, StatusDispatched, version, func(c *Call) {
		id := d.DriverID
		now := time.Now()
		c.AssignedDriverID = &id
		c.AssignedDriver = d.Name
		c.AssignedVehicle = d.Vehicle
		c.DispatchedAt = &now
		c.DriverEnRouteAt = &now
	})
	if applied {
		m.busy[d.DriverID] = true
	}
	return true, applied, nil
}

func (m *memStore) Pickup(ctx context.Context, callID types.ID, from Status, version int, driverID types.ID, hospitalID *types.ID, hospitalName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(callID, from, StatusTransporting, version, func(c *Call) {
		now := time.Now()
		c.AssignedHospitalID = hospitalID
		c.AssignedHospital = hospitalName
		c.DriverArrivedAtCallerAt = &now
		c.EnRouteToHospitalAt = &now
	}), nil
}

func (m *memStore) Forward(ctx context.Context, callID types.ID, from Status, version int, reason, forwardedBy string, driverID *types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	applied := m.transition(callID, from, StatusForwarded, version, func(c *Call) {
		now := time.Now()
		c.ForwardReason = reason
		c.ForwardedBy = forwardedBy
		c.AssignedDriverID = nil
		c.AssignedDriver = ""
		c.AssignedVehicle = ""
		c.CallForwardedAt = &now
	})
	if applied && driverID != nil {
		m.busy[*driverID] = false
		m.released = append(m.released, *driverID)
	}
	return applied, nil
}

func (m *memStore) Complete(ctx context.Context, callID types.ID, from Status, version int, driverID *types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	applied := m.transition(callID, from, StatusCompleted, version, func(c *Call) {
		now := time.Now()
		c.ArrivedAtHospitalAt = &now
		c.CompletedAt = &now
	})
	if applied && driverID != nil {
		m.busy[*driverID] = false
		m.released = append(m.released, *driverID)
	}
	return applied, nil
}

func (m *memStore) Events(ctx context.Context, callID types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events[callID]...), nil
}

type stubHospitals struct {
	match matching.HospitalMatch
	ok    bool
	err   error
}

func (s *stubHospitals) NearestHospital(ctx context.Context, origin types.Point) (matching.HospitalMatch, bool, error) {
	return s.match, s.ok, s.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestService(store CallStore, hospitals HospitalMatcher) *Service {
	if hospitals == nil {
		hospitals = &stubHospitals{
			match: matching.HospitalMatch{HospitalID: "h1", Name: "Central Hospital"},
			ok:    true,
		}
	}
	return NewService(store, hospitals, bus.New[*Call](), quietLogger())
}

func mustCreate(t *testing.T, svc *Service) *Call {
	t.Helper()
	c, err := svc.Create(context.Background(), CreateCommand{
		CallerPhone: "+263771234567",
		Location:    types.Point{Lat: -20.1325, Lng: 28.6265},
		Description: "chest pains",
	})
	require.NoError(t, err)
	return c
}

func TestCallFlowHappyPath(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	require.Equal(t, StatusPending, c.Status)
	require.False(t, c.CallCreatedAt.IsZero())

	c, err := svc.Assign(ctx, AssignCommand{
		CallID: c.ID,
		Driver: DriverAssignment{DriverID: "d1", Name: "T. Moyo", Vehicle: "ABZ 4571"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, c.Status)
	require.Equal(t, "T. Moyo", c.AssignedDriver)
	require.NotNil(t, c.DispatchedAt)
	require.NotNil(t, c.DriverEnRouteAt)

	c, err = svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d1"})
	require.NoError(t, err)
	require.Equal(t, StatusTransporting, c.Status)
	require.Equal(t, "Central Hospital", c.AssignedHospital)
	require.NotNil(t, c.EnRouteToHospitalAt)

	c, err = svc.Complete(ctx, CompleteCommand{CallID: c.ID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, c.Status)
	require.NotNil(t, c.CompletedAt)
	require.Equal(t, []types.ID{"d1"}, store.released)
}

func TestCallFlowForwardAndRedispatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	c, err := svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1", Name: "A", Vehicle: "V1"}})
	require.NoError(t, err)

	c, err = svc.Forward(ctx, ForwardCommand{CallID: c.ID, Reason: "Vehicle mechanical issue", ForwardedBy: "d1"})
	require.NoError(t, err)
	require.Equal(t, StatusForwarded, c.Status)
	require.Nil(t, c.AssignedDriverID)
	require.Equal(t, "Vehicle mechanical issue", c.ForwardReason)

	// the freed driver and a new one are both eligible again
	c, err = svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d2", Name: "B", Vehicle: "V2"}})
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, c.Status)
	require.Equal(t, "B", c.AssignedDriver)
}

func TestForwardFromPending(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	c := mustCreate(t, svc)

	c, err := svc.Forward(context.Background(), ForwardCommand{CallID: c.ID, Reason: "No coverage in area", ForwardedBy: "operator"})
	require.NoError(t, err)
	require.Equal(t, StatusForwarded, c.Status)
}

func TestInvalidTransitions(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()
	c := mustCreate(t, svc)

	// pending call cannot be picked up or completed
	_, err := svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d1"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Complete(ctx, CompleteCommand{CallID: c.ID})
	require.ErrorIs(t, err, ErrInvalidTransition)

	// completed call is terminal
	c, err = svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)
	c, err = svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d1"})
	require.NoError(t, err)
	c, err = svc.Complete(ctx, CompleteCommand{CallID: c.ID})
	require.NoError(t, err)
	_, err = svc.Forward(ctx, ForwardCommand{CallID: c.ID, Reason: "x", ForwardedBy: "d1"})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssignDriverUnavailable(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	first := mustCreate(t, svc)
	second := mustCreate(t, svc)

	_, err := svc.Assign(ctx, AssignCommand{CallID: first.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)

	// d1 is already bound to the first call
	_, err = svc.Assign(ctx, AssignCommand{CallID: second.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.ErrorIs(t, err, ErrDriverUnavailable)

	got, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
}

func TestPickupWrongDriverRejected(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	_, err := svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)

	_, err = svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d2"})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestForwardWrongDriverRejected(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	_, err := svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)

	_, err = svc.Forward(ctx, ForwardCommand{CallID: c.ID, Reason: "flat tyre", ForwardedBy: "d2", DriverID: "d2"})
	require.ErrorIs(t, err, ErrBadRequest)

	// the call is untouched and still belongs to d1
	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, got.Status)
	require.Equal(t, types.ID("d1"), *got.AssignedDriverID)
}

func TestCompleteWrongDriverRejected(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	_, err := svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)
	_, err = svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d1"})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, CompleteCommand{CallID: c.ID, DriverID: "d2"})
	require.ErrorIs(t, err, ErrBadRequest)

	// an admin acting without a driver identity may still close it
	got, err := svc.Complete(ctx, CompleteCommand{CallID: c.ID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
}

func TestPickupWithoutReachableHospital(t *testing.T) {
	svc := newTestService(newMemStore(), &stubHospitals{ok: false})
	ctx := context.Background()

	c := mustCreate(t, svc)
	c, err := svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)

	// transport proceeds even when no hospital could be matched
	c, err = svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d1"})
	require.NoError(t, err)
	require.Equal(t, StatusTransporting, c.Status)
	require.Nil(t, c.AssignedHospitalID)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCommand{CallerPhone: "+263770000000", Location: types.Point{Lat: 91, Lng: 0}})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Create(ctx, CreateCommand{Location: types.Point{Lat: 0, Lng: -181}})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestCreateWithoutPhoneAccepted(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCommand{
		Location:    types.Point{Lat: -20.1325, Lng: 28.6265},
		Description: "collapsed pedestrian, reported by bystander",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, c.Status)
	require.Empty(t, c.CallerPhone)
}

func TestCallActive(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	active, err := svc.CallActive(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, active)

	// unknown calls are inactive rather than an error
	active, err = svc.CallActive(ctx, "missing")
	require.NoError(t, err)
	require.False(t, active)
}

func TestConcurrentAssignSingleWinner(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()
	c := mustCreate(t, svc)

	const drivers = 8
	var wg sync.WaitGroup
	errs := make([]error, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Assign(ctx, AssignCommand{
				CallID: c.ID,
				Driver: DriverAssignment{DriverID: types.ID(string(rune('a' + i)))},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, got.Status)
}

func TestTimelineDurations(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	ctx := context.Background()

	c := mustCreate(t, svc)
	c, err := svc.Assign(ctx, AssignCommand{CallID: c.ID, Driver: DriverAssignment{DriverID: "d1"}})
	require.NoError(t, err)
	c, err = svc.Pickup(ctx, PickupCommand{CallID: c.ID, DriverID: "d1"})
	require.NoError(t, err)
	c, err = svc.Complete(ctx, CompleteCommand{CallID: c.ID})
	require.NoError(t, err)

	tl, err := svc.Timeline(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, tl.Status)
	require.NotNil(t, tl.TotalDuration)
	require.NotNil(t, tl.ResponseDuration)
	require.NotNil(t, tl.TransportDuration)
	require.GreaterOrEqual(t, len(tl.Events), 4)

	labels := make([]string, len(tl.Entries))
	for i, e := range tl.Entries {
		labels[i] = e.Label
	}
	require.Contains(t, labels, "Call received")
	require.Contains(t, labels, "Ambulance dispatched")
	require.Contains(t, labels, "Call completed")
}

func TestTimelinePartialCall(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	c := mustCreate(t, svc)

	tl, err := svc.Timeline(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, tl.Entries, 1)
	require.Nil(t, tl.TotalDuration)
	require.Nil(t, tl.ResponseDuration)
}

func TestBusReceivesSnapshots(t *testing.T) {
	events := bus.New[*Call]()
	svc := NewService(newMemStore(), &stubHospitals{ok: true}, events, quietLogger())

	ch, cancel := events.Subscribe("calls")
	defer cancel()

	c := mustCreate(t, svc)
	select {
	case got := <-ch:
		require.Equal(t, c.ID, got.ID)
		require.Equal(t, StatusPending, got.Status)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}
