// README: Dispatch decision engine: nearest available driver wins, atomically.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"radar/internal/config"
	"radar/internal/modules/call"
	"radar/internal/modules/fleet"
	"radar/internal/modules/matching"
	"radar/internal/types"
)

// assignAttempts bounds the retry loop when drivers are claimed out from
// under us between matching and assignment.
const assignAttempts = 3

// DriverMatcher resolves the nearest available driver to an origin.
type DriverMatcher interface {
	NearestDriver(ctx context.Context, origin types.Point) (matching.DriverMatch, bool, error)
}

// CallDispatcher is the slice of the call service the engine drives.
type CallDispatcher interface {
	Get(ctx context.Context, id types.ID) (*call.Call, error)
	List(ctx context.Context, f call.Filter) ([]*call.Call, error)
	Assign(ctx context.Context, cmd call.AssignCommand) (*call.Call, error)
}

// FleetReader supplies driver and vehicle details for the response block.
type FleetReader interface {
	GetDriver(ctx context.Context, id types.ID) (*fleet.Driver, error)
	GetAmbulance(ctx context.Context, id types.ID) (*fleet.Ambulance, error)
}

// Notifier pushes the dispatch notification to the chosen driver's device.
type Notifier interface {
	NotifyDriver(ctx context.Context, deviceToken string, callID types.ID, description string) error
}

type Engine struct {
	matcher  DriverMatcher
	calls    CallDispatcher
	fleet    FleetReader
	notifier Notifier
	webhook  *WebhookClient
	cfg      config.DispatchConfig
	log      *logrus.Logger
}

func NewEngine(matcher DriverMatcher, calls CallDispatcher, fleetReader FleetReader, notifier Notifier, webhook *WebhookClient, cfg config.DispatchConfig, log *logrus.Logger) *Engine {
	return &Engine{
		matcher:  matcher,
		calls:    calls,
		fleet:    fleetReader,
		notifier: notifier,
		webhook:  webhook,
		cfg:      cfg,
		log:      log,
	}
}

// Decide resolves a driver for the call. Re-deciding an already dispatched
// call is idempotent and returns the bound driver instead of claiming another.
func (e *Engine) Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	c, err := e.calls.Get(ctx, req.CallID)
	if err != nil {
		return DecisionResponse{}, err
	}

	switch c.Status {
	case call.StatusDispatched, call.StatusTransporting:
		return e.currentDriverResponse(ctx, c), nil
	case call.StatusCompleted:
		return DecisionResponse{Success: false, Message: "call already completed"}, nil
	}

	for attempt := 0; attempt < assignAttempts; attempt++ {
		match, ok, err := e.matcher.NearestDriver(ctx, c.Location)
		if err != nil {
			return DecisionResponse{}, err
		}
		if !ok {
			e.log.WithField("call_id", c.ID).Info("no available ambulance in range")
			return DecisionResponse{Success: false, Message: "Searching for an available ambulance. Please stay on the line."}, nil
		}

		driver, err := e.fleet.GetDriver(ctx, match.DriverID)
		if err != nil {
			return DecisionResponse{}, err
		}
		var amb *fleet.Ambulance
		if driver.AmbulanceID != nil {
			if amb, err = e.fleet.GetAmbulance(ctx, *driver.AmbulanceID); err != nil {
				amb = nil
			}
		}

		updated, err := e.calls.Assign(ctx, call.AssignCommand{
			CallID: c.ID,
			Driver: call.DriverAssignment{
				DriverID: driver.ID,
				Name:     driver.Name,
				Vehicle:  plate(amb),
			},
		})
		if errors.Is(err, call.ErrDriverUnavailable) || errors.Is(err, call.ErrConflict) {
			// someone else claimed the driver or the call moved; re-match
			c, err = e.calls.Get(ctx, req.CallID)
			if err != nil {
				return DecisionResponse{}, err
			}
			if !call.CanTransition(c.Status, call.StatusDispatched) {
				return e.currentDriverResponse(ctx, c), nil
			}
			continue
		}
		if err != nil {
			return DecisionResponse{}, err
		}

		e.notify(ctx, driver, updated)
		e.forwardToWebhook(ctx, req)

		resp := DecisionResponse{
			Success: true,
			Driver:  driverInfo(driver, amb),
			Message: dispatchedMessage(match.ETA),
		}
		return resp, nil
	}
	return DecisionResponse{Success: false, Message: "All nearby ambulances are busy. Retrying shortly."}, nil
}

// RunPendingSweep re-decides queued calls on a fixed interval so calls created
// while no driver was free do not sit unresolved forever. Blocks until ctx is
// cancelled.
func (e *Engine) RunPendingSweep(ctx context.Context) {
	interval := time.Duration(e.cfg.SweepSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce(ctx)
		}
	}
}

func (e *Engine) sweepOnce(ctx context.Context) {
	queued, err := e.calls.List(ctx, call.Filter{Statuses: []call.Status{call.StatusPending, call.StatusForwarded}})
	if err != nil {
		e.log.WithError(err).Error("pending sweep: listing queued calls failed")
		return
	}
	for _, c := range queued {
		eventType := EventNewEmergencyCall
		if c.Status == call.StatusForwarded {
			eventType = EventForwardDispatch
		}
		resp, err := e.Decide(ctx, DecisionRequest{
			CallID:      c.ID,
			Location:    c.Location,
			Description: c.Description,
			EventType:   eventType,
		})
		if err != nil {
			e.log.WithError(err).WithField("call_id", c.ID).Error("pending sweep: decision failed")
			continue
		}
		if resp.Success {
			e.log.WithFields(logrus.Fields{"call_id": c.ID, "driver": resp.Driver.DriverName}).Info("pending sweep dispatched call")
		}
	}
}

func (e *Engine) currentDriverResponse(ctx context.Context, c *call.Call) DecisionResponse {
	resp := DecisionResponse{Success: true, Message: "Ambulance already dispatched."}
	if c.AssignedDriverID != nil {
		if driver, err := e.fleet.GetDriver(ctx, *c.AssignedDriverID); err == nil {
			var amb *fleet.Ambulance
			if driver.AmbulanceID != nil {
				amb, _ = e.fleet.GetAmbulance(ctx, *driver.AmbulanceID)
			}
			resp.Driver = driverInfo(driver, amb)
		}
	}
	return resp
}

// notify is best effort: a push failure never rolls back an assignment.
func (e *Engine) notify(ctx context.Context, driver *fleet.Driver, c *call.Call) {
	if e.notifier == nil || driver.DeviceToken == "" {
		return
	}
	if err := e.notifier.NotifyDriver(ctx, driver.DeviceToken, c.ID, c.Description); err != nil {
		e.log.WithError(err).WithField("driver_id", driver.ID).Warn("driver push notification failed")
	}
}

// NotifyPickup mirrors a patient-pickup confirmation to the automation
// endpoint. Best effort; the transition has already been committed.
func (e *Engine) NotifyPickup(ctx context.Context, c *call.Call) {
	e.forwardToWebhook(ctx, DecisionRequest{
		CallID:      c.ID,
		Location:    c.Location,
		Description: c.Description,
		EventType:   EventDriverPickedUpPatient,
	})
}

// forwardToWebhook mirrors the decision to the configured automation endpoint,
// best effort.
func (e *Engine) forwardToWebhook(ctx context.Context, req DecisionRequest) {
	if e.webhook == nil {
		return
	}
	if err := e.webhook.Send(ctx, req); err != nil {
		e.log.WithError(err).WithField("call_id", req.CallID).Warn("dispatch webhook delivery failed")
	}
}

func dispatchedMessage(eta time.Duration) string {
	if eta <= 0 {
		return "Ambulance dispatched. Help is on the way."
	}
	return fmt.Sprintf("Ambulance dispatched. Help is on the way. Estimated arrival in %d mins.",
		int(eta.Minutes()))
}

func driverInfo(driver *fleet.Driver, amb *fleet.Ambulance) *DriverInfo {
	info := &DriverInfo{
		DriverName: driver.Name,
		Phone:      driver.Phone,
		Location:   driver.CurrentLocation,
	}
	if amb != nil {
		info.VehiclePlate = amb.Plate
		info.VehicleType = amb.Type
	}
	return info
}

func plate(amb *fleet.Ambulance) string {
	if amb == nil {
		return ""
	}
	return amb.Plate
}
