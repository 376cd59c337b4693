// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"radar/internal/http/handlers"
	"radar/internal/http/middleware"
	"radar/internal/infra"
	"radar/internal/modules/call"
	"radar/internal/modules/dispatch"
	"radar/internal/modules/fleet"
	"radar/internal/modules/hospital"
	"radar/internal/modules/location"
	"radar/internal/ws"
)

type RouterDeps struct {
	Calls     *call.Service
	Engine    *dispatch.Engine
	Fleet     *fleet.Service
	Hospitals *hospital.Service
	Location  *location.Service
	Hub       *ws.Hub
	Verifier  infra.TokenVerifier
	Log       *logrus.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	callHandler := handlers.NewCallHandler(deps.Calls, deps.Engine)
	dispatchHandler := handlers.NewDispatchHandler(deps.Engine)
	fleetHandler := handlers.NewFleetHandler(deps.Fleet)
	hospitalHandler := handlers.NewHospitalHandler(deps.Hospitals)
	locationHandler := handlers.NewLocationHandler(deps.Location)
	wsHandler := handlers.NewWSHandler(deps.Hub)

	// caller submission stays unauthenticated; someone bleeding on the
	// street does not sign in first
	r.POST("/api/calls", callHandler.Create)
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	auth := r.Group("/", middleware.Auth(deps.Verifier, deps.Log))

	staff := auth.Group("/", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleHospital, middleware.RoleDriver))
	staff.GET("/api/calls", callHandler.List)
	staff.GET("/api/calls/:id", callHandler.Get)
	staff.GET("/api/calls/:id/timeline", callHandler.Timeline)
	staff.GET("/ws", wsHandler.Connect)

	driver := auth.Group("/", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleDriver))
	driver.POST("/api/calls/:id/pickup", callHandler.Pickup)
	driver.POST("/api/calls/:id/forward", callHandler.Forward)
	driver.POST("/api/calls/:id/complete", callHandler.Complete)
	driver.PUT("/api/drivers/:id/location", locationHandler.UpdateDriver)
	driver.POST("/api/drivers/:id/offline", locationHandler.Offline)
	driver.POST("/api/drivers/:id/reconcile", fleetHandler.Reconcile)

	admin := auth.Group("/", middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/api/dispatch/decide", dispatchHandler.Decide)
	admin.POST("/api/drivers", fleetHandler.CreateDriver)
	admin.GET("/api/drivers", fleetHandler.ListDrivers)
	admin.GET("/api/drivers/:id", fleetHandler.GetDriver)
	admin.GET("/api/drivers/:id/location", locationHandler.Latest)
	admin.POST("/api/ambulances", fleetHandler.CreateAmbulance)
	admin.GET("/api/ambulances/:id", fleetHandler.GetAmbulance)
	admin.POST("/api/hospitals", hospitalHandler.Create)

	hospitalStaff := auth.Group("/", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleHospital))
	hospitalStaff.GET("/api/hospitals", hospitalHandler.List)
	hospitalStaff.GET("/api/hospitals/:id", hospitalHandler.Get)
	hospitalStaff.POST("/api/hospitals/:id/patients", hospitalHandler.Admit)
	hospitalStaff.DELETE("/api/hospitals/:id/patients/:patientId", hospitalHandler.Checkout)
	hospitalStaff.PUT("/api/hospitals/:id/location", locationHandler.UpdateHospital)

	return r
}
