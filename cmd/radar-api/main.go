// README: Entry point; loads config, wires services, starts HTTP server and background workers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radar/internal/bus"
	"radar/internal/config"
	httptransport "radar/internal/http"
	"radar/internal/infra"
	"radar/internal/modules/call"
	"radar/internal/modules/dispatch"
	"radar/internal/modules/fleet"
	"radar/internal/modules/hospital"
	"radar/internal/modules/location"
	"radar/internal/modules/matching"
	"radar/internal/ws"
	"radar/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("postgres init failed")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var verifier infra.TokenVerifier
	var mirror location.Mirror
	var notifier dispatch.Notifier
	if cfg.Firebase.ProjectID != "" {
		fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("firebase init failed")
		}
		verifier = fb
		if fb.Database() != nil {
			mirror = location.NewRTDBMirror(fb.Database())
		}
		notifier = dispatch.NewFCMNotifier(fb.Messaging())
	} else {
		log.Warn("firebase disabled, running without auth, RTDB mirror and push")
	}

	callBus := bus.New[*call.Call]()
	locationBus := bus.New[location.Event]()

	locationStore := location.NewStore(redisClient)
	locationSvc := location.NewService(locationStore, mirror, locationBus, cfg.Matching, log)

	hospitalStore := hospital.NewStore(dbPool)
	hospitalSvc := hospital.NewService(hospitalStore)

	matchingSvc := matching.NewService(locationSvc, hospitalSvc, cfg.Matching)

	fleetStore := fleet.NewStore(dbPool)
	callStore := call.NewStore(dbPool, fleetStore)
	callSvc := call.NewService(callStore, matchingSvc, callBus, log)
	fleetSvc := fleet.NewService(fleetStore, callSvc, log)

	webhook := dispatch.NewWebhookClient(cfg.Dispatch.WebhookURL, cfg.Dispatch.WebhookTimeoutSeconds)
	engine := dispatch.NewEngine(matchingSvc, callSvc, fleetSvc, notifier, webhook, cfg.Dispatch, log)

	hub := ws.NewHub(log)
	go hub.Run(ctx)
	go hub.BridgeCalls(ctx, callBus)
	go hub.BridgeDriverLocations(ctx, locationBus)
	go engine.RunPendingSweep(ctx)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Calls:     callSvc,
		Engine:    engine,
		Fleet:     fleetSvc,
		Hospitals: hospitalSvc,
		Location:  locationSvc,
		Hub:       hub,
		Verifier:  verifier,
		Log:       log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("radar api listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("http server failed")
	}
}
