package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"devicelink/pkg/alpaca"
	"devicelink/pkg/alpaca/simulator"
)

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Serve a simulated Alpaca dome",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Value:   alpaca.DefaultPort,
				EnvVars: []string{"ALPACA_PORT"},
			},
			&cli.IntFlag{
				Name:  "discovery-port",
				Usage: "UDP port of the discovery responder",
				Value: alpaca.DiscoveryPort,
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Database keeping the simulator settings",
				Value: "simulator.db",
			},
			&cli.Float64Flag{
				Name:  "slew-rate",
				Usage: "Dome slew rate in degrees per second, 0 slews instantly",
				Value: 5,
			},
		},
		Action: simulate,
	}
}

func simulate(c *cli.Context) error {
	log.Info("devicelink Alpaca simulator")

	db, err := bolt.Open(c.String("db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := simulator.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	cfg, err := store.DomeConfig()
	if err != nil {
		return fmt.Errorf("failed to load dome config: %v", err)
	}
	if c.IsSet("slew-rate") || cfg.SlewRate == 0 {
		cfg.SlewRate = c.Float64("slew-rate")
	}

	dome := simulator.NewDomeSimulator(0, cfg, store, log.StandardLogger())

	serverDesc := alpaca.ServerDescription{
		Name:                "devicelink simulator",
		Manufacturer:        "devicelink",
		ManufacturerVersion: "1.0",
		Location:            "localhost",
	}
	server := simulator.NewServer(serverDesc, []simulator.Device{dome}, log.StandardLogger())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Int("port")),
		Handler: server.AddRoutes(),
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Debugf("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", srv.Addr, err)
			stop()
		}
	}()

	discoveryLogger := log.WithField("component", "discovery")
	dr := simulator.NewDiscoveryResponder("0.0.0.0", c.Int("discovery-port"), c.Int("port"), discoveryLogger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dr.Run(ctx); err != nil {
			log.Errorf("Discovery responder failed: %v", err)
		}
		log.Debug("Discovery responder stopped")
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}
