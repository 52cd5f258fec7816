package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"devicelink/pkg/config"
	"devicelink/pkg/event"
	"devicelink/pkg/registry"
	"devicelink/pkg/scheduler"
)

func setLogLevel(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

func loadFile(c *cli.Context) (*config.File, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.DefaultFile(), nil
}

// openRegistry opens the database and loads every slot with its backends.
func openRegistry(c *cli.Context, f *config.File, bus *event.Bus) (*registry.Registry, func(), error) {
	db, err := bolt.Open(f.Database, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %v", err)
	}

	store, err := config.NewBoltStore(db, f.Slots)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create store: %v", err)
	}

	pool := scheduler.NewPool(f.PoolSize, scheduler.RealClock, log.StandardLogger())
	reg := registry.New(store, bus, log.StandardLogger())
	if c.String("config") != "" {
		if err := reg.SetPreferences(f.Preferences); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	if err := reg.Load(registry.Backends(pool, log.StandardLogger())); err != nil {
		db.Close()
		return nil, nil, err
	}

	return reg, func() { db.Close() }, nil
}

func run(c *cli.Context) error {
	log.Info("devicelink")

	f, err := loadFile(c)
	if err != nil {
		return err
	}

	bus := event.NewBus(log.StandardLogger())
	bus.Handle(func(ev event.Event) {
		entry := log.WithFields(log.Fields{"slot": ev.Slot, "event": ev.Kind})
		switch ev.Kind {
		case event.PropertyChanged:
			entry.Tracef("%s = %v", ev.Key, ev.Value)
		case event.Message:
			entry.Infof("[%s] %s", ev.Level, ev.Text)
		default:
			entry.Info(ev.Device)
		}
	})

	if f.MQTT.Broker != "" {
		client, err := event.NewMQTTClient(f.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		event.NewMQTTBridge(client, f.MQTT, log.StandardLogger()).Attach(bus)
		log.Infof("Publishing events to %s", f.MQTT.Broker)
	}

	reg, closeDB, err := openRegistry(c, f, bus)
	if err != nil {
		return err
	}
	defer closeDB()

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reg.StartAll(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Stopping devices...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := reg.StopAll(ctx2); err != nil {
		return fmt.Errorf("failed to stop devices: %v", err)
	}
	log.Info("Stopped")
	return nil
}

func discover(c *cli.Context) error {
	f, err := loadFile(c)
	if err != nil {
		return err
	}

	reg, closeDB, err := openRegistry(c, f, event.NewBus(log.StandardLogger()))
	if err != nil {
		return err
	}
	defer closeDB()

	name := c.String("slot")
	slot, err := reg.Slot(name)
	if err != nil {
		return err
	}
	dev, _ := reg.Device(name)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	devices, err := dev.Discover(ctx, c.String("framework"), slot.DeviceType)
	if err != nil {
		return fmt.Errorf("discovery failed: %v", err)
	}
	for _, d := range devices {
		fmt.Println(d)
	}
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML configuration file",
		EnvVars: []string{"DEVICELINK_CONFIG"},
	}

	app := cli.App{
		Name:  "devicelink",
		Usage: "Control INDI and Alpaca astronomy devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
		},
		Before: setLogLevel,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect every configured device slot until interrupted",
				Flags:  []cli.Flag{configFlag},
				Action: run,
			},
			{
				Name:  "discover",
				Usage: "List the devices a slot could use",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "slot",
						Aliases:  []string{"s"},
						Usage:    "Slot whose device type is searched",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "framework",
						Aliases: []string{"f"},
						Usage:   "indi or alpaca",
						Value:   config.FrameworkAlpaca,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Discovery timeout",
						Value: 10 * time.Second,
					},
				},
				Action: discover,
			},
			simulateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
