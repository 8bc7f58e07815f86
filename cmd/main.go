package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"oscmix2mqtt/internal/bridge"
	"oscmix2mqtt/internal/config"
	"oscmix2mqtt/internal/logger"
	"oscmix2mqtt/internal/mixer"
	"oscmix2mqtt/internal/protocol"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	// The bridge is wired up after the controller, so the event callbacks
	// capture the variable and check it.
	var b *bridge.Bridge

	events := mixer.Events{
		OnStateChanged: func(d protocol.Descriptor, v protocol.Value) {
			if b != nil {
				b.PublishState(d, v)
			}
		},
		OnMeterSamples: func(samples []mixer.MeterSample) {
			if b != nil {
				b.PublishMeters(samples)
			}
		},
		OnConnected: func() {
			if b != nil {
				b.PublishStatus("online")
			}
		},
		OnDisconnected: func(reason string) {
			if b != nil {
				b.PublishStatus("offline: " + reason)
			}
		},
	}

	counts := protocol.Counts{
		Inputs:    cfg.Device.Inputs,
		Outputs:   cfg.Device.Outputs,
		Playbacks: cfg.Device.Playbacks,
	}
	ctrl := mixer.NewController(log, counts, cfg.Meter.RateHz, events)
	log.With(logger.Fields{"module": "mixer"}).Debug("NewController created ok")

	b = bridge.New(log, ConvertConfigBridge(cfg.MQTT), ctrl)
	log.With(logger.Fields{"module": "mqtt"}).Debug("bridge created ok")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	ctrl.Start(ctx)

	if err = b.Start(ctx); err != nil {
		log.Error("failed to start MQTT service:", err.Error())
		cancel()
	}

	if err = ctrl.Connect(mixer.Endpoints{
		DeviceHost: cfg.OSC.DeviceHost,
		DevicePort: cfg.OSC.DevicePort,
		ListenHost: cfg.OSC.ListenHost,
		ListenPort: cfg.OSC.ListenPort,
	}); err != nil {
		log.Error("failed to start OSC session:", err.Error())
		cancel()
	} else if err = ctrl.RequestRefresh(); err != nil {
		log.Error("failed to request device state:", err.Error())
	}

	<-ctx.Done()

	if err := b.Stop(); err != nil {
		log.Error("failed to stop MQTT service:", err.Error())
	}

	ctrl.Disconnect()

	log.Info("shutdown complete")
}

// ConvertConfigBridge maps the config structure onto the bridge's.
func ConvertConfigBridge(cfg config.MQTTConf) bridge.Conf {
	return bridge.Conf{
		ClientID: cfg.ClientID,
		Schema:   "tcp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Prefix:   cfg.Prefix,
		Qos:      cfg.Qos,
	}
}
