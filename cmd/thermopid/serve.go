package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Agrid-Dev/thermopid/cmd/app"
	httpctrl "github.com/Agrid-Dev/thermopid/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/thermopid/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/thermopid/internal/controllers/mqtt"
	"github.com/Agrid-Dev/thermopid/internal/device"
	"github.com/Agrid-Dev/thermopid/internal/session"
	"github.com/Agrid-Dev/thermopid/internal/statistics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulator over the configured controllers",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := newDevice(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log.WithFields(log.Fields{
			"device_id":   dev.ID,
			"scenario":    cfg.Simulation.Scenario,
			"controllers": dev.Controllers(),
		}).Info("thermopid starting")
		return dev.Run(ctx)
	},
}

func newDevice(cfg app.Config) (*device.Device, error) {
	sess, err := session.New(cfg.Simulation.Scenario, cfg.Input())
	if err != nil {
		return nil, err
	}
	dev := device.New(cfg.DeviceID, sess)
	ctrls := cfg.Controllers

	if ctrls.HTTP.Enabled {
		reg := statistics.NewRegistry(statistics.NewSessionCollector(sess, cfg.DeviceID))
		metrics := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		dev.Attach("http", httpctrl.New(sess, ctrls.HTTP.Addr, cfg.DeviceID, metrics))
	}

	if ctrls.MQTT.Enabled {
		mc, err := mqttctrl.New(sess, mqttctrl.Config{
			DeviceID:        cfg.DeviceID,
			BrokerURL:       ctrls.MQTT.BrokerURL,
			ClientID:        ctrls.MQTT.ClientID,
			BaseTopic:       ctrls.MQTT.BaseTopic,
			QoS:             ctrls.MQTT.QoS,
			RetainState:     ctrls.MQTT.RetainState,
			PublishInterval: ctrls.MQTT.PublishInterval,
			Username:        ctrls.MQTT.Username,
			Password:        ctrls.MQTT.Password,
		})
		if err != nil {
			return nil, err
		}
		dev.Attach("mqtt", mc)
	}

	if ctrls.MODBUS.Enabled {
		mb, err := modbusctrl.New(sess, modbusctrl.Config{
			DeviceID: cfg.DeviceID,
			Addr:     ctrls.MODBUS.Addr,
			UnitID:   ctrls.MODBUS.UnitID,
		})
		if err != nil {
			return nil, err
		}
		dev.Attach("modbus", mb)
	}

	return dev, nil
}
