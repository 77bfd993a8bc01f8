package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

const envPrefix = "THERMOPID_"

type Config struct {
	DeviceID    string            `koanf:"device_id" json:"device_id" yaml:"device_id"`
	LogLevel    string            `koanf:"log_level" json:"log_level" yaml:"log_level"`
	Controllers ControllersConfig `koanf:"controllers" json:"controllers" yaml:"controllers"`

	Simulation SimulationConfig `koanf:"simulation" json:"simulation" yaml:"simulation"`
}

type ControllersConfig struct {
	HTTP   HTTPConfig   `koanf:"http" json:"http" yaml:"http"`
	MQTT   MQTTConfig   `koanf:"mqtt" json:"mqtt" yaml:"mqtt"`
	MODBUS ModbusConfig `koanf:"modbus" json:"modbus" yaml:"modbus"`
}

// SimulationConfig selects the starting scenario and overrides its
// defaults. Unset fields keep the scenario value.
type SimulationConfig struct {
	Scenario string `koanf:"scenario" json:"scenario" yaml:"scenario"`

	StartTemperature    *float64 `koanf:"start_temperature" json:"start_temperature,omitempty" yaml:"start_temperature,omitempty"`
	SetpointTemperature *float64 `koanf:"setpoint_temperature" json:"setpoint_temperature,omitempty" yaml:"setpoint_temperature,omitempty"`
	OutsideTemperature  *float64 `koanf:"outside_temperature" json:"outside_temperature,omitempty" yaml:"outside_temperature,omitempty"`
	SimulationMinutes   *int     `koanf:"simulation_minutes" json:"simulation_minutes,omitempty" yaml:"simulation_minutes,omitempty"`

	RoomVolume   *float64 `koanf:"room_volume" json:"room_volume,omitempty" yaml:"room_volume,omitempty"`
	WallArea     *float64 `koanf:"wall_area" json:"wall_area,omitempty" yaml:"wall_area,omitempty"`
	ExposedWalls *int     `koanf:"exposed_walls" json:"exposed_walls,omitempty" yaml:"exposed_walls,omitempty"`
	LossModel    *string  `koanf:"loss_model" json:"loss_model,omitempty" yaml:"loss_model,omitempty"` // "cube" | "flat"

	HeaterMaxPower      *float64 `koanf:"heater_max_power" json:"heater_max_power,omitempty" yaml:"heater_max_power,omitempty"`
	HeatLossCoefficient *float64 `koanf:"heat_loss_coefficient" json:"heat_loss_coefficient,omitempty" yaml:"heat_loss_coefficient,omitempty"`

	Kp              *float64 `koanf:"kp" json:"kp,omitempty" yaml:"kp,omitempty"`
	Ti              *float64 `koanf:"ti" json:"ti,omitempty" yaml:"ti,omitempty"`
	Td              *float64 `koanf:"td" json:"td,omitempty" yaml:"td,omitempty"`
	Equation        *string  `koanf:"equation" json:"equation,omitempty" yaml:"equation,omitempty"` // "gain-scaled-all" | "gain-scaled-partial"
	ErrorClamp      *float64 `koanf:"error_clamp" json:"error_clamp,omitempty" yaml:"error_clamp,omitempty"`
	DerivativeClamp *bool    `koanf:"derivative_clamp" json:"derivative_clamp,omitempty" yaml:"derivative_clamp,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	BrokerURL       string        `koanf:"broker_url" json:"broker_url" yaml:"broker_url"`
	ClientID        string        `koanf:"client_id" json:"client_id" yaml:"client_id"`
	BaseTopic       string        `koanf:"base_topic" json:"base_topic" yaml:"base_topic"`
	QoS             byte          `koanf:"qos" json:"qos" yaml:"qos"`
	RetainState     bool          `koanf:"retain_state" json:"retain_state" yaml:"retain_state"`
	PublishInterval time.Duration `koanf:"publish_interval" json:"publish_interval" yaml:"publish_interval"`
	Username        string        `koanf:"username" json:"username" yaml:"username"`
	Password        string        `koanf:"password" json:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" json:"unit_id" yaml:"unit_id"`
}

func defaultConfig() Config {
	cfg := Config{
		DeviceID: "default",
		LogLevel: "info",
		Simulation: SimulationConfig{
			Scenario: simulation.DefaultScenario,
		},
	}
	cfg.Controllers.HTTP = HTTPConfig{Enabled: true, Addr: ":8080"}
	cfg.Controllers.MQTT = MQTTConfig{BrokerURL: "tcp://localhost:1883", PublishInterval: 1 * time.Second}
	cfg.Controllers.MODBUS = ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1}
	return cfg
}

// LoadConfig layers defaults, the config file and THERMOPID_* environment
// variables, in that order. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// PORT is common in containers; an explicit address wins.
	if v := os.Getenv("PORT"); v != "" && os.Getenv(envPrefix+"CONTROLLERS_HTTP_ADDR") == "" {
		cfg.Controllers.HTTP.Addr = ":" + v
	}

	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Config file missing → use defaults
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", ext, err)
	}
	return nil
}

// envKeyTransform maps an environment key without prefix to a koanf path:
// CONTROLLERS_HTTP_ADDR → controllers.http.addr, SIMULATION_KP → simulation.kp.
// Keys outside a known section stay flat.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	if strings.HasPrefix(s, "controllers_") {
		parts := strings.SplitN(s, "_", 3)
		if len(parts) < 3 {
			return s
		}
		return strings.Join(parts, ".")
	}
	if rest, ok := strings.CutPrefix(s, "simulation_"); ok && rest != "" {
		return "simulation." + rest
	}
	return s
}

func applyDefaults(cfg *Config) {
	if cfg.DeviceID == "" {
		cfg.DeviceID = "default"
	}
	if !cfg.Controllers.HTTP.Enabled && !cfg.Controllers.MQTT.Enabled && !cfg.Controllers.MODBUS.Enabled {
		cfg.Controllers.HTTP.Enabled = true
	}
	if cfg.Controllers.HTTP.Addr == "" {
		cfg.Controllers.HTTP.Addr = ":8080"
	}
	if cfg.Controllers.MQTT.PublishInterval == 0 {
		cfg.Controllers.MQTT.PublishInterval = 1 * time.Second
	}
	if cfg.Controllers.MODBUS.UnitID == 0 {
		cfg.Controllers.MODBUS.UnitID = 1
	}
	if cfg.Simulation.Scenario == "" {
		cfg.Simulation.Scenario = simulation.DefaultScenario
	}
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := simulation.ParseScenario(c.Simulation.Scenario); err != nil {
		return fmt.Errorf("simulation.scenario: %w", err)
	}
	if c.Controllers.MQTT.QoS > 1 {
		return errors.New("controllers.mqtt.qos must be 0 or 1")
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Input returns the overrides applied on top of the scenario defaults.
func (c Config) Input() simulation.Input {
	s := c.Simulation
	return simulation.Input{}.Merge(simulation.Input{
		StartTemperature:    s.StartTemperature,
		SetpointTemperature: s.SetpointTemperature,
		OutsideTemperature:  s.OutsideTemperature,
		SimulationMinutes:   s.SimulationMinutes,
		RoomVolume:          s.RoomVolume,
		WallArea:            s.WallArea,
		ExposedWalls:        s.ExposedWalls,
		LossModel:           s.LossModel,
		HeaterMaxPower:      s.HeaterMaxPower,
		HeatLossCoefficient: s.HeatLossCoefficient,
		Kp:                  s.Kp,
		Ti:                  s.Ti,
		Td:                  s.Td,
		Equation:            s.Equation,
		ErrorClamp:          s.ErrorClamp,
		DerivativeClamp:     s.DerivativeClamp,
	})
}

// YAML renders the effective configuration. Passwords are masked.
func (c Config) YAML() ([]byte, error) {
	if c.Controllers.MQTT.Password != "" {
		c.Controllers.MQTT.Password = "********"
	}
	return yaml.Marshal(c)
}
