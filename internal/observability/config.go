package observability

import (
	"strings"

	"github.com/smallbiznis/metalid/internal/config"
)

const (
	defaultServiceName = "metalid"
	defaultSampleRatio = 0.1
)

// Config is the telemetry view of the application config shared by the
// logger, tracer and meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	InstanceID  string

	LogLevel  string
	LogFormat string

	Export      bool
	Endpoint    string
	Protocol    string
	SampleRatio float64
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	ratio := cfg.Telemetry.SampleRatio
	if ratio < 0 || ratio > 1 {
		ratio = defaultSampleRatio
	}
	protocol := cfg.Telemetry.Protocol
	if protocol != "http" {
		protocol = "grpc"
	}

	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		InstanceID:  cfg.InstanceID,
		LogLevel:    cfg.Telemetry.LogLevel,
		LogFormat:   cfg.Telemetry.LogFormat,
		Export:      cfg.Telemetry.Export,
		Endpoint:    cfg.OTLPEndpoint,
		Protocol:    protocol,
		SampleRatio: ratio,
	}
}

// Debug is true for the debug log level and for non-production environments.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
