package config

import "time"

// Config represents the daemon configuration
type Config struct {
	LogLevel string    `yaml:"log_level"`
	Server   Server    `yaml:"server"`
	Defaults *Defaults `yaml:"defaults,omitempty"`
}

// Server controls the gRPC and HTTP listeners
type Server struct {
	GRPCAddr        string `yaml:"grpc_addr"`
	HTTPAddr        string `yaml:"http_addr"`
	GracefulTimeout string `yaml:"graceful_timeout"` // e.g., "10s"
}

// Defaults fill simulation parameters a scenario leaves unset. A nil
// pointer means "no daemon default".
type Defaults struct {
	Samples *int     `yaml:"samples,omitempty"`
	PFail   *float64 `yaml:"p_fail,omitempty"`
	Model   string   `yaml:"model"`
	Seed    *int64   `yaml:"seed,omitempty"`
	Workers int      `yaml:"workers"`
}

// GetGracefulTimeout parses the graceful timeout, defaulting to 10s
func (s *Server) GetGracefulTimeout() (time.Duration, error) {
	if s.GracefulTimeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(s.GracefulTimeout)
}
