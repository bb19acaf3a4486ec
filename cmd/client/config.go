package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config defines the client-side environment variables.
type Config struct {
	Host           string        `envconfig:"CHAT_SERVER_HOST" default:"localhost"`
	TCPPort        int           `envconfig:"CHAT_TCP_PORT" default:"12345"`
	UDPPort        int           `envconfig:"CHAT_UDP_PORT" default:"12346"`
	Username       string        `envconfig:"CHAT_USERNAME"`
	ConnectTimeout time.Duration `envconfig:"CHAT_CONNECT_TIMEOUT" default:"5s"`
	// CHAT_COLOURS renders each record kind in its own colour
	Colours  bool   `envconfig:"CHAT_COLOURS" default:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
