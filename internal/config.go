package internal

import (
	"chat-relay/runtime"
	"chat-relay/session"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	Host                      string        `env:"CHAT_HOST,default=127.0.0.1" validate:"required"`
	TCPPort                   int           `env:"CHAT_TCP_PORT,default=12345" validate:"min=0,max=65535"`
	UDPPort                   int           `env:"CHAT_UDP_PORT,default=12346" validate:"min=0,max=65535"`
	LogLevel                  string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	OutboxSize                int           `env:"OUTBOX_SIZE,default=256" validate:"min=1"`
	WriteTimeout              time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	SendGrace                 time.Duration `env:"SEND_GRACE,default=20ms" validate:"min=0"`
	MaxFrameSize              int           `env:"MAX_FRAME_SIZE,default=65536" validate:"min=64"`
	MaxDatagramSize           int           `env:"MAX_DATAGRAM_SIZE,default=1024" validate:"min=1,max=65507"`
	RestartInterval           time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	HealthInterval            time.Duration `env:"HEALTH_INTERVAL,default=0s" validate:"min=0"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	ModerationDir             string        `env:"MODERATION_DIR"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := CharacterRune(c.ModerationCharReplacement); err != nil {
		return err
	}
	return nil
}

// ServerOptions maps the configuration onto the runtime options.
func (c Config) ServerOptions() (runtime.Options, error) {
	replacement, err := CharacterRune(c.ModerationCharReplacement)
	if err != nil {
		return runtime.Options{}, err
	}
	return runtime.Options{
		Host:    c.Host,
		TCPPort: c.TCPPort,
		UDPPort: c.UDPPort,
		Session: session.Settings{
			OutboxSize:   c.OutboxSize,
			WriteTimeout: c.WriteTimeout,
			MaxFrameSize: c.MaxFrameSize,
			SendGrace:    c.SendGrace,
		},
		MaxDatagramSize: c.MaxDatagramSize,
		RestartInterval: c.RestartInterval,
		HealthInterval:  c.HealthInterval,
		ShutdownTimeout: c.ShutdownTimeout,
		ModerationDir:   c.ModerationDir,
		CharReplacement: replacement,
	}, nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
