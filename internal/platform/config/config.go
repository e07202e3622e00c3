package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"hookgate/internal/gateway/mode"
	"hookgate/internal/gateway/models"
	strs "hookgate/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr            string        `env:"HOOKGATE_ADDR"             envDefault:":8080"       validate:"required"`
	Environment     string        `env:"HOOKGATE_ENV"              envDefault:"development" validate:"required"`
	Instance        string        `env:"HOOKGATE_INSTANCE"         envDefault:"hookgate"    validate:"required,max=64,excludesall= /"`
	LogLevel        string        `env:"HOOKGATE_LOG_LEVEL"        envDefault:"info"        validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `env:"HOOKGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"         validate:"gt=0"`
	TrustedProxies  []string      `env:"HOOKGATE_TRUSTED_PROXIES"  envSeparator:","`
	CORSOrigins     []string      `env:"HOOKGATE_CORS_ORIGINS"     envDefault:"*"           envSeparator:","`

	Webhooks Webhooks `envPrefix:"HOOKGATE_"`
}

// Webhooks is the per-channel test/production destination table.
type Webhooks struct {
	ChatTest     string `env:"CHAT_TEST_URL"     validate:"required,http_url"`
	ChatProd     string `env:"CHAT_PROD_URL"     validate:"required,http_url"`
	DocumentTest string `env:"DOCUMENT_TEST_URL" validate:"required,http_url"`
	DocumentProd string `env:"DOCUMENT_PROD_URL" validate:"required,http_url"`
	ImageTest    string `env:"IMAGE_TEST_URL"    validate:"required,http_url"`
	ImageProd    string `env:"IMAGE_PROD_URL"    validate:"required,http_url"`
	VideoTest    string `env:"VIDEO_TEST_URL"    validate:"required,http_url"`
	VideoProd    string `env:"VIDEO_PROD_URL"    validate:"required,http_url"`
	AudioTest    string `env:"AUDIO_TEST_URL"    validate:"required,http_url"`
	AudioProd    string `env:"AUDIO_PROD_URL"    validate:"required,http_url"`
}

// Pairs arranges the table by channel for mode.New.
func (w Webhooks) Pairs() map[models.Channel]mode.Pair {
	return map[models.Channel]mode.Pair{
		models.ChannelChat:     {Test: w.ChatTest, Production: w.ChatProd},
		models.ChannelDocument: {Test: w.DocumentTest, Production: w.DocumentProd},
		models.ChannelImage:    {Test: w.ImageTest, Production: w.ImageProd},
		models.ChannelVideo:    {Test: w.VideoTest, Production: w.VideoProd},
		models.ChannelAudio:    {Test: w.AudioTest, Production: w.AudioProd},
	}
}

// Level maps LogLevel to a slog level. Unknown values fall back to info.
func (s Server) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// FromEnv parses and validates the configuration. Any missing or malformed
// webhook URL is an error so the process refuses to start.
func FromEnv() (Server, error) {
	return parse(env.Options{})
}

// FromMap is FromEnv over an explicit environment, used by tests and the CLI.
func FromMap(environment map[string]string) (Server, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.TrustedProxies = strs.DedupeAndTrim(cfg.TrustedProxies)
	cfg.CORSOrigins = strs.DedupeAndTrim(cfg.CORSOrigins)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Server{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
