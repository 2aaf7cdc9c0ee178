package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trivia-race-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		File string `yaml:"file"`
		TTL  string `yaml:"ttl"`
	} `yaml:"questions"`
	Game struct {
		MaxPlayers       int    `yaml:"max_players"`
		MinPlayers       int    `yaml:"min_players"`
		QuestionDuration string `yaml:"question_duration"`
		DeadlineMargin   string `yaml:"deadline_margin"`
		WaitingGrace     string `yaml:"waiting_grace"`
		CleanupDelay     string `yaml:"cleanup_delay"`
		ResultsPause     string `yaml:"results_pause"`
	} `yaml:"game"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// GameSettings overlays the configured game parameters on the defaults.
func (c Config) GameSettings() domain.Settings {
	s := domain.DefaultSettings()
	if c.Game.MaxPlayers > 0 {
		s.MaxPlayers = c.Game.MaxPlayers
	}
	if c.Game.MinPlayers > 0 {
		s.MinPlayers = c.Game.MinPlayers
	}
	s.QuestionDuration = TTLDuration(c.Game.QuestionDuration, s.QuestionDuration)
	s.DeadlineMargin = TTLDuration(c.Game.DeadlineMargin, s.DeadlineMargin)
	s.WaitingGrace = TTLDuration(c.Game.WaitingGrace, s.WaitingGrace)
	s.CleanupDelay = TTLDuration(c.Game.CleanupDelay, s.CleanupDelay)
	s.ResultsPause = TTLDuration(c.Game.ResultsPause, s.ResultsPause)
	return s
}
