package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/MegaGrindStone/viator-web-ui/internal/handlers"
	"github.com/MegaGrindStone/viator-web-ui/internal/session"
	"github.com/MegaGrindStone/viator-web-ui/internal/stream"
	"gopkg.in/yaml.v3"
)

type config struct {
	Port          string              `yaml:"port"`
	LogLevel      slog.Level          `yaml:"logLevel"`
	Agent         agentConfig         `yaml:"agent"`
	Stream        streamConfig        `yaml:"stream"`
	Conversations conversationsConfig `yaml:"conversations"`
}

type agentConfig struct {
	URL                   string        `yaml:"url"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout"`
}

type streamConfig struct {
	MaxFrameSize int  `yaml:"maxFrameSize"`
	StrictEOF    bool `yaml:"strictEOF"`
	ToolMarkers  bool `yaml:"toolMarkers"`
}

type conversationsConfig struct {
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

const (
	defaultPort                  = "8080"
	defaultResponseHeaderTimeout = 60 * time.Second
	defaultIdleTimeout           = 30 * time.Minute
	defaultSweepInterval         = 5 * time.Minute
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port          string              `yaml:"port"`
		LogLevel      string              `yaml:"logLevel"`
		Agent         agentConfig         `yaml:"agent"`
		Stream        map[string]any      `yaml:"stream"`
		Conversations conversationsConfig `yaml:"conversations"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	if c.Port == "" {
		c.Port = defaultPort
	}

	c.LogLevel = slog.LevelInfo
	if rawConfig.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(rawConfig.LogLevel)); err != nil {
			return fmt.Errorf("invalid logLevel: %w", err)
		}
	}

	c.Agent = rawConfig.Agent
	if c.Agent.URL == "" {
		c.Agent.URL = os.Getenv("VIATOR_AGENT_URL")
	}
	if c.Agent.URL == "" {
		return fmt.Errorf("agent url is required")
	}
	if _, err := url.ParseRequestURI(c.Agent.URL); err != nil {
		return fmt.Errorf("invalid agent url: %w", err)
	}
	if c.Agent.ResponseHeaderTimeout == 0 {
		c.Agent.ResponseHeaderTimeout = defaultResponseHeaderTimeout
	}

	// toolMarkers defaults to true, which a plain bool field can't tell apart from "unset".
	c.Stream = streamConfig{ToolMarkers: true}
	streamRawYAML, err := yaml.Marshal(rawConfig.Stream)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(streamRawYAML, &c.Stream); err != nil {
		return err
	}
	if c.Stream.MaxFrameSize < 0 {
		return fmt.Errorf("stream maxFrameSize must not be negative")
	}
	if c.Stream.MaxFrameSize == 0 {
		c.Stream.MaxFrameSize = stream.DefaultMaxFrameSize
	}

	c.Conversations = rawConfig.Conversations
	if c.Conversations.IdleTimeout == 0 {
		c.Conversations.IdleTimeout = defaultIdleTimeout
	}
	if c.Conversations.SweepInterval == 0 {
		c.Conversations.SweepInterval = defaultSweepInterval
	}

	return nil
}

func (c config) handlersConfig() handlers.Config {
	return handlers.Config{
		Session: session.Options{
			MaxFrameSize: c.Stream.MaxFrameSize,
			StrictEOF:    c.Stream.StrictEOF,
			ToolMarkers:  c.Stream.ToolMarkers,
		},
		IdleTimeout:   c.Conversations.IdleTimeout,
		SweepInterval: c.Conversations.SweepInterval,
	}
}
