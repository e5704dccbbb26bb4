package config

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	koanflib "github.com/knadh/koanf/v2"

	"github.com/casarerpa/engine/engine/core"
)

// Service loads and validates Config values from a chain of Sources.
type Service struct {
	validate *validator.Validate
}

// NewService builds a Service with struct-tag validation wired in.
func NewService() *Service {
	return &Service{validate: validator.New()}
}

// Validate checks cfg against its `validate` struct tags.
func (s *Service) Validate(cfg *Config) error {
	if err := s.validate.Struct(cfg); err != nil {
		return core.NewError(fmt.Errorf("configuration validation failed: %w", err),
			core.ErrWorkflowValidation, nil)
	}
	return nil
}

// Load merges sources in order (each later source overriding keys the
// earlier ones set) on top of the built-in defaults, unmarshals the result
// into a Config, and validates it.
func (s *Service) Load(_ context.Context, sources ...Source) (*Config, error) {
	k := koanflib.New(".")
	if err := NewDefaultSource().Apply(k); err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := src.Apply(k); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, core.NewError(err, core.ErrInternal, map[string]any{"op": "config_unmarshal"})
	}
	if err := s.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
