package config

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	koanflib "github.com/knadh/koanf/v2"

	"github.com/casarerpa/engine/engine/core"
)

// SourceType names a configuration layer, innermost (lowest precedence)
// first.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
)

// Source is one layer of configuration to merge into a koanf instance, in
// the order given to Service.Load.
type Source interface {
	Apply(k *koanflib.Koanf) error
	Type() SourceType
}

type defaultSource struct{}

// NewDefaultSource seeds k with Default()'s values via reflection over
// struct tags, so later sources only need to set what they override.
func NewDefaultSource() Source { return defaultSource{} }

func (defaultSource) Type() SourceType { return SourceDefault }

func (defaultSource) Apply(k *koanflib.Koanf) error {
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return core.NewError(err, core.ErrInternal, map[string]any{"op": "config_load_defaults"})
	}
	return nil
}

type envSource struct{ prefix string }

// NewEnvSource loads environment variables with prefix, mapping
// "CASARE_SCHEDULER_MAX_PARALLEL" to the "scheduler.max_parallel" key.
func NewEnvSource(prefix string) Source { return envSource{prefix: prefix} }

func (envSource) Type() SourceType { return SourceEnv }

func (s envSource) Apply(k *koanflib.Koanf) error {
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: s.prefix,
		TransformFunc: func(key, value string) (string, any) {
			return toKoanfKey(trimPrefix(key, s.prefix)), value
		},
	}), nil)
	if err != nil {
		return core.NewError(err, core.ErrInternal, map[string]any{"op": "config_load_env"})
	}
	return nil
}

type yamlSource struct{ path string }

// NewYAMLFileSource loads path as a YAML config layer. A missing file is
// not an error: YAML config is optional, defaults plus env usually suffice.
func NewYAMLFileSource(path string) Source { return yamlSource{path: path} }

func (yamlSource) Type() SourceType { return SourceYAML }

func (s yamlSource) Apply(k *koanflib.Koanf) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return core.NewError(err, core.ErrInternal, map[string]any{"op": "config_read_yaml", "path": s.path})
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return core.NewError(err, core.ErrWorkflowValidation, map[string]any{"op": "config_parse_yaml", "path": s.path})
	}
	if err := k.Load(confmap.Provider(doc, "."), nil); err != nil {
		return core.NewError(err, core.ErrInternal, map[string]any{"op": "config_load_yaml", "path": s.path})
	}
	return nil
}

func trimPrefix(key, prefix string) string {
	if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

func toKoanfKey(envKey string) string {
	out := make([]byte, 0, len(envKey))
	for _, c := range envKey {
		switch {
		case c == '_':
			out = append(out, '.')
		case c >= 'A' && c <= 'Z':
			out = append(out, byte(c-'A'+'a'))
		default:
			out = append(out, byte(c))
		}
	}
	return string(out)
}
