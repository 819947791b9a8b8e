package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"
)

// DefaultStrategies is the registry used when no strategy file is given
var DefaultStrategies = []string{
	"baseline",
	"simple",
	"simple+gsr",
	"scrubbing.5",
	"scrubbing.5+gsr",
	"scrubbing.2",
	"scrubbing.2+gsr",
	"compcor",
	"compcor6",
	"aroma",
	"aroma+gsr",
}

type registry struct {
	Strategies []string `yaml:"strategies"`
}

// ParseStrategies reads a registry document of the form
//
//	strategies:
//	  - baseline
//	  - simple
func ParseStrategies(data []byte) ([]string, error) {
	var reg registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("[ERROR] ParseStrategies: %v", err)
	}
	if len(reg.Strategies) == 0 {
		return nil, fmt.Errorf("[ERROR] ParseStrategies: no strategies listed")
	}

	return checkStrategies(reg.Strategies)
}

// checkStrategies trims names and rejects empty, duplicate or pattern-breaking
// ones
func checkStrategies(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("[ERROR] checkStrategies: empty strategy name")
		}
		if strings.ContainsAny(name, "/_*?[") {
			return nil, fmt.Errorf("[ERROR] checkStrategies: strategy %q is not a file name fragment", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("[ERROR] checkStrategies: duplicate strategy %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out, nil
}

// LoadStrategies reads the registry at path, or returns the default registry
// when path is empty.
func LoadStrategies(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), DefaultStrategies...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	strategies, err := ParseStrategies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}

	return strategies, nil
}

// ResolveStrategies returns the strategies named on the command line, or the
// registry of StrategyFile when none were named.
func (c Config) ResolveStrategies() ([]string, error) {
	if len(c.Strategies) > 0 {
		return checkStrategies(c.Strategies)
	}
	return LoadStrategies(c.StrategyFile)
}
