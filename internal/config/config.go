// Package config loads and saves session.SimulationConfig as YAML, the way
// the inference-sim workload package round-trips its WorkloadSpec: a
// yaml.v3 decoder with KnownFields enabled so a typo'd key fails loudly
// instead of silently defaulting.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dsimlab/distsim/packages/engine"
	"github.com/dsimlab/distsim/packages/session"
	"github.com/dsimlab/distsim/packages/topology"
)

// File is the on-disk YAML shape for a session.SimulationConfig (§3, §6).
// Field names are chosen to match the wire JSON the core already uses.
type File struct {
	NodeCount   int    `yaml:"nodeCount"`
	Topology    string `yaml:"topology"`
	AlgorithmId string `yaml:"algorithmId"`

	RandomSeed         int64 `yaml:"randomSeed"`
	MaxSteps           int   `yaml:"maxSteps"`
	MessageDelayMillis int64 `yaml:"messageDelayMillis"`
	CausalOrdering     bool  `yaml:"causalOrdering,omitempty"`
}

// Load reads a SimulationConfig from a YAML file at path.
func Load(path string) (session.SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return session.SimulationConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return session.SimulationConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return fromFile(f), nil
}

// Save writes cfg to path as YAML, overwriting any existing file.
func Save(path string, cfg session.SimulationConfig) error {
	data, err := yaml.Marshal(toFile(cfg))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func fromFile(f File) session.SimulationConfig {
	return session.SimulationConfig{
		NetworkConfig: engine.NetworkConfig{
			NodeCount:    f.NodeCount,
			TopologyType: topology.Type(f.Topology),
		},
		AlgorithmId: f.AlgorithmId,
		DefaultParameters: engine.Parameters{
			RandomSeed:         f.RandomSeed,
			MaxSteps:           f.MaxSteps,
			MessageDelayMillis: f.MessageDelayMillis,
			CausalOrdering:     f.CausalOrdering,
		},
	}
}

func toFile(cfg session.SimulationConfig) File {
	return File{
		NodeCount:          cfg.NetworkConfig.NodeCount,
		Topology:           string(cfg.NetworkConfig.TopologyType),
		AlgorithmId:        cfg.AlgorithmId,
		RandomSeed:         cfg.DefaultParameters.RandomSeed,
		MaxSteps:           cfg.DefaultParameters.MaxSteps,
		MessageDelayMillis: cfg.DefaultParameters.MessageDelayMillis,
		CausalOrdering:     cfg.DefaultParameters.CausalOrdering,
	}
}
