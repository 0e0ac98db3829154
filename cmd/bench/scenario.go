package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tripbench/internal/modules/benchmark"
)

// Scenario is one benchmark file.
type Scenario struct {
	Name        string             `yaml:"name"`
	Flow        benchmark.Flow     `yaml:"flow"`
	Scenario    benchmark.Scenario `yaml:"scenario"`
	Targets     []benchmark.Target `yaml:"targets"`
	RunCount    int                `yaml:"runCount"`
	Concurrency int                `yaml:"concurrency"`
}

func loadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return parseScenario(raw)
}

func parseScenario(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Flow == "" {
		sc.Flow = benchmark.FlowClassic
	}
	if len(sc.Targets) == 0 {
		return nil, errors.New("scenario has no targets")
	}
	return &sc, nil
}

func (sc *Scenario) command() benchmark.RunCommand {
	return benchmark.RunCommand{
		SessionName: sc.Name,
		Flow:        sc.Flow,
		Scenario:    sc.Scenario,
		Targets:     sc.Targets,
		RunCount:    sc.RunCount,
		Concurrency: sc.Concurrency,
		CreatedBy:   "cli",
	}
}
