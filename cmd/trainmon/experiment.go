package main

import (
	"github.com/tailored-agentic-units/trainmon/config"
	"github.com/tailored-agentic-units/trainmon/monitor"
	"github.com/tailored-agentic-units/trainmon/train"
)

// settings is the "train" section of the experiment tree.
type settings struct {
	train.Config
	SamplesPerStep int    `json:"samples_per_step,omitempty"`
	Seed           uint64 `json:"seed,omitempty"`
}

func defaultSettings() settings {
	return settings{
		Config:         train.DefaultConfig(),
		SamplesPerStep: 32,
		Seed:           1,
	}
}

// defaultExperiment installs a hub with a printer, a stats ledger and an
// event log under logDir, plus the train section. A YAML file and
// --configs.* overrides are applied on top.
func defaultExperiment(c *config.Configs, logDir string) error {
	hub, err := config.NewFunc(c.Registry, monitor.FuncMonitors)
	if err != nil {
		return err
	}
	printer, err := config.NewFunc(c.Registry, monitor.FuncScalarPrinter)
	if err != nil {
		return err
	}
	stats, err := config.NewFunc(c.Registry, monitor.FuncJSONWriter, config.WithEntry("log_dir", logDir))
	if err != nil {
		return err
	}
	events, err := config.NewFunc(c.Registry, monitor.FuncEventWriter, config.WithEntry("log_dir", logDir))
	if err != nil {
		return err
	}

	d := defaultSettings()
	entries := []struct {
		path  string
		value any
	}{
		{"monitors", hub},
		{"monitors.sinks.printer", printer},
		{"monitors.sinks.json", stats},
		{"monitors.sinks.events", events},
		{"train.steps_per_epoch", d.StepsPerEpoch},
		{"train.starting_epoch", d.StartingEpoch},
		{"train.max_epoch", d.MaxEpoch},
		{"train.samples_per_step", d.SamplesPerStep},
		{"train.seed", d.Seed},
	}
	for _, e := range entries {
		if err := c.Root.Set(e.path, e.value); err != nil {
			return err
		}
	}
	return nil
}

// loadTrainSection decodes the train section over the defaults.
func loadTrainSection(c *config.Configs) (settings, error) {
	s := defaultSettings()
	node, ok := c.Root.Child("train")
	if !ok {
		return s, nil
	}
	if err := node.Decode(&s); err != nil {
		return s, err
	}
	return s, nil
}
