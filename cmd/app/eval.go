package main

import (
	"encoding/json"
	"fmt"
	"os"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/pkg/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newEvalCmd() *cobra.Command {
	var useConfig bool
	cmd := &cobra.Command{
		Use:   "eval <observables.yaml|json>",
		Short: "Evaluate one set of market observables and print the snapshot",
		Long: `Reads market observables from a YAML or JSON file and prints the
derived stability snapshot as JSON. No infrastructure is contacted. With
--use-config the economics section of the config file replaces the default
parameters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := econ.NewDefault()
			if useConfig {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if engine, err = econ.New(cfg.Economics); err != nil {
					return err
				}
			}
			return runEval(cmd, engine, args[0])
		},
	}
	cmd.Flags().BoolVar(&useConfig, "use-config", false, "take parameters from the config file")
	return cmd
}

func runEval(cmd *cobra.Command, engine *econ.Engine, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read observables: %w", err)
	}
	// JSON is valid YAML
	var obs econ.MarketObservables
	if err := yaml.Unmarshal(b, &obs); err != nil {
		return fmt.Errorf("parse observables: %w", err)
	}

	snap, err := engine.Evaluate(obs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
