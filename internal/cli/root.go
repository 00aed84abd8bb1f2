// Package cli provides the stratactl command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strataml/strata/internal/config"
	"github.com/strataml/strata/internal/system"
)

var (
	sys        *system.System
	outputText bool // --text flag for human-readable output (default is JSON)
	dataPath   string
	engine     string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "stratactl",
	Short: "Inspect and maintain a Strata memory store",
	Long: `stratactl - operations CLI for the Strata memory system

Works directly against the snapshot files, so stop the web server first
(or point --data at a copy).

Examples:
  stratactl query --intent factual_qa --query "rate limit"
  stratactl health
  stratactl summary
  stratactl consolidate
  stratactl diagnose "timeout"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		cfg := config.Load()
		if dataPath != "" {
			cfg.Storage.DataPath = dataPath
		}
		if engine != "" {
			cfg.Storage.Engine = engine
		}
		var err error
		sys, err = system.New(cfg, nil)
		if err != nil {
			return fmt.Errorf("failed to open memory store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sys != nil {
			sys.Close()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputText, "text", false, "Human-readable text output (default is JSON)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Data directory (default: STRATA_DATA_PATH or ./data)")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "Storage engine: json or sqlite")

	rootCmd.AddCommand(versionCmd)
}

// outputResult prints the result as indented JSON, or %+v with --text.
func outputResult(result any) {
	if outputText {
		fmt.Printf("%+v\n", result)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}

func outputError(err error) {
	if outputText {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	enc := json.NewEncoder(os.Stderr)
	enc.Encode(map[string]any{"status": "error", "error": err.Error()})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stratactl version 1.0.0")
	},
}
