package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strataml/strata/internal/retrieval"
	"github.com/strataml/strata/internal/system"
	"github.com/strataml/strata/pkg/types"
)

var (
	queryIntent     string
	queryText       string
	queryMinConf    float64
	queryMax        int
	storeCategory   string
	storeSource     string
	storeConfidence float64
	tracesType      string
	tracesCount     int
	summaryTitle    string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a gated retrieval against the store",
	Run: func(cmd *cobra.Command, args []string) {
		opts := retrieval.RetrieveOptions{Query: queryText, MaxItems: queryMax}
		if cmd.Flags().Changed("min-confidence") {
			opts.MinConfidence = &queryMinConf
		}
		res, err := sys.Retrieve(retrieval.Intent(queryIntent), opts)
		if err != nil {
			outputError(err)
			os.Exit(1)
		}
		outputResult(res)
	},
}

var storeCmd = &cobra.Command{
	Use:   "store <content>",
	Short: "Store a claim with contradiction checking",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		category, err := types.ParseCategory(storeCategory)
		if err != nil {
			outputError(err)
			os.Exit(1)
		}
		result := sys.CheckAndStore(args[0], category, system.StoreOptions{
			Source:     storeSource,
			Confidence: storeConfidence,
		})
		outputResult(result)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show drift, policy, and persistence health",
	Run: func(cmd *cobra.Command, args []string) {
		outputResult(sys.GetHealthStatus())
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the re-grounding summary",
	Run: func(cmd *cobra.Command, args []string) {
		if outputText {
			fmt.Println(sys.GenerateSummary(summaryTitle))
			return
		}
		outputResult(map[string]string{"summary": sys.GenerateSummary(summaryTitle)})
	},
}

var consolidateCmd = &cobra.Command{
	Use:     "consolidate",
	Aliases: []string{"prune"},
	Short:   "Prune decayed memories and stale state",
	Run: func(cmd *cobra.Command, args []string) {
		outputResult(sys.Consolidate())
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <keyword>",
	Short: "Search episodic traces for a keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		outputResult(sys.Diagnose(args[0]))
	},
}

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Show recent episodic traces",
	Run: func(cmd *cobra.Command, args []string) {
		outputResult(sys.RecentTraces(tracesCount, tracesType))
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryIntent, "intent", "factual_qa", "Retrieval intent")
	queryCmd.Flags().StringVar(&queryText, "query", "", "Query text for relevance scoring")
	queryCmd.Flags().Float64Var(&queryMinConf, "min-confidence", 0, "Override the policy confidence floor")
	queryCmd.Flags().IntVar(&queryMax, "max", 10, "Maximum items to return")

	storeCmd.Flags().StringVar(&storeCategory, "category", "FACTUAL", "Memory category")
	storeCmd.Flags().StringVar(&storeSource, "source", "user_input", "Claim source")
	storeCmd.Flags().Float64Var(&storeConfidence, "confidence", 0.8, "Initial confidence")

	summaryCmd.Flags().StringVar(&summaryTitle, "title", "", "Summary heading (default: Current State)")

	tracesCmd.Flags().StringVar(&tracesType, "type", "", "Filter by event type")
	tracesCmd.Flags().IntVar(&tracesCount, "n", 20, "Number of traces")

	rootCmd.AddCommand(queryCmd, storeCmd, healthCmd, summaryCmd, consolidateCmd, diagnoseCmd, tracesCmd)
}
