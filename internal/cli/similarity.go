package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/lexicompare/internal/similarity"
)

// similarityCmd represents the similarity command
var similarityCmd = &cobra.Command{
	Use:   "similarity <textA> <textB>",
	Short: "Print the similarity score of two clauses",
	Long: `Similarity prints the Dice coefficient of the character bigrams of two
texts after normalization (lower case, whitespace collapsed), and whether the
configured thresholds would treat them as a match or as identical.

Example:
  lexicompare similarity "Tenant pays rent monthly" "The tenant pays rent each month"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		score := similarity.Score(args[0], args[1])
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%.4f\n", score)

		switch {
		case score > cfg.Matching.IdenticalThreshold:
			fmt.Fprintf(out, "identical (> %.2f)\n", cfg.Matching.IdenticalThreshold)
		case score > cfg.Matching.MatchThreshold:
			fmt.Fprintf(out, "match (> %.2f)\n", cfg.Matching.MatchThreshold)
		default:
			fmt.Fprintf(out, "no match (<= %.2f)\n", cfg.Matching.MatchThreshold)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(similarityCmd)
}
