package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/worksync/pkg/domain/rank"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Compute backlog rank keys",
}

var rankHigherCmd = &cobra.Command{
	Use:   "higher <rank>",
	Short: "Print the rank sorting directly after <rank>",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), rank.HigherPriority(args[0]))
	},
}

var rankLowerCmd = &cobra.Command{
	Use:   "lower <rank>",
	Short: "Print the rank sorting directly before <rank>",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), rank.LowerPriority(args[0]))
	},
}

var rankAboveCmd = &cobra.Command{
	Use:   "above <rank>...",
	Short: "Print a rank that sorts after every given rank",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), rank.Adjacent(args, rank.Above))
	},
}

var rankBelowCmd = &cobra.Command{
	Use:   "below <rank>...",
	Short: "Print a rank that sorts before every given rank",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), rank.Adjacent(args, rank.Below))
	},
}

func init() {
	rankCmd.AddCommand(rankHigherCmd)
	rankCmd.AddCommand(rankLowerCmd)
	rankCmd.AddCommand(rankAboveCmd)
	rankCmd.AddCommand(rankBelowCmd)
	RootCmd.AddCommand(rankCmd)
}
