package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wonny/breakscan/internal/universe"
)

// universeCmd lists scan candidates in priority order
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "스캔 대상 종목 조회 (우선순위 순)",
	Long: `Lists the symbols a scan would visit, in scan order:
primary index tier, secondary tier, then the rest alphabetically.

Example:
  go run ./cmd/scanner universe
  go run ./cmd/scanner universe --sector Healthcare --limit 10
  go run ./cmd/scanner universe --sectors`,
	RunE: runUniverse,
}

var (
	universeSector  string
	universeLimit   int
	universeSectors bool
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.Flags().StringVar(&universeSector, "sector", "", "only this sector")
	universeCmd.Flags().IntVar(&universeLimit, "limit", 0, "at most N symbols")
	universeCmd.Flags().BoolVar(&universeSectors, "sectors", false, "list sectors with symbol counts")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	u := a.universe

	if universeSectors {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SECTOR\tSYMBOLS")
		for _, sector := range u.Sectors() {
			fmt.Fprintf(tw, "%s\t%d\n", sector, len(universe.Candidates(u, sector, 0)))
		}
		return tw.Flush()
	}

	symbols := universe.Candidates(u, universeSector, universeLimit)

	fmt.Printf("Universe source: %s (%d symbols)\n\n", a.cfg.Universe.Source, u.Count())
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSYMBOL\tSECTOR\tTIER")
	for i, sym := range symbols {
		sector, _ := u.Sector(sym)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, sym, sector, u.Tier(sym))
	}
	return tw.Flush()
}
