package cmd

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/eventq/datarecording"
)

func newReportCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "report <recording.sqlite3>",
		Short: "Summarize the hold runs stored by bench --record",
		Long: `report averages the recorded hold runs per distribution, ` +
			`queue size and strategy, and names the fastest strategy of ` +
			`each group.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if _, err := loadConfig(c.Flags()); err != nil {
				return err
			}

			return runReport(c.Context(), args[0], c.OutOrStdout())
		},
	}

	return c
}

// ReportGroup summarizes the runs of one distribution and size.
type ReportGroup struct {
	Distribution string            `yaml:"distribution"`
	Size         int               `yaml:"size"`
	Fastest      string            `yaml:"fastest"`
	Strategies   []StrategySummary `yaml:"strategies"`
}

// StrategySummary is the average of the recorded runs of one strategy.
// HoldMeanNS is the mean cost of one dequeue plus one enqueue.
type StrategySummary struct {
	Strategy   string  `yaml:"strategy"`
	Runs       int     `yaml:"runs"`
	HoldMeanNS float64 `yaml:"hold_mean_ns"`
	Rebuilds   float64 `yaml:"rebuilds"`
}

type groupKey struct {
	distribution string
	size         int
}

func runReport(ctx context.Context, file string, out io.Writer) error {
	if _, err := os.Stat(file); err != nil {
		return errors.Wrap(err, "cannot open recording")
	}

	r := datarecording.NewReader(file)
	defer r.Close()

	r.MapTable(holdTable, holdRow{})

	rows, _, err := datarecording.QueryAs[holdRow](ctx, r, holdTable,
		datarecording.QueryParams{OrderBy: "Distribution, Size, Strategy"})
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return errors.Errorf("%s holds no hold runs", file)
	}

	groups := summarize(rows)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(groups); err != nil {
		return errors.Wrap(err, "cannot write report")
	}

	return enc.Close()
}

// summarize expects rows ordered by distribution, size and strategy.
func summarize(rows []holdRow) []ReportGroup {
	var (
		groups []ReportGroup
		last   groupKey
	)

	for _, row := range rows {
		key := groupKey{row.Distribution, row.Size}
		if len(groups) == 0 || key != last {
			groups = append(groups, ReportGroup{
				Distribution: row.Distribution,
				Size:         row.Size,
			})
			last = key
		}

		g := &groups[len(groups)-1]

		n := len(g.Strategies)
		if n == 0 || g.Strategies[n-1].Strategy != row.Strategy {
			g.Strategies = append(g.Strategies,
				StrategySummary{Strategy: row.Strategy})
			n++
		}

		s := &g.Strategies[n-1]
		s.Runs++
		s.HoldMeanNS += (row.EnqueueMeanNS + row.DequeueMeanNS -
			s.HoldMeanNS) / float64(s.Runs)
		s.Rebuilds += (float64(row.Rebuilds) - s.Rebuilds) / float64(s.Runs)
	}

	for i := range groups {
		g := &groups[i]

		sort.SliceStable(g.Strategies, func(a, b int) bool {
			return g.Strategies[a].HoldMeanNS < g.Strategies[b].HoldMeanNS
		})

		g.Fastest = g.Strategies[0].Strategy
	}

	return groups
}
