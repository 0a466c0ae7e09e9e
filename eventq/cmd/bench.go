package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/eventq/datarecording"
	"github.com/sarchlab/eventq/monitoring"
	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/rng"
	"github.com/sarchlab/eventq/sim/workload"
)

const holdTable = "hold"

func newBenchCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "bench",
		Short: "Measure the strategies with the hold model",
		Long: `bench fills a queue with --sizes events and performs ` +
			`--operations hold operations on it, for every strategy. ` +
			`Every strategy sees the same increments. The results are ` +
			`printed as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c.Flags())
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			if cfg.Output != "" {
				f, err := os.Create(cfg.Output)
				if err != nil {
					return errors.Wrap(err, "cannot create report")
				}
				defer f.Close()

				out = f
			}

			return runBench(c.Context(), cfg, out)
		},
	}

	f := c.Flags()
	f.IntSlice("sizes", []int{1000, 10000, 100000}, "queue sizes to measure")
	f.String("record", "", "record the results into <record>.sqlite3")
	f.Bool("monitor", false, "serve the queue monitor while running")
	f.Int("port", 0, "port of the monitor, 0 for a random port")
	f.Bool("browser", false, "open the monitor in a browser")
	f.StringP("output", "o", "", "write the report to a file")

	return c
}

// BenchReport is the YAML document printed by bench.
type BenchReport struct {
	Seed         int64      `yaml:"seed"`
	Distribution string     `yaml:"distribution"`
	Mean         float64    `yaml:"mean"`
	TieBreak     string     `yaml:"tie_break"`
	Runs         []BenchRun `yaml:"runs"`
}

// BenchRun is the result of one strategy at one size.
type BenchRun struct {
	workload.HoldResult `yaml:",inline"`

	Strategy string                  `yaml:"strategy"`
	Buckets  *eventqueue.BucketStats `yaml:"buckets,omitempty"`
}

// holdRow is a BenchRun flattened into the columns of the hold table.
type holdRow struct {
	Strategy      string
	Distribution  string
	TieBreak      string
	Seed          int64
	Size          int
	Operations    int
	ElapsedNS     int64
	EnqueueMeanNS float64
	EnqueueP99NS  float64
	DequeueMeanNS float64
	DequeueP99NS  float64
	BucketCount   int
	Rebuilds      int
}

func runBench(ctx context.Context, cfg Config, out io.Writer) error {
	strategies, err := cfg.strategies()
	if err != nil {
		return err
	}

	if len(cfg.Sizes) == 0 {
		return errors.New("no queue size selected")
	}

	var mon *monitoring.Monitor
	if cfg.Monitor {
		mon = monitoring.NewMonitor().
			WithPortNumber(cfg.Port).
			WithBrowser(cfg.Browser)

		if _, err := mon.StartServer(); err != nil {
			return err
		}

		defer stopMonitor(mon)
	}

	var recorder datarecording.DataRecorder
	if cfg.Record != "" {
		recorder = datarecording.New(cfg.Record)
		recorder.CreateTable(holdTable, holdRow{})

		defer recorder.Close()
	}

	var bar *monitoring.ProgressBar
	if mon != nil {
		bar = mon.CreateProgressBar("bench",
			uint64(len(strategies)*len(cfg.Sizes)))
		defer mon.CompleteProgressBar(bar)
	}

	report := BenchReport{
		Seed:         cfg.Seed,
		Distribution: cfg.Distribution,
		Mean:         cfg.Mean,
		TieBreak:     cfg.TieBreak,
	}

	for _, size := range cfg.Sizes {
		for _, s := range strategies {
			if err := ctx.Err(); err != nil {
				return err
			}

			if bar != nil {
				bar.IncrementInProgress(1)
			}

			run, err := benchOne(cfg, s, size, mon)
			if err != nil {
				return errors.Wrapf(err, "%s with %d events", s, size)
			}

			if bar != nil {
				bar.MoveInProgressToFinished(1)
			}

			if recorder != nil {
				recorder.InsertData(holdTable, toHoldRow(cfg, run))
			}

			report.Runs = append(report.Runs, run)
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "cannot write report")
	}

	return enc.Close()
}

func benchOne(
	cfg Config,
	s eventqueue.Strategy,
	size int,
	mon *monitoring.Monitor,
) (BenchRun, error) {
	name := fmt.Sprintf("%s/%d", s, size)

	b, err := cfg.queueBuilder(s, name)
	if err != nil {
		return BenchRun{}, err
	}

	// Every run replays the same increments.
	src := rng.NewPartitionedRNG(cfg.Seed).ForSubsystem(rng.SubsystemWorkload)

	inc, err := workload.NewIncrement(cfg.Distribution, cfg.Mean, src)
	if err != nil {
		return BenchRun{}, err
	}

	q := eventqueue.Build[int, float64](b.WithCapacity(size))
	if mon != nil {
		synced := eventqueue.NewSynchronized(q)
		mon.RegisterQueue(name, synced)
		defer mon.UnregisterQueue(name)

		q = synced
	}

	result, err := workload.RunHold(q, workload.HoldConfig{
		Size:       size,
		Operations: cfg.Operations,
		Increment:  inc,
	})
	if err != nil {
		return BenchRun{}, err
	}

	run := BenchRun{
		Strategy:   s.String(),
		HoldResult: result,
	}

	if r, ok := q.(eventqueue.StatsReporter); ok {
		if stats, ok := r.BucketStats(); ok {
			run.Buckets = &stats
		}
	}

	log.WithFields(log.Fields{
		"strategy": run.Strategy,
		"size":     size,
		"elapsed":  time.Duration(result.ElapsedNS),
	}).Info("hold run finished")

	return run, nil
}

func toHoldRow(cfg Config, run BenchRun) holdRow {
	row := holdRow{
		Strategy:      run.Strategy,
		Distribution:  cfg.Distribution,
		TieBreak:      cfg.TieBreak,
		Seed:          cfg.Seed,
		Size:          run.Size,
		Operations:    run.Operations,
		ElapsedNS:     run.ElapsedNS,
		EnqueueMeanNS: run.EnqueueMean,
		EnqueueP99NS:  run.EnqueueP99,
		DequeueMeanNS: run.DequeueMean,
		DequeueP99NS:  run.DequeueP99,
	}

	if run.Buckets != nil {
		row.BucketCount = run.Buckets.BucketCount
		row.Rebuilds = run.Buckets.Rebuilds
	}

	return row
}

func stopMonitor(mon *monitoring.Monitor) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mon.StopServer(ctx); err != nil {
		log.WithError(err).Warn("cannot stop the monitor")
	}
}
