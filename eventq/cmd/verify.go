package cmd

import (
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/rng"
	"github.com/sarchlab/eventq/sim/workload"
)

// verifyQueueName names the queue of every strategy during verify, so that
// seeded tie breakers of all strategies draw the same stream.
const verifyQueueName = "verify"

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every strategy dequeues the same sequence",
		Long: `verify generates a random script of --operations enqueue, ` +
			`dequeue, remove and reschedule operations, runs it on every ` +
			`strategy and fails if any dequeue sequence differs from the ` +
			`one of the first strategy.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c.Flags())
			if err != nil {
				return err
			}

			return runVerify(cfg, c.OutOrStdout())
		},
	}
}

// VerifyReport is the YAML document printed by verify.
type VerifyReport struct {
	Seed       int64          `yaml:"seed"`
	Operations int            `yaml:"operations"`
	TieBreak   string         `yaml:"tie_break"`
	Reference  string         `yaml:"reference"`
	Results    []VerifyResult `yaml:"results"`
}

// VerifyResult tells whether one strategy matched the reference.
type VerifyResult struct {
	Strategy string `yaml:"strategy"`
	Dequeued int    `yaml:"dequeued"`
	Match    bool   `yaml:"match"`
}

func runVerify(cfg Config, out io.Writer) error {
	strategies, err := cfg.strategies()
	if err != nil {
		return err
	}

	if cfg.Operations <= 0 {
		return errors.Errorf("operations must be positive, got %d",
			cfg.Operations)
	}

	r := rng.NewPartitionedRNG(cfg.Seed).ForSubsystem(rng.SubsystemWorkload)

	inc, err := workload.NewIncrement(cfg.Distribution, cfg.Mean, r)
	if err != nil {
		return err
	}

	script := workload.NewScript(r, inc, cfg.Operations)

	report := VerifyReport{
		Seed:       cfg.Seed,
		Operations: cfg.Operations,
		TieBreak:   cfg.TieBreak,
		Reference:  strategies[0].String(),
	}

	var (
		reference []eventqueue.Item[int, float64]
		mismatch  *multierror.Error
	)

	for i, s := range strategies {
		b, err := cfg.queueBuilder(s, verifyQueueName)
		if err != nil {
			return err
		}

		trace := workload.Trace(eventqueue.Build[int, float64](b), script)

		result := VerifyResult{
			Strategy: s.String(),
			Dequeued: len(trace),
			Match:    true,
		}

		if i == 0 {
			reference = trace
		} else if diff := cmp.Diff(reference, trace); diff != "" {
			result.Match = false
			mismatch = multierror.Append(mismatch, errors.Errorf(
				"%s differs from %s", s, strategies[0]))

			log.WithField("strategy", s.String()).
				Debugf("dequeue sequence differs (-%s +%s):\n%s",
					strategies[0], s, diff)
		}

		report.Results = append(report.Results, result)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "cannot write report")
	}

	if err := enc.Close(); err != nil {
		return err
	}

	return mismatch.ErrorOrNil()
}
