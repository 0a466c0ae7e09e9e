package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/rng"
)

const envPrefix = "EVENTQ"

// Config holds the settings shared by all the subcommands. The keys are the
// flag names. The same keys are used in the YAML config file, and in the
// environment with the EVENTQ_ prefix and underscores.
type Config struct {
	LogLevel     string   `mapstructure:"log-level"`
	Seed         int64    `mapstructure:"seed"`
	Strategies   []string `mapstructure:"strategies"`
	Distribution string   `mapstructure:"distribution"`
	Mean         float64  `mapstructure:"mean"`
	TieBreak     string   `mapstructure:"tie-break"`
	BucketCount  int      `mapstructure:"bucket-count"`
	BucketWidth  float64  `mapstructure:"bucket-width"`
	Operations   int      `mapstructure:"operations"`

	// Bench only.
	Sizes   []int  `mapstructure:"sizes"`
	Record  string `mapstructure:"record"`
	Monitor bool   `mapstructure:"monitor"`
	Port    int    `mapstructure:"port"`
	Browser bool   `mapstructure:"browser"`
	Output  string `mapstructure:"output"`
}

// loadConfig merges, from low to high priority, the flag defaults, the
// config file, the environment and the flags set on the command line.
func loadConfig(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return Config{}, errors.Wrap(err, "cannot bind flags")
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "cannot read config %s", file)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "cannot decode config")
	}

	if err := configureLogging(c.LogLevel); err != nil {
		return Config{}, err
	}

	return c, nil
}

func configureLogging(level string) error {
	l, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}

	log.SetLevel(l)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	return nil
}

func (c Config) strategies() ([]eventqueue.Strategy, error) {
	if len(c.Strategies) == 0 {
		return nil, errors.New("no strategy selected")
	}

	strategies := make([]eventqueue.Strategy, 0, len(c.Strategies))
	for _, name := range c.Strategies {
		s, err := eventqueue.ParseStrategy(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, s)
	}

	return strategies, nil
}

// tieBreaker creates the tie-break policy of one queue. A seeded policy
// draws from a stream derived from the master seed and the queue name, so
// queues built from the same seed and name break ties identically.
func (c Config) tieBreaker(queueName string) (eventqueue.TieBreaker, error) {
	switch strings.ToLower(c.TieBreak) {
	case "", "fifo":
		return eventqueue.FIFO(), nil
	case "lifo":
		return eventqueue.LIFO(), nil
	case "seeded":
		src := rng.NewPartitionedRNG(c.Seed).
			ForSubsystem(rng.SubsystemQueue(queueName))
		return eventqueue.Seeded(src), nil
	default:
		return nil, errors.Errorf("unknown tie-break policy %q", c.TieBreak)
	}
}

func (c Config) queueBuilder(
	s eventqueue.Strategy,
	queueName string,
) (eventqueue.Builder, error) {
	tb, err := c.tieBreaker(queueName)
	if err != nil {
		return eventqueue.Builder{}, err
	}

	b := eventqueue.MakeBuilder().
		WithStrategy(s).
		WithTieBreaker(tb)

	if c.BucketCount < 0 || c.BucketWidth < 0 {
		return eventqueue.Builder{}, errors.New(
			"bucket count and width cannot be negative")
	}

	if c.BucketCount > 0 {
		b = b.WithBucketCount(c.BucketCount)
	}

	if c.BucketWidth > 0 {
		b = b.WithBucketWidth(c.BucketWidth)
	}

	return b, nil
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
