package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/peregrinenet/go-peregrine/peregrine"
)

// Config aggregates everything the launcher needs to open a node.
type Config struct {
	DataDir string
	Rules   peregrine.Rules

	FakeValidators int

	Logging LoggingConfig
	Metrics bool
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
}

// MakeConfig merges defaults with CLI flag overrides.
func MakeConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{
		DataDir:        expandHome(ctx.GlobalString("datadir")),
		FakeValidators: ctx.GlobalInt("fakenet.validators"),
		Metrics:        ctx.GlobalBool("metrics"),
		Logging: LoggingConfig{
			Verbosity: ctx.GlobalInt("log.verbosity"),
			Format:    ctx.GlobalString("log.format"),
			Color:     ctx.GlobalBool("log.color"),
		},
	}

	switch name := ctx.GlobalString("network"); name {
	case "main":
		cfg.Rules = peregrine.MainNetRules()
	case "test":
		cfg.Rules = peregrine.TestNetRules()
	case "fake":
		cfg.Rules = peregrine.FakeNetRules()
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
	if cfg.FakeValidators < 1 {
		return nil, fmt.Errorf("fakenet.validators must be positive")
	}
	return cfg, nil
}

// ChainDataPath is where the chain database lives under the datadir.
func (c *Config) ChainDataPath() string {
	return filepath.Join(c.DataDir, c.Rules.Name, "chain.bolt")
}

func setupLogging(cfg LoggingConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   cfg.Color,
			FullTimestamp: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	levels := []logrus.Level{
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
		logrus.DebugLevel,
		logrus.TraceLevel,
	}
	v := cfg.Verbosity
	if v < 0 {
		v = 0
	}
	if v >= len(levels) {
		v = len(levels) - 1
	}
	logrus.SetLevel(levels[v])
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
