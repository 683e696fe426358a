package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/taskflow-go/internal/config"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// cli carries state shared by the subcommands of one root command.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Run in-process task graphs",
		Long: `taskflow runs the demo task graphs of the taskflow engine.

Settings are read from flags, TASKFLOW_* environment variables and an optional YAML
config file, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	c.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(c),
		newPipelineCommand(c),
		newGraphCommand(),
		newVersionCommand(),
	)
	return root
}

func (c *cli) bindFlags(flags *pflag.FlagSet) {
	d := config.Defaults()

	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file (YAML)")

	flags.String("log-format", d.Log.Format, "log format: json or text")
	c.mustBind("log.format", flags.Lookup("log-format"))
	flags.String("log-level", d.Log.Level, "log level: debug, info, warn, error or none")
	c.mustBind("log.level", flags.Lookup("log-level"))

	flags.String("emitter", d.Emitter, "event emitter: none, text, json or zap")
	c.mustBind("emitter", flags.Lookup("emitter"))

	flags.Int("retries", d.Retry.Count, "retries per failing node")
	c.mustBind("retry.count", flags.Lookup("retries"))
	flags.Duration("retry-delay", d.Retry.Delay, "wait between retries")
	c.mustBind("retry.delay", flags.Lookup("retry-delay"))
	flags.Duration("retry-max-delay", d.Retry.MaxDelay, "enables exponential backoff capped at this delay")
	c.mustBind("retry.max_delay", flags.Lookup("retry-max-delay"))

	flags.Duration("timeout", d.Timeout, "per-invocation node timeout, 0 for none")
	c.mustBind("timeout", flags.Lookup("timeout"))

	flags.String("cache", d.Cache.Backend, "result cache: none, memory, sqlite or mysql")
	c.mustBind("cache.backend", flags.Lookup("cache"))
	flags.String("cache-path", d.Cache.Path, "sqlite cache file")
	c.mustBind("cache.path", flags.Lookup("cache-path"))
	flags.String("cache-dsn", d.Cache.DSN, "mysql cache DSN")
	c.mustBind("cache.dsn", flags.Lookup("cache-dsn"))
	flags.Duration("cache-ttl", d.Cache.TTL, "cache entry lifetime, 0 for no expiry")
	c.mustBind("cache.ttl", flags.Lookup("cache-ttl"))

	flags.String("metrics-addr", d.Metrics.Addr, "serve Prometheus /metrics on this address while running")
	c.mustBind("metrics.addr", flags.Lookup("metrics-addr"))

	flags.String("trace-exporter", d.Trace.Exporter, "span exporter: none, stdout or otlp")
	c.mustBind("trace.exporter", flags.Lookup("trace-exporter"))
	flags.String("trace-endpoint", d.Trace.Endpoint, "OTLP gRPC collector endpoint")
	c.mustBind("trace.endpoint", flags.Lookup("trace-endpoint"))
}

func (c *cli) mustBind(key string, flag *pflag.Flag) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the taskflow version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("taskflow %s\n", version)
			return nil
		},
	}
}
