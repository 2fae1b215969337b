package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/config"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
	"github.com/kailas-cloud/ipwarehouse/internal/metrics"
	"github.com/kailas-cloud/ipwarehouse/internal/repository/warehouse"
	ingestuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/query"
)

const (
	envFlag    = "env"
	configFlag = "config"
	envPrefix  = "IPWAREHOUSE"
)

// app is the composition root shared by every subcommand.
type app struct {
	v      *viper.Viper
	env    string
	cfg    config.Config
	logger *zap.Logger
	wh     *warehouse.Warehouse
}

// newRootCommand wires every subcommand. Settings come from flags, then IPWAREHOUSE_* env vars,
// then config/<env>.yaml, then defaults.
func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "ipwarehouse",
		Short: "Store IP enrichment data in deduplicated logs and query it",
		Long: `ipwarehouse keeps GeoIP and RDAP records in append-only, deduplicated JSON-lines logs
per category and queries them with a pipelined search language:

  search index=geoip country_name="United States" | fields ip city | prettyprint format=table`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String(envFlag, config.GetEnv(), "configuration environment, selects config/<env>.yaml")
	flags.String(configFlag, "", "path to a config file (overrides --env)")
	flags.String("root", "", "warehouse directory holding the <category>.json logs")
	a.mustBindPFlag("warehouse.root", flags.Lookup("root"))
	flags.Bool("fsync", false, "fsync each log after every appended line")
	a.mustBindPFlag("warehouse.fsync", flags.Lookup("fsync"))
	flags.String("log-level", "", "log level: debug, info, warn, error")
	a.mustBindPFlag("logging.level", flags.Lookup("log-level"))

	root.AddCommand(
		a.newQueryCommand(),
		a.newExplainCommand(),
		a.newLoadCommand(),
		a.newIngestCommand(),
		a.newShellCommand(),
		a.newServeCommand(),
		newVersionCommand(),
	)
	return root
}

func (a *app) mustBindPFlag(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// setup loads configuration and builds the logger and warehouse.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	env, _ := cmd.Flags().GetString(envFlag)
	path, _ := cmd.Flags().GetString(configFlag)
	a.env = env

	var err error
	if path != "" {
		a.cfg, err = config.LoadFile(path)
	} else {
		a.cfg, err = config.LoadOrDefault(env)
	}
	if err != nil {
		return err
	}
	a.applyOverrides()
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// The server logs like any other service; interactive commands keep stdout clean.
	logEnv := "cli"
	if cmd.Name() == "serve" {
		logEnv = env
	}
	a.logger, err = logpkg.NewLogger(logEnv, a.cfg.Logging.Level)
	if err != nil {
		return err
	}

	metrics.Register()
	a.wh = warehouse.New(a.cfg.Warehouse.Root, category.Default(),
		warehouse.WithFsync(a.cfg.Warehouse.Fsync),
		warehouse.WithLogger(a.logger),
	)
	return nil
}

// applyOverrides copies every flag or env value that was explicitly set onto the loaded config.
func (a *app) applyOverrides() {
	v := a.v
	if v.IsSet("warehouse.root") {
		a.cfg.Warehouse.Root = v.GetString("warehouse.root")
	}
	if v.IsSet("warehouse.fsync") {
		a.cfg.Warehouse.Fsync = v.GetBool("warehouse.fsync")
	}
	if v.IsSet("logging.level") {
		a.cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("query.cache_size") {
		a.cfg.Query.CacheSize = v.GetInt("query.cache_size")
	}
	if v.IsSet("enrichment.workers") {
		a.cfg.Enrichment.Workers = v.GetInt("enrichment.workers")
	}
	if v.IsSet("enrichment.geoip_access_key") {
		a.cfg.Enrichment.GeoIPAccessKey = v.GetString("enrichment.geoip_access_key")
	}
	if v.IsSet("http.port") {
		a.cfg.HTTP.Port = v.GetInt("http.port")
	}
}

func (a *app) queryService() (*queryuc.Service, error) {
	return queryuc.New(a.wh, a.cfg.Query.CacheSize, a.logger)
}

func (a *app) ingestService() *ingestuc.Service {
	return ingestuc.New(ingestuc.Opener(a.wh.Open), a.logger)
}
