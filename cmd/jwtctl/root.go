package main

import (
	"errors"
	"fmt"
	"io/fs"

	goJWT "github.com/MrEthical07/goJWT"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	envFile    string
	configPath string
	envPrefix  string
	source     string
	redisAddr  string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           "jwtctl",
		Short:         "Sign and verify tokens, inspect key bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file; the environment is used when empty")
	flags.StringVar(&opts.envPrefix, "env-prefix", "JWT_", "environment variable prefix")
	flags.StringVar(&opts.source, "source", "", "key source overriding the configured one (URL, file:// or path)")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "share JWKS snapshots through this Redis")

	cmd.AddCommand(newSignCmd(opts), newVerifyCmd(opts), newJWKSCmd(opts), newReportCmd(opts))
	return cmd
}

func (o *cliOptions) loadConfig() (goJWT.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return goJWT.Config{}, fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}

	var (
		cfg goJWT.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = goJWT.LoadConfigFile(o.configPath)
	} else {
		cfg, err = goJWT.LoadConfigFromEnv(o.envPrefix)
	}
	if err != nil {
		return goJWT.Config{}, err
	}
	if o.source != "" {
		cfg.Keys.Source = o.source
	}
	return cfg, nil
}

// engine builds an engine from the loaded config. The returned func closes
// the engine and any Redis client.
func (o *cliOptions) engine(cfg goJWT.Config) (*goJWT.Engine, func(), error) {
	log, err := goJWT.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	b := goJWT.New().WithConfig(cfg).WithLogger(log)
	if cfg.Audit.Enabled {
		b.WithAuditSink(goJWT.NewZapSink(log.Named("audit")))
	}
	var rdb redis.UniversalClient
	if o.redisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{o.redisAddr}})
		b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = log.Sync()
	}, nil
}

func (o *cliOptions) withEngine(fn func(*goJWT.Engine) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	engine, done, err := o.engine(cfg)
	if err != nil {
		return err
	}
	defer done()
	return fn(engine)
}

