package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/LdDl/bikenet"
)

const envPrefix = "BIKENET"

// configDefaults lists every configuration key, so environment variables are seen by Unmarshal
func configDefaults(v *viper.Viper) {
	def := bikenet.DefaultConfig()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("source", def.Source)
	v.SetDefault("cities", def.Cities)
	v.SetDefault("network_type", def.NetworkType)
	v.SetDefault("baseline_network_types", def.BaselineNetworkTypes)
	v.SetDefault("prune_measure", def.PruneMeasure)
	v.SetDefault("prune_quantiles", def.PruneQuantiles)
	v.SetDefault("weighting", def.Weighting)
	v.SetDefault("buffer_walk", def.BufferWalk)
	v.SetDefault("numnodepairs", def.NumNodePairs)
	v.SetDefault("snapthreshold", def.SnapThreshold)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("directness", def.Directness)
	v.SetDefault("linkwise", def.Linkwise)
	v.SetDefault("contraction", def.Contraction)
	v.SetDefault("areas", map[string]string{})
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.user", def.Database.User)
	v.SetDefault("database.password", def.Database.Password)
	v.SetDefault("database.dbname", def.Database.DBName)
	v.SetDefault("database.sslmode", def.Database.SSLMode)
	v.SetDefault("database.max_conns", def.Database.MaxConns)
	v.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)
	v.SetDefault("redis.host", def.Redis.Host)
	v.SetDefault("redis.port", def.Redis.Port)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("redis.key_prefix", def.Redis.KeyPrefix)
	v.SetDefault("redis.poll", def.Redis.Poll)
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"data-dir":      "data_dir",
	"output-dir":    "output_dir",
	"source":        "source",
	"cities":        "cities",
	"network-type":  "network_type",
	"prune-measure": "prune_measure",
	"quantiles":     "prune_quantiles",
	"weighting":     "weighting",
	"buffer-walk":   "buffer_walk",
	"numnodepairs":  "numnodepairs",
	"snapthreshold": "snapthreshold",
	"workers":       "workers",
	"seed":          "seed",
	"contract":      "contraction",
	"log-level":     "log.level",
}

// loadConfig merges defaults, optional config file, BIKENET_* environment and command line flags
func loadConfig(file string, flags *pflag.FlagSet) (bikenet.Config, error) {
	v := viper.New()
	configDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return bikenet.Config{}, errors.Wrapf(err, "Can't read config file '%s'", file)
		}
	}
	if flags != nil {
		var bindErr error
		flags.VisitAll(func(flag *pflag.Flag) {
			key, ok := flagKeys[flag.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, flag)
		})
		if bindErr != nil {
			return bikenet.Config{}, errors.Wrap(bindErr, "Can't bind flags")
		}
	}

	cfg := bikenet.Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return bikenet.Config{}, errors.Wrap(err, "Can't decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return bikenet.Config{}, err
	}
	return cfg, nil
}
