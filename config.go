package bikenet

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// Street network types known to baseline metrics
const (
	NETWORK_CARALL             = "carall"
	NETWORK_BIKETRACK          = "biketrack"
	NETWORK_BIKEABLE           = "bikeable"
	NETWORK_BIKETRACK_ONSTREET = "biketrack_onstreet"
	NETWORK_BIKEABLE_OFFSTREET = "bikeable_offstreet"
)

// Street record sources used when database is not configured
const (
	SOURCE_CSV = "csv"
	SOURCE_OSM = "osm"
)

// simplifiedSuffix marks simplified variant of a network type in record sources
const simplifiedSuffix = "_simplified"

// DefaultBaselineNetworkTypes returns network types evaluated as existing infrastructure.
// Derived types follow their sources
func DefaultBaselineNetworkTypes() []string {
	return []string{NETWORK_CARALL, NETWORK_BIKETRACK, NETWORK_BIKEABLE, NETWORK_BIKETRACK_ONSTREET, NETWORK_BIKEABLE_OFFSTREET}
}

// Config is the full run configuration
type Config struct {
	DataDir              string            `mapstructure:"data_dir" validate:"required"`
	OutputDir            string            `mapstructure:"output_dir" validate:"required"`
	Source               string            `mapstructure:"source" validate:"oneof=csv osm"`
	Cities               []string          `mapstructure:"cities" validate:"required,min=1,dive,required"`
	NetworkType          string            `mapstructure:"network_type" validate:"required"`
	BaselineNetworkTypes []string          `mapstructure:"baseline_network_types" validate:"dive,oneof=carall biketrack bikeable biketrack_onstreet bikeable_offstreet"`
	PruneMeasure         string            `mapstructure:"prune_measure" validate:"oneof=betweenness closeness random"`
	PruneQuantiles       int               `mapstructure:"prune_quantiles" validate:"min=1,max=1000"`
	Weighting            string            `mapstructure:"weighting" validate:"oneof=euclidean routed"`
	BufferWalk           float64           `mapstructure:"buffer_walk" validate:"gt=0"`
	NumNodePairs         int               `mapstructure:"numnodepairs" validate:"min=1"`
	SnapThreshold        float64           `mapstructure:"snapthreshold" validate:"gt=0"`
	Workers              int               `mapstructure:"workers" validate:"min=0"`
	Seed                 int64             `mapstructure:"seed"`
	Directness           string            `mapstructure:"directness" validate:"oneof=sum mean"`
	Linkwise             string            `mapstructure:"linkwise" validate:"oneof=pairs edges"`
	Contraction          bool              `mapstructure:"contraction"`
	Areas                map[string]string `mapstructure:"areas"`
	Log                  LogConfig         `mapstructure:"log"`
	Database             DatabaseConfig    `mapstructure:"database"`
	Redis                RedisConfig       `mapstructure:"redis"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// DatabaseConfig enables PostGIS input/output when Host is set
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=0,max=65535"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int           `mapstructure:"max_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Enabled checks whether database is configured
func (cfg DatabaseConfig) Enabled() bool {
	return cfg.Host != ""
}

// DSN returns lib/pq connection string
func (cfg DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

// RedisConfig enables cancellation polling when Host is set
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port" validate:"min=0,max=65535"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"min=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Poll      time.Duration `mapstructure:"poll"`
}

func (cfg RedisConfig) Enabled() bool {
	return cfg.Host != ""
}

func (cfg RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// DefaultConfig returns configuration matching defaults of every engine
func DefaultConfig() Config {
	return Config{
		DataDir:              "data",
		OutputDir:            "results",
		Source:               SOURCE_CSV,
		NetworkType:          NETWORK_CARALL,
		BaselineNetworkTypes: DefaultBaselineNetworkTypes(),
		PruneMeasure:         string(PRUNE_BETWEENNESS),
		PruneQuantiles:       DEFAULT_PRUNE_QUANTILES,
		Weighting:            string(WeightEuclidean),
		BufferWalk:           DEFAULT_BUFFER_WALK,
		NumNodePairs:         DEFAULT_NUM_NODE_PAIRS,
		SnapThreshold:        DEFAULT_SNAP_THRESHOLD,
		Workers:              0,
		Seed:                 42,
		Directness:           string(DIRECTNESS_SUM),
		Linkwise:             string(LINKWISE_PAIRS),
		Contraction:          true,
		Log:                  LogConfig{Level: "info"},
		Database:             DatabaseConfig{Port: 5432, SSLMode: "disable", MaxConns: 4},
		Redis:                RedisConfig{Port: 6379, KeyPrefix: "bikenet:cancel:", Poll: 2 * time.Second},
	}
}

var validate = validator.New()

// Validate checks configuration fields
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag())
			}
			return errors.Errorf("Bad configuration: %s", strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, "Can't validate configuration")
	}
	for cityID := range cfg.Areas {
		if _, err := cfg.Area(cityID); err != nil {
			return err
		}
	}
	return nil
}

// Area returns WKT reference polygon of the city for coverage. Nil polygon means street graph bounding box
func (cfg *Config) Area(cityID string) (orb.Polygon, error) {
	text, ok := cfg.Areas[cityID]
	if !ok {
		// viper lowercases map keys
		text, ok = cfg.Areas[strings.ToLower(cityID)]
	}
	if !ok || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	poly, err := wkt.UnmarshalPolygon(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Bad configuration: can't parse area of city '%s'", cityID)
	}
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, errors.Errorf("Bad configuration: area of city '%s' has no outer ring", cityID)
	}
	return poly, nil
}

// Quantiles returns prune quantile sequence of configured length
func (cfg *Config) Quantiles() PruneQuantiles {
	return DefaultPruneQuantiles(cfg.PruneQuantiles)
}

func (cfg *Config) String() string {
	return fmt.Sprintf(`
Run parameters:
	data_dir: '%s'
	output_dir: '%s'
	source: '%s'
	cities: '%s'
	network_type: '%s'
	baseline_network_types: '%s'
	prune_measure: '%s'
	prune_quantiles: %d
	weighting: '%s'
	buffer_walk: %f
	numnodepairs: %d
	snapthreshold: %f
	workers: %d
	seed: %d
	directness: '%s'
	linkwise: '%s'
	contraction enabled?: %t
	cities with explicit area: %d
	database enabled?: %t
	redis enabled?: %t
	`,
		cfg.DataDir,
		cfg.OutputDir,
		cfg.Source,
		strings.Join(cfg.Cities, ","),
		cfg.NetworkType,
		strings.Join(cfg.BaselineNetworkTypes, ","),
		cfg.PruneMeasure,
		cfg.PruneQuantiles,
		cfg.Weighting,
		cfg.BufferWalk,
		cfg.NumNodePairs,
		cfg.SnapThreshold,
		cfg.Workers,
		cfg.Seed,
		cfg.Directness,
		cfg.Linkwise,
		cfg.Contraction,
		len(cfg.Areas),
		cfg.Database.Enabled(),
		cfg.Redis.Enabled(),
	)
}
