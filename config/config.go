package config

import (
	"io"
	"os"
	"strconv"

	"github.com/DomeLiquid/lendrisk/core"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LENDRISK_"

// Config holds the engine configuration.
type Config struct {
	Oracle struct {
		PythConfIntervals  decimal.Decimal `yaml:"pythConfIntervals"`
		SwbConfIntervals   decimal.Decimal `yaml:"swbConfIntervals"`
		MaxConfidenceRatio decimal.Decimal `yaml:"maxConfidenceRatio"`
		SwbPullPrecision   int32           `yaml:"swbPullPrecision"`
	} `yaml:"oracle"`
	Risk struct {
		VolatilityFactor    decimal.Decimal `yaml:"volatilityFactor"`
		LiquidationDiscount decimal.Decimal `yaml:"liquidationDiscount"`
		RejectStaleOracles  bool            `yaml:"rejectStaleOracles"`
	} `yaml:"risk"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used for every key a file or the
// environment leaves out.
func Default() *Config {
	cfg := &Config{}

	oracle := core.DefaultOracleConfig()
	cfg.Oracle.PythConfIntervals = oracle.PythConfIntervals
	cfg.Oracle.SwbConfIntervals = oracle.SwbConfIntervals
	cfg.Oracle.MaxConfidenceRatio = oracle.MaxConfidenceRatio
	cfg.Oracle.SwbPullPrecision = oracle.SwbPullPrecision

	risk := core.DefaultRiskParams()
	cfg.Risk.VolatilityFactor = risk.VolatilityFactor
	cfg.Risk.LiquidationDiscount = risk.LiquidationDiscount

	cfg.Log.Level = zerolog.InfoLevel.String()
	return cfg
}

// Load starts from Default, reads the YAML file over it, then applies
// overrides from the given .env files and finally from the process
// environment. A missing file yields the defaults. Keys that are present keep
// their value, zero included.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read config")
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	env := map[string]string{}
	if len(envFiles) > 0 {
		fileEnv, err := godotenv.Read(envFiles...)
		if err != nil {
			return nil, errors.Wrap(err, "read env files")
		}
		env = fileEnv
	}
	if err := cfg.applyEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return env[key]
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	decimals := map[string]*decimal.Decimal{
		"PYTH_CONF_INTERVALS":  &c.Oracle.PythConfIntervals,
		"SWB_CONF_INTERVALS":   &c.Oracle.SwbConfIntervals,
		"MAX_CONFIDENCE_RATIO": &c.Oracle.MaxConfidenceRatio,
		"VOLATILITY_FACTOR":    &c.Risk.VolatilityFactor,
		"LIQUIDATION_DISCOUNT": &c.Risk.LiquidationDiscount,
	}
	for name, field := range decimals {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrapf(err, "%s%s", envPrefix, name)
		}
		*field = d
	}

	if v := getenv(envPrefix + "SWB_PULL_PRECISION"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "%sSWB_PULL_PRECISION", envPrefix)
		}
		c.Oracle.SwbPullPrecision = int32(n)
	}
	if v := getenv(envPrefix + "REJECT_STALE_ORACLES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%sREJECT_STALE_ORACLES", envPrefix)
		}
		c.Risk.RejectStaleOracles = b
	}
	if v := getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	if !c.Oracle.MaxConfidenceRatio.IsPositive() || c.Oracle.MaxConfidenceRatio.GreaterThan(core.ONE) {
		return errors.New("oracle.maxConfidenceRatio must be in (0, 1]")
	}
	if err := c.OracleConfig().Validate(); err != nil {
		return errors.Wrap(err, "oracle")
	}
	if !c.Risk.VolatilityFactor.IsPositive() || c.Risk.VolatilityFactor.GreaterThan(core.ONE) {
		return errors.New("risk.volatilityFactor must be in (0, 1]")
	}
	if !c.Risk.LiquidationDiscount.IsPositive() || c.Risk.LiquidationDiscount.GreaterThan(core.ONE) {
		return errors.New("risk.liquidationDiscount must be in (0, 1]")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

func (c *Config) OracleConfig() core.OracleConfig {
	return core.OracleConfig{
		PythConfIntervals:  c.Oracle.PythConfIntervals,
		SwbConfIntervals:   c.Oracle.SwbConfIntervals,
		MaxConfidenceRatio: c.Oracle.MaxConfidenceRatio,
		SwbPullPrecision:   c.Oracle.SwbPullPrecision,
	}
}

func (c *Config) RiskParams() core.RiskParams {
	return core.RiskParams{
		VolatilityFactor:    c.Risk.VolatilityFactor,
		LiquidationDiscount: c.Risk.LiquidationDiscount,
	}
}

// RiskEngineOptions turns the risk section into options for core.NewRiskEngine.
func (c *Config) RiskEngineOptions() []core.OptionFunc {
	opts := []core.OptionFunc{core.WithRiskParams(c.RiskParams())}
	if c.Risk.RejectStaleOracles {
		opts = append(opts, core.WithRejectStaleOracles())
	}
	return opts
}

// NewLogger returns a logger writing to w at the configured level. A nil w
// writes to stderr.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
