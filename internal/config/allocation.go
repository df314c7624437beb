package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RatioPolicy decides what happens when a schedule's ratios do not sum to 100%.
type RatioPolicy string

const (
	RatioPolicyWarn   RatioPolicy = "warn"
	RatioPolicyReject RatioPolicy = "reject"
)

// AllocationConfig tunes payment allocation and the payment status report.
type AllocationConfig struct {
	Tolerance          float64     `mapstructure:"tolerance"`
	DefaultStepCode    string      `mapstructure:"defaultStepCode"`
	RatioPolicy        RatioPolicy `mapstructure:"ratioPolicy"`
	EnforceOnWrite     bool        `mapstructure:"enforceOnWrite"`
	RefreshStaleOnRead bool        `mapstructure:"refreshStaleOnRead"`
	UnassignedLabel    string      `mapstructure:"unassignedLabel"`
}

func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		Tolerance:          1e-6,
		DefaultStepCode:    "DEFAULT",
		RatioPolicy:        RatioPolicyWarn,
		EnforceOnWrite:     true,
		RefreshStaleOnRead: true,
		UnassignedLabel:    "미지정",
	}
}

// ToleranceDecimal returns the ratio-sum tolerance as an exact decimal.
func (c AllocationConfig) ToleranceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Tolerance)
}

// Rejects reports whether out-of-tolerance schedules must abort allocation.
func (c AllocationConfig) Rejects() bool {
	return c.RatioPolicy == RatioPolicyReject
}

type AllocationConfigHolder struct {
	current atomic.Value // holds AllocationConfig
}

// NewAllocationConfigHolder loads allocation.yml from the usual config paths
// and keeps it fresh while the process runs.
func NewAllocationConfigHolder() (*AllocationConfigHolder, error) {
	return loadAllocationConfig(
		"/var/lib/estatebook/config",
		"/etc/estatebook",
		".",
	)
}

// NewStaticAllocationConfigHolder wraps a fixed config without file watching.
func NewStaticAllocationConfigHolder(cfg AllocationConfig) *AllocationConfigHolder {
	holder := &AllocationConfigHolder{}
	holder.current.Store(normalizeAllocationConfig(cfg))
	return holder
}

func loadAllocationConfig(paths ...string) (*AllocationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("allocation")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("ESTATEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAllocationConfig()
	v.SetDefault("allocation.tolerance", defaults.Tolerance)
	v.SetDefault("allocation.defaultStepCode", defaults.DefaultStepCode)
	v.SetDefault("allocation.ratioPolicy", string(defaults.RatioPolicy))
	v.SetDefault("allocation.enforceOnWrite", defaults.EnforceOnWrite)
	v.SetDefault("allocation.refreshStaleOnRead", defaults.RefreshStaleOnRead)
	v.SetDefault("allocation.unassignedLabel", defaults.UnassignedLabel)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	cfg, err := unmarshalAllocation(v)
	if err != nil {
		return nil, err
	}
	if err := validateAllocationConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AllocationConfigHolder{}
	holder.current.Store(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := unmarshalAllocation(v)
			if err != nil {
				log.Printf("[allocation-config] reload failed: %v", err)
				return
			}
			if err := validateAllocationConfig(updated); err != nil {
				log.Printf("[allocation-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[allocation-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// unmarshalAllocation decodes from AllSettings so file values merge with defaults.
func unmarshalAllocation(v *viper.Viper) (AllocationConfig, error) {
	var file struct {
		Allocation AllocationConfig `mapstructure:"allocation"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return AllocationConfig{}, err
	}
	return normalizeAllocationConfig(file.Allocation), nil
}

func (h *AllocationConfigHolder) Get() AllocationConfig {
	if h == nil {
		return DefaultAllocationConfig()
	}
	cfg, ok := h.current.Load().(AllocationConfig)
	if !ok {
		return DefaultAllocationConfig()
	}
	return cfg
}

func normalizeAllocationConfig(cfg AllocationConfig) AllocationConfig {
	defaults := DefaultAllocationConfig()
	cfg.DefaultStepCode = strings.TrimSpace(cfg.DefaultStepCode)
	if cfg.DefaultStepCode == "" {
		cfg.DefaultStepCode = defaults.DefaultStepCode
	}
	cfg.RatioPolicy = RatioPolicy(strings.ToLower(strings.TrimSpace(string(cfg.RatioPolicy))))
	if cfg.RatioPolicy == "" {
		cfg.RatioPolicy = defaults.RatioPolicy
	}
	cfg.UnassignedLabel = strings.TrimSpace(cfg.UnassignedLabel)
	if cfg.UnassignedLabel == "" {
		cfg.UnassignedLabel = defaults.UnassignedLabel
	}
	return cfg
}

func validateAllocationConfig(cfg AllocationConfig) error {
	if cfg.Tolerance < 0 || cfg.Tolerance >= 1 {
		return fmt.Errorf("allocation.tolerance must be within [0, 1), got %v", cfg.Tolerance)
	}
	switch cfg.RatioPolicy {
	case RatioPolicyWarn, RatioPolicyReject:
	default:
		return errors.New("allocation.ratioPolicy must be warn or reject")
	}
	return nil
}
