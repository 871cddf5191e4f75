package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ibctrace/internal/aggregate"
	"ibctrace/internal/model"
	"ibctrace/internal/resolver"
	"ibctrace/internal/topology"
)

// ChainConfig describes one tracked chain.
type ChainConfig struct {
	ID        string   `mapstructure:"id"`
	REST      string   `mapstructure:"rest"`
	Addresses []string `mapstructure:"addresses"`
}

// DenomConfig maps a logical asset name to its denom on the origin chain.
type DenomConfig struct {
	Name  string `mapstructure:"name"`
	Denom string `mapstructure:"denom"`
}

// Config holds configuration values loaded from flags, env, or config file.
//
// Chains and denoms are lists rather than maps because viper lowercases map
// keys and denom names are case sensitive.
type Config struct {
	OriginChain        string
	Chains             []ChainConfig
	Channels           map[string]map[string]string
	Denoms             []DenomConfig
	ChannelOrientation string
	TrackChains        []string

	MaxHops        int
	StepBudget     int64
	ResolveTimeout time.Duration
	ResolveMode    string
	Workers        int
	CacheSize      int
	ResolutionDB   string

	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPTimeout  time.Duration

	Format      string
	Out         string
	PGDSN       string
	Migrate     bool
	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IBCTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("channel-orientation", string(topology.Receiver))
	v.SetDefault("max-hops", resolver.DefaultMaxHops)
	v.SetDefault("step-budget", int64(0))
	v.SetDefault("resolve-timeout", 30*time.Second)
	v.SetDefault("resolve-mode", string(resolver.ModeFirst))
	v.SetDefault("workers", 4)
	v.SetDefault("cache-size", 4096)
	v.SetDefault("concurrency", 4)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("http-timeout", 15*time.Second)
	v.SetDefault("format", "text")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		OriginChain:        v.GetString("origin-chain"),
		ChannelOrientation: v.GetString("channel-orientation"),
		TrackChains:        getStringSlice(v, "track-chains"),
		MaxHops:            v.GetInt("max-hops"),
		StepBudget:         v.GetInt64("step-budget"),
		ResolveTimeout:     v.GetDuration("resolve-timeout"),
		ResolveMode:        v.GetString("resolve-mode"),
		Workers:            v.GetInt("workers"),
		CacheSize:          v.GetInt("cache-size"),
		ResolutionDB:       v.GetString("resolution-db"),
		Concurrency:        v.GetInt("concurrency"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		HTTPTimeout:        v.GetDuration("http-timeout"),
		Format:             v.GetString("format"),
		Out:                v.GetString("out"),
		PGDSN:              v.GetString("pg-dsn"),
		Migrate:            v.GetBool("migrate"),
		MetricsAddr:        v.GetString("metrics-addr"),
		LogLevel:           v.GetString("log-level"),
	}

	if err := v.UnmarshalKey("chains", &cfg.Chains); err != nil {
		return Config{}, fmt.Errorf("decode chains: %w", err)
	}
	if err := v.UnmarshalKey("channels", &cfg.Channels); err != nil {
		return Config{}, fmt.Errorf("decode channels: %w", err)
	}
	if err := v.UnmarshalKey("denoms", &cfg.Denoms); err != nil {
		return Config{}, fmt.Errorf("decode denoms: %w", err)
	}

	return cfg, nil
}

// Origin returns the origin chain or an error when it is unset.
func (c Config) Origin() (model.ChainID, error) {
	origin := strings.TrimSpace(c.OriginChain)
	if origin == "" {
		return "", fmt.Errorf("origin-chain is required")
	}
	return model.ChainID(origin), nil
}

// Topology builds the channel topology. The chain set is every chain named in
// the chains list or the channel table.
func (c Config) Topology() (*topology.Topology, error) {
	orientation, err := topology.ParseOrientation(c.ChannelOrientation)
	if err != nil {
		return nil, err
	}

	seen := make(map[model.ChainID]struct{})
	for _, ch := range c.Chains {
		if id := strings.TrimSpace(ch.ID); id != "" {
			seen[model.ChainID(id)] = struct{}{}
		}
	}
	table := make(map[model.ChainID]map[model.ChainID]model.ChannelID, len(c.Channels))
	for from, peers := range c.Channels {
		fromID := model.ChainID(from)
		seen[fromID] = struct{}{}
		row := make(map[model.ChainID]model.ChannelID, len(peers))
		for to, channel := range peers {
			seen[model.ChainID(to)] = struct{}{}
			row[model.ChainID(to)] = model.ChannelID(strings.TrimSpace(channel))
		}
		table[fromID] = row
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no chains configured")
	}

	chains := make([]model.ChainID, 0, len(seen))
	for id := range seen {
		chains = append(chains, id)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	topo, err := topology.FromTable(chains, table, orientation)
	if err != nil {
		return nil, fmt.Errorf("build topology: %w", err)
	}
	return topo, nil
}

// KnownDenoms returns the configured denoms in file order.
func (c Config) KnownDenoms() ([]model.KnownDenom, error) {
	if len(c.Denoms) == 0 {
		return nil, fmt.Errorf("at least one denom is required")
	}
	names := make(map[string]struct{}, len(c.Denoms))
	out := make([]model.KnownDenom, 0, len(c.Denoms))
	for i, d := range c.Denoms {
		name := strings.TrimSpace(d.Name)
		denom := strings.TrimSpace(d.Denom)
		if name == "" || denom == "" {
			return nil, fmt.Errorf("denoms[%d]: name and denom are required", i)
		}
		if name == model.UnknownName {
			return nil, fmt.Errorf("denoms[%d]: name %q is reserved", i, name)
		}
		if _, dup := names[name]; dup {
			return nil, fmt.Errorf("denoms[%d]: duplicate name %q", i, name)
		}
		names[name] = struct{}{}
		out = append(out, model.KnownDenom{Name: name, Denom: denom})
	}
	return out, nil
}

// ResolverConfig returns the search settings.
func (c Config) ResolverConfig() (resolver.Config, error) {
	mode, err := resolver.ParseMode(c.ResolveMode)
	if err != nil {
		return resolver.Config{}, err
	}
	if c.MaxHops < 0 {
		return resolver.Config{}, fmt.Errorf("max-hops must not be negative")
	}
	return resolver.Config{
		MaxHops:    c.MaxHops,
		StepBudget: c.StepBudget,
		Timeout:    c.ResolveTimeout,
		Mode:       mode,
		Workers:    c.Workers,
	}, nil
}

// Accounts lists every (chain, address) pair to query, honouring
// TrackChains when set.
func (c Config) Accounts() []aggregate.Account {
	var filter map[string]struct{}
	if len(c.TrackChains) > 0 {
		filter = make(map[string]struct{}, len(c.TrackChains))
		for _, id := range c.TrackChains {
			filter[id] = struct{}{}
		}
	}

	var out []aggregate.Account
	for _, ch := range c.Chains {
		id := strings.TrimSpace(ch.ID)
		if id == "" {
			continue
		}
		if filter != nil {
			if _, ok := filter[id]; !ok {
				continue
			}
		}
		for _, addr := range cleanStrings(ch.Addresses) {
			out = append(out, aggregate.Account{Chain: model.ChainID(id), Address: addr})
		}
	}
	return out
}

// Endpoints returns the REST endpoint of every chain that has one.
func (c Config) Endpoints() map[model.ChainID]string {
	out := make(map[model.ChainID]string, len(c.Chains))
	for _, ch := range c.Chains {
		id, rest := strings.TrimSpace(ch.ID), strings.TrimSpace(ch.REST)
		if id != "" && rest != "" {
			out[model.ChainID(id)] = rest
		}
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
