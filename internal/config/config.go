package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. ARENA_SERVER_ADDR.
const EnvPrefix = "ARENA"

// Game holds the gameplay constants fixed at startup.
type Game struct {
	WorldWidth     float64 `mapstructure:"worldWidth" toml:"worldWidth"`
	WorldHeight    float64 `mapstructure:"worldHeight" toml:"worldHeight"`
	PlayerSize     float64 `mapstructure:"playerSize" toml:"playerSize"`
	ProjectileSize float64 `mapstructure:"projectileSize" toml:"projectileSize"`
	PickupSize     float64 `mapstructure:"pickupSize" toml:"pickupSize"`
	TerrainSize    float64 `mapstructure:"terrainSize" toml:"terrainSize"`

	// PlayerSpeed and ProjectileSpeed are in world units per second.
	PlayerSpeed     float64 `mapstructure:"playerSpeed" toml:"playerSpeed"`
	ProjectileSpeed float64 `mapstructure:"projectileSpeed" toml:"projectileSpeed"`
	// MoveStepLimit clamps the per-axis displacement of a single move command.
	MoveStepLimit float64 `mapstructure:"moveStepLimit" toml:"moveStepLimit"`

	MaxHealth          int           `mapstructure:"maxHealth" toml:"maxHealth"`
	RespawnDelay       time.Duration `mapstructure:"respawnDelay" toml:"respawnDelay"`
	ProjectileDamage   int           `mapstructure:"projectileDamage" toml:"projectileDamage"`
	ProjectileLifetime time.Duration `mapstructure:"projectileLifetime" toml:"projectileLifetime"`
	ShotCooldown       time.Duration `mapstructure:"shotCooldown" toml:"shotCooldown"`

	MeleeRange    float64       `mapstructure:"meleeRange" toml:"meleeRange"`
	MeleeDamage   int           `mapstructure:"meleeDamage" toml:"meleeDamage"`
	MeleeCooldown time.Duration `mapstructure:"meleeCooldown" toml:"meleeCooldown"`

	PickupSpawnInterval time.Duration `mapstructure:"pickupSpawnInterval" toml:"pickupSpawnInterval"`
	PickupDuration      time.Duration `mapstructure:"pickupDuration" toml:"pickupDuration"`
	PickupLiveCap       int           `mapstructure:"pickupLiveCap" toml:"pickupLiveCap"`
	// PickupLifetime removes uncollected pickups after the given age. Zero keeps them.
	PickupLifetime time.Duration `mapstructure:"pickupLifetime" toml:"pickupLifetime"`

	RoundDuration    time.Duration `mapstructure:"roundDuration" toml:"roundDuration"`
	ResultsDuration  time.Duration `mapstructure:"resultsDuration" toml:"resultsDuration"`
	StartingDuration time.Duration `mapstructure:"startingDuration" toml:"startingDuration"`

	TickRate int `mapstructure:"tickRate" toml:"tickRate"`
	// Seed makes terrain and spawn placement reproducible. Empty seeds from the clock.
	Seed string `mapstructure:"seed" toml:"seed"`
}

// Server holds transport and scheduling settings.
type Server struct {
	Addr              string        `mapstructure:"addr" toml:"addr"`
	BroadcastInterval time.Duration `mapstructure:"broadcastInterval" toml:"broadcastInterval"`
	ProbeInterval     time.Duration `mapstructure:"probeInterval" toml:"probeInterval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeatTimeout" toml:"heartbeatTimeout"`
	JoinTimeout       time.Duration `mapstructure:"joinTimeout" toml:"joinTimeout"`
	WriteWait         time.Duration `mapstructure:"writeWait" toml:"writeWait"`
	MaxMessageBytes   int           `mapstructure:"maxMessageBytes" toml:"maxMessageBytes"`
	MaxOversized      int           `mapstructure:"maxOversized" toml:"maxOversized"`
	// MaxFrameBytes is the hard websocket read limit. Frames between
	// MaxMessageBytes and this cap are dropped and strike-counted; anything
	// larger closes the connection before it is buffered.
	MaxFrameBytes   int `mapstructure:"maxFrameBytes" toml:"maxFrameBytes"`
	MaxMalformed    int `mapstructure:"maxMalformed" toml:"maxMalformed"`
	SendQueue       int `mapstructure:"sendQueue" toml:"sendQueue"`
	PoorQueueCap    int `mapstructure:"poorQueueCap" toml:"poorQueueCap"`
	FlushWorkers    int `mapstructure:"flushWorkers" toml:"flushWorkers"`
	CommandCapacity int `mapstructure:"commandCapacity" toml:"commandCapacity"`
	PerActorLimit   int `mapstructure:"perActorLimit" toml:"perActorLimit"`
	CatchupMaxTicks int `mapstructure:"catchupMaxTicks" toml:"catchupMaxTicks"`
}

// RateLimits caps inbound messages per second by type. Zero disables a limit.
type RateLimits struct {
	Move float64 `mapstructure:"move" toml:"move"`
	Chat float64 `mapstructure:"chat" toml:"chat"`
	Ping float64 `mapstructure:"ping" toml:"ping"`
}

// Delta tunes the full/incremental snapshot policy. The values are heuristics.
type Delta struct {
	PositionThreshold float64       `mapstructure:"positionThreshold" toml:"positionThreshold"`
	AngleThreshold    float64       `mapstructure:"angleThreshold" toml:"angleThreshold"`
	PositionQuantum   float64       `mapstructure:"positionQuantum" toml:"positionQuantum"`
	AngleQuantum      float64       `mapstructure:"angleQuantum" toml:"angleQuantum"`
	VelocityQuantum   float64       `mapstructure:"velocityQuantum" toml:"velocityQuantum"`
	MinFullInterval   int           `mapstructure:"minFullInterval" toml:"minFullInterval"`
	BaseFullInterval  int           `mapstructure:"baseFullInterval" toml:"baseFullInterval"`
	MaxFullInterval   int           `mapstructure:"maxFullInterval" toml:"maxFullInterval"`
	ForcedResync      time.Duration `mapstructure:"forcedResync" toml:"forcedResync"`
	// DropResyncRatio forces an early full update once the share of dropped
	// low priority frames since the last full update reaches this value.
	DropResyncRatio float64 `mapstructure:"dropResyncRatio" toml:"dropResyncRatio"`
}

// Log selects the process log level and optional sinks.
type Log struct {
	Level       string `mapstructure:"level" toml:"level"`
	Console     bool   `mapstructure:"console" toml:"console"`
	GelfEnabled bool   `mapstructure:"gelfEnabled" toml:"gelfEnabled"`
	GelfAddress string `mapstructure:"gelfAddress" toml:"gelfAddress"`
}

// Metrics selects metric exporters.
type Metrics struct {
	Otel           bool          `mapstructure:"otel" toml:"otel"`
	InfluxEnabled  bool          `mapstructure:"influxEnabled" toml:"influxEnabled"`
	InfluxURL      string        `mapstructure:"influxUrl" toml:"influxUrl"`
	InfluxToken    string        `mapstructure:"influxToken" toml:"influxToken"`
	InfluxOrg      string        `mapstructure:"influxOrg" toml:"influxOrg"`
	InfluxBucket   string        `mapstructure:"influxBucket" toml:"influxBucket"`
	InfluxInterval time.Duration `mapstructure:"influxInterval" toml:"influxInterval"`
	// Pprof mounts the runtime profiler under /debug/pprof/.
	Pprof bool `mapstructure:"pprof" toml:"pprof"`
}

// Config is the complete process configuration.
type Config struct {
	Game       Game       `mapstructure:"game" toml:"game"`
	Server     Server     `mapstructure:"server" toml:"server"`
	RateLimits RateLimits `mapstructure:"rateLimits" toml:"rateLimits"`
	Delta      Delta      `mapstructure:"delta" toml:"delta"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Metrics    Metrics    `mapstructure:"metrics" toml:"metrics"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Game: Game{
			WorldWidth:          1200,
			WorldHeight:         800,
			PlayerSize:          20,
			ProjectileSize:      4,
			PickupSize:          15,
			TerrainSize:         40,
			PlayerSpeed:         300,
			ProjectileSpeed:     480,
			MoveStepLimit:       10,
			MaxHealth:           100,
			RespawnDelay:        3 * time.Second,
			ProjectileDamage:    25,
			ProjectileLifetime:  2 * time.Second,
			ShotCooldown:        200 * time.Millisecond,
			MeleeRange:          50,
			MeleeDamage:         100,
			MeleeCooldown:       time.Second,
			PickupSpawnInterval: 20 * time.Second,
			PickupDuration:      15 * time.Second,
			PickupLiveCap:       4,
			RoundDuration:       120 * time.Second,
			ResultsDuration:     5 * time.Second,
			StartingDuration:    3 * time.Second,
			TickRate:            30,
		},
		Server: Server{
			Addr:              ":8080",
			BroadcastInterval: 16 * time.Millisecond,
			ProbeInterval:     2 * time.Second,
			HeartbeatTimeout:  60 * time.Second,
			JoinTimeout:       30 * time.Second,
			WriteWait:         10 * time.Second,
			MaxMessageBytes:   1024,
			MaxOversized:      3,
			MaxFrameBytes:     64 << 10,
			MaxMalformed:      10,
			SendQueue:         256,
			PoorQueueCap:      2,
			FlushWorkers:      8,
			CommandCapacity:   1024,
			PerActorLimit:     32,
			CatchupMaxTicks:   3,
		},
		RateLimits: RateLimits{
			Move: 60,
			Chat: 5,
			Ping: 2,
		},
		Delta: Delta{
			PositionThreshold: 3,
			AngleThreshold:    0.1,
			PositionQuantum:   1,
			AngleQuantum:      0.01,
			VelocityQuantum:   0.01,
			MinFullInterval:   15,
			BaseFullInterval:  30,
			MaxFullInterval:   90,
			ForcedResync:      5 * time.Second,
			DropResyncRatio:   0.25,
		},
		Log: Log{
			Level:       "info",
			Console:     true,
			GelfAddress: "localhost:12201",
		},
		Metrics: Metrics{
			InfluxURL:      "http://localhost:8086",
			InfluxOrg:      "arena",
			InfluxBucket:   "arena_server",
			InfluxInterval: 10 * time.Second,
		},
	}
}

// Load reads the configuration. Defaults are applied first, then the optional
// file at path (any format viper understands), then ARENA_* environment
// variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("game.worldWidth", d.Game.WorldWidth)
	v.SetDefault("game.worldHeight", d.Game.WorldHeight)
	v.SetDefault("game.playerSize", d.Game.PlayerSize)
	v.SetDefault("game.projectileSize", d.Game.ProjectileSize)
	v.SetDefault("game.pickupSize", d.Game.PickupSize)
	v.SetDefault("game.terrainSize", d.Game.TerrainSize)
	v.SetDefault("game.playerSpeed", d.Game.PlayerSpeed)
	v.SetDefault("game.projectileSpeed", d.Game.ProjectileSpeed)
	v.SetDefault("game.moveStepLimit", d.Game.MoveStepLimit)
	v.SetDefault("game.maxHealth", d.Game.MaxHealth)
	v.SetDefault("game.respawnDelay", d.Game.RespawnDelay)
	v.SetDefault("game.projectileDamage", d.Game.ProjectileDamage)
	v.SetDefault("game.projectileLifetime", d.Game.ProjectileLifetime)
	v.SetDefault("game.shotCooldown", d.Game.ShotCooldown)
	v.SetDefault("game.meleeRange", d.Game.MeleeRange)
	v.SetDefault("game.meleeDamage", d.Game.MeleeDamage)
	v.SetDefault("game.meleeCooldown", d.Game.MeleeCooldown)
	v.SetDefault("game.pickupSpawnInterval", d.Game.PickupSpawnInterval)
	v.SetDefault("game.pickupDuration", d.Game.PickupDuration)
	v.SetDefault("game.pickupLiveCap", d.Game.PickupLiveCap)
	v.SetDefault("game.pickupLifetime", d.Game.PickupLifetime)
	v.SetDefault("game.roundDuration", d.Game.RoundDuration)
	v.SetDefault("game.resultsDuration", d.Game.ResultsDuration)
	v.SetDefault("game.startingDuration", d.Game.StartingDuration)
	v.SetDefault("game.tickRate", d.Game.TickRate)
	v.SetDefault("game.seed", d.Game.Seed)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.broadcastInterval", d.Server.BroadcastInterval)
	v.SetDefault("server.probeInterval", d.Server.ProbeInterval)
	v.SetDefault("server.heartbeatTimeout", d.Server.HeartbeatTimeout)
	v.SetDefault("server.joinTimeout", d.Server.JoinTimeout)
	v.SetDefault("server.writeWait", d.Server.WriteWait)
	v.SetDefault("server.maxMessageBytes", d.Server.MaxMessageBytes)
	v.SetDefault("server.maxOversized", d.Server.MaxOversized)
	v.SetDefault("server.maxFrameBytes", d.Server.MaxFrameBytes)
	v.SetDefault("server.maxMalformed", d.Server.MaxMalformed)
	v.SetDefault("server.sendQueue", d.Server.SendQueue)
	v.SetDefault("server.poorQueueCap", d.Server.PoorQueueCap)
	v.SetDefault("server.flushWorkers", d.Server.FlushWorkers)
	v.SetDefault("server.commandCapacity", d.Server.CommandCapacity)
	v.SetDefault("server.perActorLimit", d.Server.PerActorLimit)
	v.SetDefault("server.catchupMaxTicks", d.Server.CatchupMaxTicks)

	v.SetDefault("rateLimits.move", d.RateLimits.Move)
	v.SetDefault("rateLimits.chat", d.RateLimits.Chat)
	v.SetDefault("rateLimits.ping", d.RateLimits.Ping)

	v.SetDefault("delta.positionThreshold", d.Delta.PositionThreshold)
	v.SetDefault("delta.angleThreshold", d.Delta.AngleThreshold)
	v.SetDefault("delta.positionQuantum", d.Delta.PositionQuantum)
	v.SetDefault("delta.angleQuantum", d.Delta.AngleQuantum)
	v.SetDefault("delta.velocityQuantum", d.Delta.VelocityQuantum)
	v.SetDefault("delta.minFullInterval", d.Delta.MinFullInterval)
	v.SetDefault("delta.baseFullInterval", d.Delta.BaseFullInterval)
	v.SetDefault("delta.maxFullInterval", d.Delta.MaxFullInterval)
	v.SetDefault("delta.forcedResync", d.Delta.ForcedResync)
	v.SetDefault("delta.dropResyncRatio", d.Delta.DropResyncRatio)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.gelfEnabled", d.Log.GelfEnabled)
	v.SetDefault("log.gelfAddress", d.Log.GelfAddress)

	v.SetDefault("metrics.otel", d.Metrics.Otel)
	v.SetDefault("metrics.influxEnabled", d.Metrics.InfluxEnabled)
	v.SetDefault("metrics.influxUrl", d.Metrics.InfluxURL)
	v.SetDefault("metrics.influxToken", d.Metrics.InfluxToken)
	v.SetDefault("metrics.influxOrg", d.Metrics.InfluxOrg)
	v.SetDefault("metrics.influxBucket", d.Metrics.InfluxBucket)
	v.SetDefault("metrics.influxInterval", d.Metrics.InfluxInterval)
	v.SetDefault("metrics.pprof", d.Metrics.Pprof)
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	g := c.Game
	if g.WorldWidth <= g.PlayerSize || g.WorldHeight <= g.PlayerSize {
		errs = append(errs, fmt.Errorf("world %.0fx%.0f is too small for player size %.0f", g.WorldWidth, g.WorldHeight, g.PlayerSize))
	}
	if g.PlayerSize <= 0 || g.ProjectileSize <= 0 || g.PickupSize <= 0 || g.TerrainSize <= 0 {
		errs = append(errs, errors.New("entity sizes must be positive"))
	}
	if g.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %d", g.TickRate))
	}
	if g.MaxHealth <= 0 {
		errs = append(errs, fmt.Errorf("max health must be positive, got %d", g.MaxHealth))
	}
	if g.RoundDuration <= 0 {
		errs = append(errs, fmt.Errorf("round duration must be positive, got %s", g.RoundDuration))
	}
	if c.Server.BroadcastInterval <= 0 {
		errs = append(errs, fmt.Errorf("broadcast interval must be positive, got %s", c.Server.BroadcastInterval))
	}
	if c.Server.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max message bytes must be positive, got %d", c.Server.MaxMessageBytes))
	}
	if c.Server.MaxFrameBytes < c.Server.MaxMessageBytes {
		errs = append(errs, fmt.Errorf("max frame bytes %d must be at least max message bytes %d", c.Server.MaxFrameBytes, c.Server.MaxMessageBytes))
	}
	d := c.Delta
	if d.MinFullInterval <= 0 || d.MinFullInterval > d.BaseFullInterval || d.BaseFullInterval > d.MaxFullInterval {
		errs = append(errs, fmt.Errorf("full interval range must satisfy 0 < min <= base <= max, got %d/%d/%d", d.MinFullInterval, d.BaseFullInterval, d.MaxFullInterval))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %w", errors.Join(errs...))
}

// TickInterval is the duration of one simulation step.
func (g Game) TickInterval() time.Duration {
	if g.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(g.TickRate)
}
