package config

import (
	"encoding/json"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// clientGameConfig is the subset of Game shared with clients in JOINED.
// Durations are milliseconds, speeds are units per second.
type clientGameConfig struct {
	CanvasWidth          float64 `json:"CANVAS_WIDTH"`
	CanvasHeight         float64 `json:"CANVAS_HEIGHT"`
	PlayerSize           float64 `json:"PLAYER_SIZE"`
	BulletSize           float64 `json:"BULLET_SIZE"`
	BulletSpeed          float64 `json:"BULLET_SPEED"`
	PlayerSpeed          float64 `json:"PLAYER_SPEED"`
	MaxHealth            int     `json:"MAX_HEALTH"`
	RespawnTime          int64   `json:"RESPAWN_TIME"`
	PowerupSize          float64 `json:"POWERUP_SIZE"`
	PowerupSpawnInterval int64   `json:"POWERUP_SPAWN_INTERVAL"`
	PowerupDuration      int64   `json:"POWERUP_DURATION"`
	TerrainSize          float64 `json:"TERRAIN_SIZE"`
	MeleeRange           float64 `json:"MELEE_RANGE"`
	MeleeDamage          int     `json:"MELEE_DAMAGE"`
	MeleeCooldown        int64   `json:"MELEE_COOLDOWN"`
	GameDuration         int64   `json:"GAME_DURATION"`
	TickRate             int     `json:"TICK_RATE"`
}

// ClientJSON renders the configuration blob carried by the JOINED message.
func (g Game) ClientJSON() (string, error) {
	payload := clientGameConfig{
		CanvasWidth:          g.WorldWidth,
		CanvasHeight:         g.WorldHeight,
		PlayerSize:           g.PlayerSize,
		BulletSize:           g.ProjectileSize,
		BulletSpeed:          g.ProjectileSpeed,
		PlayerSpeed:          g.PlayerSpeed,
		MaxHealth:            g.MaxHealth,
		RespawnTime:          g.RespawnDelay.Milliseconds(),
		PowerupSize:          g.PickupSize,
		PowerupSpawnInterval: g.PickupSpawnInterval.Milliseconds(),
		PowerupDuration:      g.PickupDuration.Milliseconds(),
		TerrainSize:          g.TerrainSize,
		MeleeRange:           g.MeleeRange,
		MeleeDamage:          g.MeleeDamage,
		MeleeCooldown:        g.MeleeCooldown.Milliseconds(),
		GameDuration:         g.RoundDuration.Milliseconds(),
		TickRate:             g.TickRate,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteTOML renders the effective configuration.
func WriteTOML(w io.Writer, cfg Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(cfg)
}
