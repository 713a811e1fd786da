package sim

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"arena/server/internal/net/proto"
	"arena/server/internal/state"
	"arena/server/internal/world"
	"arena/server/logging"
	loggingLifecycle "arena/server/logging/lifecycle"
)

const (
	MaxNameRunes = 20
	MaxChatRunes = 100
)

func (a *Arena) join(cmd Command) {
	name := ""
	if cmd.Join != nil {
		name = cmd.Join.Name
	}
	id := a.store.NextPlayerID()
	name = sanitizeName(name, id)

	spawn := world.FindSpawn(a.deps.RNG, a.store, world.JoinRule(a.cfg.PlayerSize), 0)
	player := state.NewPlayer(id, name, spawn.X, spawn.Y, a.cfg.MaxHealth, a.now)
	a.store.AddPlayer(player)

	a.signal(EventJoined, cmd.ConnID, id)
	a.emitExcept(id, &proto.PlayerJoined{Player: PlayerInfo(player)})

	loggingLifecycle.PlayerJoined(
		a.ctx(),
		a.deps.Publisher,
		a.tick,
		logging.PlayerRef(id),
		loggingLifecycle.PlayerJoinedPayload{Name: name, SpawnX: spawn.X, SpawnY: spawn.Y},
		map[string]any{"conn": cmd.ConnID, "fallback": spawn.Fallback},
	)
}

func (a *Arena) leave(cmd Command) {
	if _, ok := a.store.RemovePlayer(cmd.ActorID); !ok {
		return
	}
	a.removed = append(a.removed, cmd.ActorID)
	a.emit(&proto.PlayerLeft{PlayerID: cmd.ActorID})

	reason := ""
	if cmd.Leave != nil {
		reason = cmd.Leave.Reason
	}
	loggingLifecycle.PlayerDisconnected(
		a.ctx(),
		a.deps.Publisher,
		a.tick,
		logging.PlayerRef(cmd.ActorID),
		loggingLifecycle.PlayerDisconnectedPayload{Reason: reason},
		nil,
	)
}

// respawn revives a dead player at a fresh spot and announces it.
func (a *Arena) respawn(p *state.Player) {
	rule := world.RespawnRule(a.cfg.PlayerSize, a.cfg.WorldWidth, a.cfg.WorldHeight)
	spawn := world.FindSpawn(a.deps.RNG, a.store, rule, p.ID)
	p.Revive(spawn.X, spawn.Y, a.cfg.MaxHealth)
	a.emit(&proto.PlayerRespawn{
		PlayerID: p.ID,
		X:        float32(p.X),
		Y:        float32(p.Y),
		Health:   clampU8(p.Health),
	})
	loggingLifecycle.PlayerRespawned(a.ctx(), a.deps.Publisher, a.tick, logging.PlayerRef(p.ID), loggingLifecycle.PlayerRespawnedPayload{
		X:        spawn.X,
		Y:        spawn.Y,
		Fallback: spawn.Fallback,
	})
}

// respawnCommand honours an explicit request once the delay has run out.
// The automatic timer in updatePlayers usually gets there first.
func (a *Arena) respawnCommand(cmd Command) bool {
	p, ok := a.store.Player(cmd.ActorID)
	if !ok || p.Alive || p.RespawnIn > 0 {
		return false
	}
	a.respawn(p)
	return true
}

func (a *Arena) chat(cmd Command) bool {
	p, ok := a.store.Player(cmd.ActorID)
	if !ok || cmd.Chat == nil {
		return false
	}
	text := truncateRunes(strings.TrimSpace(cmd.Chat.Text), MaxChatRunes)
	if text == "" {
		return false
	}
	a.emit(&proto.ChatMessage{
		PlayerID: p.ID,
		Name:     p.Name,
		Text:     text,
		Time:     proto.Millis(a.now),
	})
	return true
}

func sanitizeName(name string, id uint32) string {
	name = truncateRunes(strings.TrimSpace(name), MaxNameRunes)
	if name == "" {
		return fmt.Sprintf("Player%d", id)
	}
	return name
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
