package sim

import (
	"cmp"
	"slices"

	"arena/server/internal/net/proto"
	"arena/server/internal/state"
	"arena/server/internal/world"
	loggingRound "arena/server/logging/round"
)

// GameEndKills is how many kill-feed rows accompany the final standings.
const GameEndKills = state.KillFeedWindow

// bootstrapRound suspends an empty world and starts play for the first
// player to arrive.
func (a *Arena) bootstrapRound() {
	round := &a.store.Round
	switch {
	case a.store.PlayerCount() == 0 && round.Phase != state.PhaseSuspended:
		round.Suspend()
		a.store.ClearProjectiles()
		loggingRound.Suspended(a.ctx(), a.deps.Publisher, a.tick)
	case a.store.PlayerCount() > 0 && round.Phase == state.PhaseSuspended:
		a.startRound()
	}
}

// advanceRound moves the round through Playing, ShowingResults and
// StartingNew as each deadline passes.
func (a *Arena) advanceRound() {
	round := &a.store.Round
	if !round.Expired(a.now) {
		return
	}
	switch round.Phase {
	case state.PhasePlaying:
		a.endRound()
	case state.PhaseShowingResults:
		a.resetWorld()
	case state.PhaseStartingNew:
		a.startRound()
	}
}

func (a *Arena) startRound() {
	a.store.Round.Start(a.now, a.cfg.RoundDuration)
	a.lastPickupSpawn = a.now
	a.emit(&proto.GameStarted{Duration: proto.DurationMillis(a.cfg.RoundDuration)})
	loggingRound.Started(a.ctx(), a.deps.Publisher, a.tick)
}

func (a *Arena) endRound() {
	a.store.Round.BeginCountdown(state.PhaseShowingResults, a.now, a.cfg.ResultsDuration)
	a.store.ClearProjectiles()

	standings := a.standings()
	kills := a.store.RecentKills(GameEndKills)
	msg := &proto.GameEnd{Standings: standings, Kills: make([]proto.KillInfo, 0, len(kills))}
	for _, entry := range kills {
		msg.Kills = append(msg.Kills, a.killInfo(entry))
	}
	a.emit(msg)

	payload := loggingRound.EndedPayload{Players: len(standings), Kills: a.store.KillCount()}
	if len(standings) > 0 {
		payload.Leader = standings[0].Name
		payload.Score = int(standings[0].Score)
	}
	loggingRound.Ended(a.ctx(), a.deps.Publisher, a.tick, payload)
}

// standings orders players by score, highest first, ties by id.
func (a *Arena) standings() []proto.Standing {
	players := a.store.Players()
	slices.SortStableFunc(players, func(x, y *state.Player) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	out := make([]proto.Standing, 0, len(players))
	for _, p := range players {
		out = append(out, proto.Standing{PlayerID: p.ID, Name: p.Name, Score: clampU16(p.Score), Color: p.Color})
	}
	return out
}

// resetWorld rebuilds the arena for the next round and asks the hub to
// resend full state to everyone.
func (a *Arena) resetWorld() {
	a.store.ClearProjectiles()
	a.store.ClearPickups()
	a.store.ClearKillFeed()
	a.store.SetTerrain(world.GenerateTerrain(a.deps.RNG, a.cfg.WorldWidth, a.cfg.WorldHeight, a.cfg.TerrainSize))

	rule := world.JoinRule(a.cfg.PlayerSize)
	for _, p := range a.store.Players() {
		spawn := world.FindSpawn(a.deps.RNG, a.store, rule, p.ID)
		p.ResetForRound(spawn.X, spawn.Y, a.cfg.MaxHealth)
	}

	a.store.Round.BeginCountdown(state.PhaseStartingNew, a.now, a.cfg.StartingDuration)
	a.emit(&proto.NewGameStart{Countdown: clampU8(int(a.cfg.StartingDuration.Seconds()))})
	a.signal(EventWorldReset, 0, 0)
	loggingRound.Reset(a.ctx(), a.deps.Publisher, a.tick, loggingRound.ResetPayload{TerrainBlocks: len(a.store.Terrain())})
}
