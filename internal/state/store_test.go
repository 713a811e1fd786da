package state

import (
	"testing"
	"time"
)

func TestRectOverlapIsStrict(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	if !a.Overlaps(Rect{X: 9, Y: 9, W: 5, H: 5}) {
		t.Fatalf("expected overlapping rects to overlap")
	}
	if a.Overlaps(Rect{X: 10, Y: 0, W: 5, H: 5}) {
		t.Fatalf("expected edge-touching rects not to overlap")
	}
}

func TestCenteredRect(t *testing.T) {
	r := CenteredRect(100, 50, 20)
	if r.X != 90 || r.Y != 40 || r.W != 20 || r.H != 20 {
		t.Fatalf("unexpected rect: %+v", r)
	}
	cx, cy := r.Center()
	if cx != 100 || cy != 50 {
		t.Fatalf("unexpected centre (%v, %v)", cx, cy)
	}
}

func TestColorForCyclesPalette(t *testing.T) {
	if ColorFor(1) != PlayerColors[0] {
		t.Fatalf("expected first colour for id 1")
	}
	if ColorFor(11) != PlayerColors[0] {
		t.Fatalf("expected palette to wrap at 10")
	}
	if ColorFor(10) != PlayerColors[9] {
		t.Fatalf("expected last colour for id 10")
	}
}

func TestBuffsExpireSameTick(t *testing.T) {
	now := time.Unix(100, 0)
	var buffs Buffs
	buffs.Activate(BuffShield, now, time.Second)
	buffs.Activate(BuffDamageBoost, now, 3*time.Second)

	if expired := buffs.Expire(now.Add(time.Second)); expired != 1 {
		t.Fatalf("expected shield to expire at its end time, expired=%d", expired)
	}
	if buffs.Shield.Active {
		t.Fatalf("expected shield inactive")
	}
	if !buffs.DamageBoost.Active {
		t.Fatalf("expected damage boost still active")
	}
}

func TestStorePlayersOrderedAndIDsNotReused(t *testing.T) {
	store := NewStore(100, 100)
	now := time.Unix(0, 0)
	first := store.NextPlayerID()
	second := store.NextPlayerID()
	store.AddPlayer(NewPlayer(second, "b", 10, 10, 100, now))
	store.AddPlayer(NewPlayer(first, "a", 20, 20, 100, now))

	players := store.Players()
	if len(players) != 2 || players[0].ID != first || players[1].ID != second {
		t.Fatalf("expected players ordered by id, got %+v", players)
	}

	store.RemovePlayer(first)
	if third := store.NextPlayerID(); third == first {
		t.Fatalf("expected fresh id, got reused %d", third)
	}
	if _, ok := store.Player(first); ok {
		t.Fatalf("expected removed player to be gone")
	}
}

func TestStoreRemoveProjectileOnce(t *testing.T) {
	store := NewStore(100, 100)
	store.AddProjectile(&Projectile{ID: "a"})
	store.AddProjectile(&Projectile{ID: "b"})

	if !store.RemoveProjectile("a") {
		t.Fatalf("expected first removal to succeed")
	}
	if store.RemoveProjectile("a") {
		t.Fatalf("expected second removal to report false")
	}
	if got := store.Projectiles(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected projectiles: %+v", got)
	}
}

func TestStorePickupIDsAndTerrainCollision(t *testing.T) {
	store := NewStore(200, 200)
	p := store.AddPickup(&Pickup{Kind: PickupHeal, X: 5, Y: 5})
	if p.ID != 1 {
		t.Fatalf("expected first pickup id 1, got %d", p.ID)
	}
	store.SetTerrain([]Block{{ID: 1, Rect: Rect{X: 50, Y: 50, W: 40, H: 40}, Material: MaterialRock}})

	if !store.CollidesTerrain(CenteredRect(60, 60, 20)) {
		t.Fatalf("expected collision with block")
	}
	if store.CollidesTerrain(CenteredRect(20, 20, 20)) {
		t.Fatalf("expected no collision away from block")
	}
	if store.InBounds(CenteredRect(5, 5, 20)) {
		t.Fatalf("expected rect crossing the edge to be out of bounds")
	}
}

func TestRecentKillsWindow(t *testing.T) {
	store := NewStore(10, 10)
	for i := 0; i < KillFeedWindow+3; i++ {
		store.AppendKill(KillFeedEntry{Killer: string(rune('a' + i))})
	}
	recent := store.RecentKills(KillFeedWindow)
	if len(recent) != KillFeedWindow {
		t.Fatalf("expected %d entries, got %d", KillFeedWindow, len(recent))
	}
	if recent[0].Killer != "d" {
		t.Fatalf("expected window to start at the 4th kill, got %q", recent[0].Killer)
	}
}

func TestRoundRemainingUsesRecordedStart(t *testing.T) {
	start := time.Unix(1000, 0)
	var round Round
	round.Start(start, 2*time.Minute)

	if got := round.Remaining(start.Add(30 * time.Second)); got != 90*time.Second {
		t.Fatalf("expected 90s remaining, got %v", got)
	}
	if round.Expired(start.Add(time.Minute)) {
		t.Fatalf("round expired early")
	}
	if !round.Expired(start.Add(2 * time.Minute)) {
		t.Fatalf("expected round to expire at its duration")
	}

	round.BeginCountdown(PhaseShowingResults, start.Add(2*time.Minute), 5*time.Second)
	if !round.Ended || !round.ShowingResults {
		t.Fatalf("expected ended results phase, got %+v", round)
	}
	if got := round.Remaining(start.Add(2*time.Minute + 2*time.Second)); got != 3*time.Second {
		t.Fatalf("expected 3s of countdown left, got %v", got)
	}

	round.Suspend()
	if round.Phase != PhaseSuspended || !round.Ended || !round.StartedAt.IsZero() {
		t.Fatalf("unexpected suspended round: %+v", round)
	}
}
