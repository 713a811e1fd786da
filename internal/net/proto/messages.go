package proto

// Message is one tagged frame. Decode returns pointers to these types and
// Encode accepts them.
type Message interface {
	Type() MessageType
	encode(w *Writer)
	decode(r *Reader)
}

var constructors = map[MessageType]func() Message{
	TypeJoin:              func() Message { return &Join{} },
	TypeMove:              func() Message { return &Move{} },
	TypeShoot:             func() Message { return &Shoot{} },
	TypeMelee:             func() Message { return &Melee{} },
	TypeRespawn:           func() Message { return &Respawn{} },
	TypeChat:              func() Message { return &Chat{} },
	TypePing:              func() Message { return &Ping{} },
	TypeJoined:            func() Message { return &Joined{} },
	TypePlayerJoined:      func() Message { return &PlayerJoined{} },
	TypePlayerLeft:        func() Message { return &PlayerLeft{} },
	TypeGameState:         func() Message { return &GameState{} },
	TypePlayerMove:        func() Message { return &PlayerMove{} },
	TypePlayerHit:         func() Message { return &PlayerHit{} },
	TypeBulletHitWall:     func() Message { return &BulletHitWall{} },
	TypePlayerRespawn:     func() Message { return &PlayerRespawn{} },
	TypeGameUpdate:        func() Message { return &GameUpdate{} },
	TypeIncrementalUpdate: func() Message { return &IncrementalUpdate{} },
	TypeGameEnd:           func() Message { return &GameEnd{} },
	TypeNewGameStart:      func() Message { return &NewGameStart{} },
	TypeGameStarted:       func() Message { return &GameStarted{} },
	TypeMeleeAttack:       func() Message { return &MeleeAttack{} },
	TypeKillFeed:          func() Message { return &KillFeed{} },
	TypePowerupSpawned:    func() Message { return &PowerupSpawned{} },
	TypePowerupPickedUp:   func() Message { return &PowerupPickedUp{} },
	TypeChatMessage:       func() Message { return &ChatMessage{} },
	TypePong:              func() Message { return &Pong{} },
	TypeConnected:         func() Message { return &Connected{} },
	TypeError:             func() Message { return &Error{} },
	TypeBatch:             func() Message { return &Batch{} },
}

// Join: name string, client time u32.
type Join struct {
	Name       string
	ClientTime uint32
}

func (*Join) Type() MessageType { return TypeJoin }

func (m *Join) encode(w *Writer) {
	w.Text(m.Name)
	w.Uint32(m.ClientTime)
}

func (m *Join) decode(r *Reader) {
	m.Name = r.Text()
	m.ClientTime = r.Uint32()
}

// Move: desired x, y and facing angle, f32 each.
type Move struct {
	X, Y, Angle float32
}

func (*Move) Type() MessageType { return TypeMove }

func (m *Move) encode(w *Writer) {
	w.Float32(m.X)
	w.Float32(m.Y)
	w.Float32(m.Angle)
}

func (m *Move) decode(r *Reader) {
	m.X = r.Float32()
	m.Y = r.Float32()
	m.Angle = r.Float32()
}

// Shoot: aim point x, y.
type Shoot struct {
	X, Y float32
}

func (*Shoot) Type() MessageType { return TypeShoot }

func (m *Shoot) encode(w *Writer) {
	w.Float32(m.X)
	w.Float32(m.Y)
}

func (m *Shoot) decode(r *Reader) {
	m.X = r.Float32()
	m.Y = r.Float32()
}

// Melee: aim point x, y. The server only uses it for the swing angle.
type Melee struct {
	X, Y float32
}

func (*Melee) Type() MessageType { return TypeMelee }

func (m *Melee) encode(w *Writer) {
	w.Float32(m.X)
	w.Float32(m.Y)
}

func (m *Melee) decode(r *Reader) {
	m.X = r.Float32()
	m.Y = r.Float32()
}

type Respawn struct{}

func (*Respawn) Type() MessageType { return TypeRespawn }
func (*Respawn) encode(*Writer)    {}
func (*Respawn) decode(*Reader)    {}

type Chat struct {
	Text string
}

func (*Chat) Type() MessageType { return TypeChat }

func (m *Chat) encode(w *Writer) { w.Text(m.Text) }
func (m *Chat) decode(r *Reader) { m.Text = r.Text() }

// Ping carries a client timestamp echoed back in Pong.
type Ping struct {
	ClientTime uint32
}

func (*Ping) Type() MessageType { return TypePing }

func (m *Ping) encode(w *Writer) { w.Uint32(m.ClientTime) }
func (m *Ping) decode(r *Reader) { m.ClientTime = r.Uint32() }

// Joined: assigned id u32, client configuration JSON string.
type Joined struct {
	PlayerID uint32
	Config   string
}

func (*Joined) Type() MessageType { return TypeJoined }

func (m *Joined) encode(w *Writer) {
	w.Uint32(m.PlayerID)
	w.Text(m.Config)
}

func (m *Joined) decode(r *Reader) {
	m.PlayerID = r.Uint32()
	m.Config = r.Text()
}

type PlayerJoined struct {
	Player PlayerInfo
}

func (*PlayerJoined) Type() MessageType { return TypePlayerJoined }

func (m *PlayerJoined) encode(w *Writer) { m.Player.encode(w) }
func (m *PlayerJoined) decode(r *Reader) { m.Player.decode(r) }

type PlayerLeft struct {
	PlayerID uint32
}

func (*PlayerLeft) Type() MessageType { return TypePlayerLeft }

func (m *PlayerLeft) encode(w *Writer) { w.Uint32(m.PlayerID) }
func (m *PlayerLeft) decode(r *Reader) { m.PlayerID = r.Uint32() }

// PlayerMove echoes one player's accepted position.
type PlayerMove struct {
	PlayerID    uint32
	X, Y, Angle float32
}

func (*PlayerMove) Type() MessageType { return TypePlayerMove }

func (m *PlayerMove) encode(w *Writer) {
	w.Uint32(m.PlayerID)
	w.Float32(m.X)
	w.Float32(m.Y)
	w.Float32(m.Angle)
}

func (m *PlayerMove) decode(r *Reader) {
	m.PlayerID = r.Uint32()
	m.X = r.Float32()
	m.Y = r.Float32()
	m.Angle = r.Float32()
}

// PlayerHit: target u32, attacker u32, weapon string, projectile id string
// (empty for melee), damage u8, remaining health u8, killed u8.
type PlayerHit struct {
	TargetID     uint32
	AttackerID   uint32
	Weapon       string
	ProjectileID string
	Damage       uint8
	Health       uint8
	Killed       bool
}

func (*PlayerHit) Type() MessageType { return TypePlayerHit }

func (m *PlayerHit) encode(w *Writer) {
	w.Uint32(m.TargetID)
	w.Uint32(m.AttackerID)
	w.Text(m.Weapon)
	w.Text(m.ProjectileID)
	w.Uint8(m.Damage)
	w.Uint8(m.Health)
	w.Bool(m.Killed)
}

func (m *PlayerHit) decode(r *Reader) {
	m.TargetID = r.Uint32()
	m.AttackerID = r.Uint32()
	m.Weapon = r.Text()
	m.ProjectileID = r.Text()
	m.Damage = r.Uint8()
	m.Health = r.Uint8()
	m.Killed = r.Bool()
}

// BulletHitWall: projectile id string, pre-impact x, y.
type BulletHitWall struct {
	ProjectileID string
	X, Y         float32
}

func (*BulletHitWall) Type() MessageType { return TypeBulletHitWall }

func (m *BulletHitWall) encode(w *Writer) {
	w.Text(m.ProjectileID)
	w.Float32(m.X)
	w.Float32(m.Y)
}

func (m *BulletHitWall) decode(r *Reader) {
	m.ProjectileID = r.Text()
	m.X = r.Float32()
	m.Y = r.Float32()
}

type PlayerRespawn struct {
	PlayerID uint32
	X, Y     float32
	Health   uint8
}

func (*PlayerRespawn) Type() MessageType { return TypePlayerRespawn }

func (m *PlayerRespawn) encode(w *Writer) {
	w.Uint32(m.PlayerID)
	w.Float32(m.X)
	w.Float32(m.Y)
	w.Uint8(m.Health)
}

func (m *PlayerRespawn) decode(r *Reader) {
	m.PlayerID = r.Uint32()
	m.X = r.Float32()
	m.Y = r.Float32()
	m.Health = r.Uint8()
}

// Standing is one row of the final scoreboard.
type Standing struct {
	PlayerID uint32
	Name     string
	Score    uint16
	Color    string
}

// KillInfo is one kill-feed row; Time is milliseconds since the round started.
type KillInfo struct {
	Killer string
	Victim string
	Weapon string
	Time   uint32
}

func (k *KillInfo) encode(w *Writer) {
	w.Text(k.Killer)
	w.Text(k.Victim)
	w.Text(k.Weapon)
	w.Uint32(k.Time)
}

func (k *KillInfo) decode(r *Reader) {
	k.Killer = r.Text()
	k.Victim = r.Text()
	k.Weapon = r.Text()
	k.Time = r.Uint32()
}

// GameEnd: standings sorted by score, then the recent kill feed.
type GameEnd struct {
	Standings []Standing
	Kills     []KillInfo
}

func (*GameEnd) Type() MessageType { return TypeGameEnd }

func (m *GameEnd) encode(w *Writer) {
	w.Count(len(m.Standings))
	for _, s := range m.Standings {
		w.Uint32(s.PlayerID)
		w.Text(s.Name)
		w.Uint16(s.Score)
		w.Text(s.Color)
	}
	w.Count(len(m.Kills))
	for i := range m.Kills {
		m.Kills[i].encode(w)
	}
}

func (m *GameEnd) decode(r *Reader) {
	n := r.Count(10)
	m.Standings = make([]Standing, n)
	for i := range m.Standings {
		s := &m.Standings[i]
		s.PlayerID = r.Uint32()
		s.Name = r.Text()
		s.Score = r.Uint16()
		s.Color = r.Text()
	}
	n = r.Count(10)
	m.Kills = make([]KillInfo, n)
	for i := range m.Kills {
		m.Kills[i].decode(r)
	}
}

// NewGameStart announces the reset world and the countdown in seconds.
type NewGameStart struct {
	Countdown uint8
}

func (*NewGameStart) Type() MessageType { return TypeNewGameStart }

func (m *NewGameStart) encode(w *Writer) { w.Uint8(m.Countdown) }
func (m *NewGameStart) decode(r *Reader) { m.Countdown = r.Uint8() }

// GameStarted: round duration in milliseconds.
type GameStarted struct {
	Duration uint32
}

func (*GameStarted) Type() MessageType { return TypeGameStarted }

func (m *GameStarted) encode(w *Writer) { w.Uint32(m.Duration) }
func (m *GameStarted) decode(r *Reader) { m.Duration = r.Uint32() }

// MeleeAttack is sent for every accepted swing. TargetID is 0 on a miss.
type MeleeAttack struct {
	AttackerID uint32
	X, Y       float32
	Angle      float32
	Range      float32
	TargetID   uint32
}

func (*MeleeAttack) Type() MessageType { return TypeMeleeAttack }

func (m *MeleeAttack) encode(w *Writer) {
	w.Uint32(m.AttackerID)
	w.Float32(m.X)
	w.Float32(m.Y)
	w.Float32(m.Angle)
	w.Float32(m.Range)
	w.Uint32(m.TargetID)
}

func (m *MeleeAttack) decode(r *Reader) {
	m.AttackerID = r.Uint32()
	m.X = r.Float32()
	m.Y = r.Float32()
	m.Angle = r.Float32()
	m.Range = r.Float32()
	m.TargetID = r.Uint32()
}

type KillFeed struct {
	Entry KillInfo
}

func (*KillFeed) Type() MessageType { return TypeKillFeed }

func (m *KillFeed) encode(w *Writer) { m.Entry.encode(w) }
func (m *KillFeed) decode(r *Reader) { m.Entry.decode(r) }

type PowerupSpawned struct {
	Pickup PickupInfo
}

func (*PowerupSpawned) Type() MessageType { return TypePowerupSpawned }

func (m *PowerupSpawned) encode(w *Writer) { m.Pickup.encode(w, true) }
func (m *PowerupSpawned) decode(r *Reader) { m.Pickup.decode(r, true) }

type PowerupPickedUp struct {
	PickupID uint32
	PlayerID uint32
	Kind     string
}

func (*PowerupPickedUp) Type() MessageType { return TypePowerupPickedUp }

func (m *PowerupPickedUp) encode(w *Writer) {
	w.Uint32(m.PickupID)
	w.Uint32(m.PlayerID)
	w.Text(m.Kind)
}

func (m *PowerupPickedUp) decode(r *Reader) {
	m.PickupID = r.Uint32()
	m.PlayerID = r.Uint32()
	m.Kind = r.Text()
}

type ChatMessage struct {
	PlayerID uint32
	Name     string
	Text     string
	Time     uint32
}

func (*ChatMessage) Type() MessageType { return TypeChatMessage }

func (m *ChatMessage) encode(w *Writer) {
	w.Uint32(m.PlayerID)
	w.Text(m.Name)
	w.Text(m.Text)
	w.Uint32(m.Time)
}

func (m *ChatMessage) decode(r *Reader) {
	m.PlayerID = r.Uint32()
	m.Name = r.Text()
	m.Text = r.Text()
	m.Time = r.Uint32()
}

// Pong echoes the client timestamp next to the server clock.
type Pong struct {
	ClientTime uint32
	ServerTime uint32
}

func (*Pong) Type() MessageType { return TypePong }

func (m *Pong) encode(w *Writer) {
	w.Uint32(m.ClientTime)
	w.Uint32(m.ServerTime)
}

func (m *Pong) decode(r *Reader) {
	m.ClientTime = r.Uint32()
	m.ServerTime = r.Uint32()
}

// Connected is the first frame on every connection.
type Connected struct {
	Version    uint8
	ServerTime uint32
}

func (*Connected) Type() MessageType { return TypeConnected }

func (m *Connected) encode(w *Writer) {
	w.Uint8(m.Version)
	w.Uint32(m.ServerTime)
}

func (m *Connected) decode(r *Reader) {
	m.Version = r.Uint8()
	m.ServerTime = r.Uint32()
}

// Error precedes a server-initiated close.
type Error struct {
	Code   uint16
	Reason string
}

func (*Error) Type() MessageType { return TypeError }

func (m *Error) encode(w *Writer) {
	w.Uint16(m.Code)
	w.Text(m.Reason)
}

func (m *Error) decode(r *Reader) {
	m.Code = r.Uint16()
	m.Reason = r.Text()
}

// Error codes carried by Error frames.
const (
	ErrorCodeJoinTimeout uint16 = 1
	ErrorCodeMalformed   uint16 = 2
	ErrorCodeOversized   uint16 = 3
	ErrorCodeServerFull  uint16 = 4
	ErrorCodeShutdown    uint16 = 5
)
