package proto

import "strconv"

// Version is the binary protocol revision announced in CONNECTED.
const Version = 1

// MessageType is the leading tag byte of every frame.
type MessageType uint8

// Client to server.
const (
	TypeJoin    MessageType = 1
	TypeMove    MessageType = 2
	TypeShoot   MessageType = 3
	TypeMelee   MessageType = 4
	TypeRespawn MessageType = 5
	TypeChat    MessageType = 6
	TypePing    MessageType = 7
)

// Server to client.
const (
	TypeJoined            MessageType = 10
	TypePlayerJoined      MessageType = 11
	TypePlayerLeft        MessageType = 12
	TypeGameState         MessageType = 13
	TypePlayerMove        MessageType = 14
	TypePlayerHit         MessageType = 16
	TypeBulletHitWall     MessageType = 17
	TypePlayerRespawn     MessageType = 18
	TypeGameUpdate        MessageType = 19
	TypeIncrementalUpdate MessageType = 20
	TypeGameEnd           MessageType = 21
	TypeNewGameStart      MessageType = 22
	TypeGameStarted       MessageType = 23
	TypeMeleeAttack       MessageType = 24
	TypeKillFeed          MessageType = 25
	TypePowerupSpawned    MessageType = 26
	TypePowerupPickedUp   MessageType = 27
	TypeChatMessage       MessageType = 28
	TypePong              MessageType = 29
	TypeConnected         MessageType = 30
	TypeError             MessageType = 31
	TypeBatch             MessageType = 32
)

var typeNames = map[MessageType]string{
	TypeJoin:              "JOIN",
	TypeMove:              "MOVE",
	TypeShoot:             "SHOOT",
	TypeMelee:             "MELEE",
	TypeRespawn:           "RESPAWN",
	TypeChat:              "CHAT",
	TypePing:              "PING",
	TypeJoined:            "JOINED",
	TypePlayerJoined:      "PLAYER_JOINED",
	TypePlayerLeft:        "PLAYER_LEFT",
	TypeGameState:         "GAME_STATE",
	TypePlayerMove:        "PLAYER_MOVE",
	TypePlayerHit:         "PLAYER_HIT",
	TypeBulletHitWall:     "BULLET_HIT_WALL",
	TypePlayerRespawn:     "PLAYER_RESPAWN",
	TypeGameUpdate:        "GAME_UPDATE",
	TypeIncrementalUpdate: "INCREMENTAL_UPDATE",
	TypeGameEnd:           "GAME_END",
	TypeNewGameStart:      "NEW_GAME_START",
	TypeGameStarted:       "GAME_STARTED",
	TypeMeleeAttack:       "MELEE_ATTACK",
	TypeKillFeed:          "KILL_FEED",
	TypePowerupSpawned:    "POWERUP_SPAWNED",
	TypePowerupPickedUp:   "POWERUP_PICKED_UP",
	TypeChatMessage:       "CHAT_MESSAGE",
	TypePong:              "PONG",
	TypeConnected:         "CONNECTED",
	TypeError:             "ERROR",
	TypeBatch:             "BATCH",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// ClientOriginated reports whether clients are allowed to send t.
func (t MessageType) ClientOriginated() bool {
	return t >= TypeJoin && t <= TypePing
}

// Incremental update section tags.
const (
	sectionNewPlayers         uint8 = 0x10
	sectionChangedPlayers     uint8 = 0x02
	sectionNewProjectiles     uint8 = 0x03
	sectionRemovedProjectiles uint8 = 0x13
	sectionNewPickups         uint8 = 0x04
	sectionRemovedPickups     uint8 = 0x14
	sectionEnd                uint8 = 0xFF
)

// FieldMask flags which PlayerChange slots carry a value.
type FieldMask uint16

const (
	FieldX FieldMask = 1 << iota
	FieldY
	FieldAngle
	FieldHealth
	FieldScore
	FieldAlive
	FieldBuffs

	fieldAll = FieldX | FieldY | FieldAngle | FieldHealth | FieldScore | FieldAlive | FieldBuffs
)

func (m FieldMask) Has(f FieldMask) bool {
	return m&f != 0
}

// Buff flags packed into PlayerChange.Buffs.
const (
	BuffShield uint8 = 1 << iota
	BuffRapidFire
	BuffDamageBoost
)
