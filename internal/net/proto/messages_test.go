package proto

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJoinLayout(t *testing.T) {
	data, err := Encode(&Join{Name: "ace", ClientTime: 0x01020304})
	require.NoError(t, err)

	want := []byte{byte(TypeJoin), 3, 0, 'a', 'c', 'e', 0x04, 0x03, 0x02, 0x01}
	assert.Equal(t, want, data)
}

func TestEncodeMoveLittleEndianFloats(t *testing.T) {
	data, err := Encode(&Move{X: 1.5, Y: -2, Angle: 0.25})
	require.NoError(t, err)
	require.Len(t, data, 13)

	assert.Equal(t, byte(TypeMove), data[0])
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(data[1:])))
	assert.Equal(t, float32(-2), math.Float32frombits(binary.LittleEndian.Uint32(data[5:])))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(data[9:])))
}

func TestDecodeClientMessages(t *testing.T) {
	cases := []Message{
		&Join{Name: "名前", ClientTime: 99},
		&Move{X: 10, Y: 20, Angle: 3.1},
		&Shoot{X: 400, Y: 300},
		&Melee{X: 1, Y: 2},
		&Respawn{},
		&Chat{Text: "gg"},
		&Ping{ClientTime: 12345},
	}
	for _, msg := range cases {
		t.Run(msg.Type().String(), func(t *testing.T) {
			assert.True(t, msg.Type().ClientOriginated())
			data, err := Encode(msg)
			require.NoError(t, err)
			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, msg, decoded)
		})
	}
}

func TestGameStateCarriesStylingAndTerrain(t *testing.T) {
	state := &GameState{
		Players: []PlayerInfo{{
			ID: 1, Name: "a", X: 100, Y: 120, Angle: 1, Health: 75, Score: 210,
			Alive: true, Color: "#FF6B6B", Shield: true,
		}},
		Projectiles: []ProjectileInfo{{ID: "p1", X: 5, Y: 6, VX: 480, VY: 0, OwnerID: 1, Damage: 37}},
		Pickups:     []PickupInfo{{ID: 3, Kind: "shield", X: 40, Y: 50, Color: "#4ECDC4", Icon: "S"}},
		Terrain:     []BlockInfo{{ID: 9, X: 0, Y: 0, W: 40, H: 40, Material: "wall"}},
	}
	data, err := Encode(state)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestGameUpdateOmitsPickupStyling(t *testing.T) {
	update := &GameUpdate{
		Pickups:       []PickupInfo{{ID: 3, Kind: "heal", X: 1, Y: 2, Color: "#fff", Icon: "+"}},
		RemainingTime: 60000,
		Ended:         true,
	}
	data, err := Encode(update)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	got := decoded.(*GameUpdate)
	require.Len(t, got.Pickups, 1)
	assert.Empty(t, got.Pickups[0].Color)
	assert.Empty(t, got.Pickups[0].Icon)
	assert.Equal(t, uint32(60000), got.RemainingTime)
	assert.True(t, got.Ended)
}

func TestIncrementalUpdateSections(t *testing.T) {
	update := &IncrementalUpdate{
		Timestamp:      7,
		RemainingTime:  1000,
		NewPlayers:     []PlayerInfo{{ID: 2, Name: "b", Health: 100, Alive: true}},
		ChangedPlayers: []PlayerChange{{ID: 1, Mask: FieldX | FieldHealth | FieldBuffs, X: 33, Health: 50, Buffs: BuffShield | BuffDamageBoost}},
		NewProjectiles: []ProjectileInfo{{ID: "x", OwnerID: 2}},
		RemovedPickups: []uint32{4, 5},
	}
	data, err := Encode(update)
	require.NoError(t, err)
	assert.Equal(t, sectionEnd, data[len(data)-1])

	decoded, err := Decode(data)
	require.NoError(t, err)
	got := decoded.(*IncrementalUpdate)
	assert.Equal(t, update.NewPlayers, got.NewPlayers)
	assert.Equal(t, update.ChangedPlayers, got.ChangedPlayers)
	assert.Equal(t, update.NewProjectiles, got.NewProjectiles)
	assert.Equal(t, update.RemovedPickups, got.RemovedPickups)
	assert.Nil(t, got.RemovedProjectiles)
	assert.Nil(t, got.NewPickups)
}

func TestPlayerChangeOmitsUnsetFields(t *testing.T) {
	onlyAngle, err := Encode(&IncrementalUpdate{ChangedPlayers: []PlayerChange{{ID: 1, Mask: FieldAngle, Angle: 2}}})
	require.NoError(t, err)
	full, err := Encode(&IncrementalUpdate{ChangedPlayers: []PlayerChange{{ID: 1, Mask: fieldAll}}})
	require.NoError(t, err)

	// header 10, section tag + count 3, id + mask 6, terminator 1
	assert.Len(t, onlyAngle, 10+3+6+4+1)
	assert.Len(t, full, 10+3+6+4+4+4+1+2+1+1+1)
}

func TestPlayerChangeApply(t *testing.T) {
	p := PlayerInfo{ID: 1, X: 1, Y: 2, Health: 100, Alive: true}
	change := PlayerChange{ID: 1, Mask: FieldY | FieldAlive | FieldBuffs, Y: 9, Alive: false, Buffs: BuffRapidFire}
	change.Apply(&p)

	assert.Equal(t, float32(1), p.X)
	assert.Equal(t, float32(9), p.Y)
	assert.False(t, p.Alive)
	assert.True(t, p.RapidFire)
	assert.False(t, p.Shield)
	assert.Equal(t, uint8(100), p.Health)
}

func TestDecodeTruncatedIsMalformed(t *testing.T) {
	frames := map[string][]byte{
		"empty":         {},
		"join no time":  {byte(TypeJoin), 1, 0, 'a'},
		"string short":  {byte(TypeChat), 5, 0, 'h', 'i'},
		"move partial":  {byte(TypeMove), 0, 0, 0x80},
		"no terminator": {byte(TypeIncrementalUpdate), 0, 0, 0, 0, 0, 0, 0, 0, 0},
		"huge count":    {byte(TypeGameState), 0xFF, 0xFF},
		"bad bool":      append(MustEncode(&GameUpdate{}), 0)[:12],
	}
	frames["bad bool"][11] = 7
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			msg, err := Decode(frame)
			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMessage), "got %v", err)
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}

func TestDecodeRejectsNonFiniteFloats(t *testing.T) {
	frame := []byte{byte(TypeShoot)}
	frame = binary.LittleEndian.AppendUint32(frame, math.Float32bits(float32(math.NaN())))
	frame = binary.LittleEndian.AppendUint32(frame, 0)

	_, err := Decode(frame)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeRejectsUnknownSectionAndFieldBits(t *testing.T) {
	header := []byte{byte(TypeIncrementalUpdate), 0, 0, 0, 0, 0, 0, 0, 0, 0}

	_, err := Decode(append(append([]byte{}, header...), 0x55, sectionEnd))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	bad := append(append([]byte{}, header...), sectionChangedPlayers, 1, 0, 1, 0, 0, 0, 0x00, 0x80, sectionEnd)
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte{200, 1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMessageType)
	assert.NotErrorIs(t, err, ErrMalformedMessage)
	assert.Contains(t, err.Error(), "UNKNOWN(200)")
}

func TestDecodeLimited(t *testing.T) {
	frame := MustEncode(&Chat{Text: "0123456789"})

	_, err := DecodeLimited(frame, 8)
	assert.ErrorIs(t, err, ErrOversizedMessage)

	msg, err := DecodeLimited(frame, len(frame))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", msg.(*Chat).Text)
}

func TestEncodeStringOverflow(t *testing.T) {
	_, err := Encode(&Chat{Text: string(make([]byte, math.MaxUint16+1))})
	assert.ErrorIs(t, err, ErrFieldOverflow)
}

func TestBatchRoundTripPreservesOrder(t *testing.T) {
	first := MustEncode(&PlayerLeft{PlayerID: 4})
	second := MustEncode(&KillFeed{Entry: KillInfo{Killer: "a", Victim: "b", Weapon: "melee", Time: 10}})
	third := MustEncode(&Pong{ClientTime: 1, ServerTime: 2})

	frame, err := EncodeBatch([][]byte{first, second, third})
	require.NoError(t, err)
	assert.Equal(t, byte(TypeBatch), frame[0])

	payloads, err := Unbatch(frame)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{first, second, third}, payloads)

	for i, payload := range payloads {
		_, err := Decode(payload)
		assert.NoError(t, err, "payload %d", i)
	}
}

func TestEncodeBatchSinglePayloadIsUnwrapped(t *testing.T) {
	only := MustEncode(&PlayerLeft{PlayerID: 1})
	frame, err := EncodeBatch([][]byte{only})
	require.NoError(t, err)
	assert.Equal(t, only, frame)

	payloads, err := Unbatch(frame)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{only}, payloads)
}

func TestUnbatchTruncatedEntry(t *testing.T) {
	frame, err := EncodeBatch([][]byte{{1, 2, 3}, {4, 5}})
	require.NoError(t, err)

	_, err = Unbatch(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestServerMessagesDecode(t *testing.T) {
	cases := []Message{
		&Joined{PlayerID: 3, Config: `{"CANVAS_WIDTH":1200}`},
		&PlayerJoined{Player: PlayerInfo{ID: 3, Name: "c", Health: 100, Alive: true, Color: "#45B7D1"}},
		&PlayerLeft{PlayerID: 3},
		&PlayerMove{PlayerID: 3, X: 1, Y: 2, Angle: 3},
		&PlayerHit{TargetID: 1, AttackerID: 2, Weapon: "ranged", ProjectileID: "abc", Damage: 25, Health: 75},
		&BulletHitWall{ProjectileID: "abc", X: 4, Y: 5},
		&PlayerRespawn{PlayerID: 1, X: 10, Y: 20, Health: 100},
		&GameEnd{
			Standings: []Standing{{PlayerID: 1, Name: "a", Score: 300, Color: "#fff"}},
			Kills:     []KillInfo{{Killer: "a", Victim: "b", Weapon: "ranged", Time: 5000}},
		},
		&NewGameStart{Countdown: 3},
		&GameStarted{Duration: 120000},
		&MeleeAttack{AttackerID: 1, X: 5, Y: 6, Angle: 1, Range: 50, TargetID: 2},
		&PowerupSpawned{Pickup: PickupInfo{ID: 1, Kind: "rapid_fire", X: 2, Y: 3, Color: "#FFEAA7", Icon: "R"}},
		&PowerupPickedUp{PickupID: 1, PlayerID: 2, Kind: "heal"},
		&ChatMessage{PlayerID: 1, Name: "a", Text: "hi", Time: 42},
		&Pong{ClientTime: 1, ServerTime: 2},
		&Connected{Version: Version, ServerTime: 77},
		&Error{Code: ErrorCodeJoinTimeout, Reason: "join timeout"},
	}
	for _, msg := range cases {
		t.Run(msg.Type().String(), func(t *testing.T) {
			assert.False(t, msg.Type().ClientOriginated())
			data, err := Encode(msg)
			require.NoError(t, err)
			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, msg, decoded)
		})
	}
}
