package world

import (
	"math"
	"math/rand"

	"arena/server/internal/state"
)

const (
	// RandomBlockAttempts is how many scattered blocks are tried per round.
	RandomBlockAttempts = 20
	// EdgeMargin keeps scattered blocks off the border walls.
	EdgeMargin = 50.0
)

type structurePattern uint8

const (
	patternLLowerLeft structurePattern = iota
	patternLUpperRight
	patternT
	patternInvertedT
)

// structures anchor the fixed L and T shapes as fractions of the world.
var structures = []struct {
	fx, fy  float64
	pattern structurePattern
}{
	{1.0 / 6, 1.0 / 4, patternLLowerLeft},
	{2.0 / 3, 3.0 / 8, patternLUpperRight},
	{1.0 / 3, 5.0 / 8, patternT},
	{3.0 / 4, 3.0 / 4, patternInvertedT},
}

// offsets in block units for each pattern, relative to the anchor.
var patternOffsets = map[structurePattern][][2]float64{
	patternLLowerLeft:  {{0, 0}, {0, 1}, {1, 1}},
	patternLUpperRight: {{0, 0}, {1, 0}, {1, 1}},
	patternT:           {{0, 0}, {-1, 0}, {1, 0}, {0, 1}},
	patternInvertedT:   {{0, 0}, {0, -1}, {-1, 0}, {1, 0}},
}

// GenerateTerrain lays out one round: scattered grid-snapped blocks of random
// material, the fixed L and T wall structures, then border walls. Block ids
// are sequential from 1.
func GenerateTerrain(rng *rand.Rand, width, height, size float64) []state.Block {
	var blocks []state.Block
	add := func(x, y float64, material state.Material) {
		r := state.Rect{X: x, Y: y, W: size, H: size}
		if !r.Within(width, height) {
			return
		}
		blocks = append(blocks, state.Block{ID: uint32(len(blocks) + 1), Rect: r, Material: material})
	}

	for range RandomBlockAttempts {
		x := rng.Float64() * (width - size)
		y := rng.Float64() * (height - size)
		if x <= EdgeMargin || x >= width-EdgeMargin || y <= EdgeMargin || y >= height-EdgeMargin {
			continue
		}
		material := state.Materials[rng.Intn(len(state.Materials))]
		add(math.Floor(x/size)*size, math.Floor(y/size)*size, material)
	}

	for _, s := range structures {
		ax := math.Floor(width*s.fx/size) * size
		ay := math.Floor(height*s.fy/size) * size
		for _, off := range patternOffsets[s.pattern] {
			add(ax+off[0]*size, ay+off[1]*size, state.MaterialWall)
		}
	}

	for x := 0.0; x+size <= width; x += size {
		add(x, 0, state.MaterialWall)
		add(x, height-size, state.MaterialWall)
	}
	for y := size; y+size <= height-size; y += size {
		add(0, y, state.MaterialWall)
		add(width-size, y, state.MaterialWall)
	}
	return blocks
}
