package sim

import "math/rand"

// Size presets exposed by the spawn controls.
const (
	PresetLight  = "light"
	PresetMedium = "medium"
	PresetHeavy  = "heavy"
	PresetRandom = "random"
)

var presetSizes = map[string]float64{
	PresetLight:  SizeLight,
	PresetMedium: SizeMedium,
	PresetHeavy:  SizeHeavy,
}

// PresetSize resolves a preset name to a diameter. Empty and "random" pick
// one of the three presets at random.
func PresetSize(kind string) (float64, bool) {
	if kind == "" || kind == PresetRandom {
		kinds := [...]string{PresetLight, PresetMedium, PresetHeavy}
		return presetSizes[kinds[rand.Intn(len(kinds))]], true
	}
	size, ok := presetSizes[kind]
	return size, ok
}

// RandomSpawn picks coordinates inside the spawn window, clamped so the ball
// starts fully inside the container.
func RandomSpawn(p Params, b Bounds, size float64) (x, y float64) {
	x = p.SpawnXMin + rand.Float64()*(p.SpawnXMax-p.SpawnXMin)
	y = p.SpawnYMin + rand.Float64()*(p.SpawnYMax-p.SpawnYMin)
	x = clamp(x, 0, b.Width-size)
	y = clamp(y, 0, b.Height-size)
	return x, y
}

// StarterLayout is the seed roster for freshly created quick-join arenas: one
// ball of each preset, staggered across the spawn window so they rain down
// without immediately overlapping.
func StarterLayout(b Bounds) []SpawnOptions {
	sizes := [...]float64{SizeLight, SizeMedium, SizeHeavy}
	out := make([]SpawnOptions, 0, len(sizes))
	for i, size := range sizes {
		x := clamp(SpawnXMin+float64(i)*160, 0, b.Width-size)
		y := clamp(float64(i)*40, 0, b.Height-size)
		s := size
		out = append(out, SpawnOptions{X: &x, Y: &y, Size: &s})
	}
	return out
}
