package grid

import "fmt"

// SelectLevel implements the pyramid manager (C5): given the top-level
// metadata's Multiscale list and a target output size, chooses the
// smallest level whose native resolution is finer than target — i.e. the
// smallest level such that level.width >= outW and level.height >= outH.
// If no pyramid exists, level 0 is returned.
func SelectLevel(meta Metadata, outW, outH int) MultiscaleEntry {
	if len(meta.Multiscale) == 0 {
		return MultiscaleEntry{
			Level: 0,
			Path:  "0",
			Shape: meta.Shape,
		}
	}

	// Multiscale is ordered level 0 (finest) .. N (coarsest).
	best := meta.Multiscale[0]
	for _, lvl := range meta.Multiscale {
		h, w := lvl.Shape[0], lvl.Shape[1]
		if w >= outW && h >= outH {
			best = lvl
		}
	}
	return best
}

// LevelPath returns the storage path of a pyramid level given the array's
// root path, per spec §4.5: "<array_path>/<level_index>".
func LevelPath(arrayPath string, level int) string {
	return fmt.Sprintf("%s/%d", arrayPath, level)
}
