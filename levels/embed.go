package levels

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
)

// LevelsFS holds the demo world served by the offline backend.
//
//go:embed *.json
var LevelsFS embed.FS

const (
	LayersFile  = "layers.json"
	ObjectsFile = "objects.json"
	TilesFile   = "tiles.json"
)

// PlacementsFile names the placement listing of one layer.
func PlacementsFile(layer int) string {
	return fmt.Sprintf("placements_%d.json", layer)
}

// MetaFile names the metadata table for a resource kind.
func MetaFile(kind Kind) string {
	if kind == KindTile {
		return TilesFile
	}
	return ObjectsFile
}

// ReadJSON decodes name from fsys into v.
func ReadJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
