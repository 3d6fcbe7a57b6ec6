package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/milk9111/tileworld/levels"
)

// FSClient serves level data from files. Files in Dir shadow the embedded
// demo world, so a level saved to disk is picked up without a rebuild.
type FSClient struct {
	Dir string
	fs  fs.FS
}

func NewFSClient(dir string) *FSClient {
	return &FSClient{Dir: dir, fs: overlayFS{dir: dir, base: levels.LevelsFS}}
}

// NewFSClientFrom serves from fsys alone.
func NewFSClientFrom(fsys fs.FS) *FSClient {
	return &FSClient{fs: fsys}
}

func (c *FSClient) ListLayers(ctx context.Context) ([]levels.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []levels.Layer
	if err := c.read(levels.LayersFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FSClient) ListPlacements(ctx context.Context, layer int) ([]levels.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []levels.Placement
	err := c.read(levels.PlacementsFile(layer), &out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FSClient) FetchMeta(ctx context.Context, kind levels.Kind, id string) (levels.SpriteMeta, error) {
	if err := ctx.Err(); err != nil {
		return levels.SpriteMeta{}, err
	}
	var table map[string]levels.SpriteMeta
	if err := c.read(levels.MetaFile(kind), &table); err != nil {
		return levels.SpriteMeta{}, err
	}
	meta, ok := table[id]
	if !ok {
		return levels.SpriteMeta{}, fmt.Errorf("backend: %s %q: %w: not found", kind, id, ErrData)
	}
	if err := meta.Validate(); err != nil {
		return levels.SpriteMeta{}, fmt.Errorf("backend: %s %q: %w: %v", kind, id, ErrData, err)
	}
	return meta, nil
}

func (c *FSClient) read(name string, v any) error {
	err := levels.ReadJSON(c.fs, name, v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("backend: %w", err)
	default:
		return fmt.Errorf("backend: %w: %v", ErrData, err)
	}
}

type overlayFS struct {
	dir  string
	base fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	if o.dir != "" {
		if f, err := os.DirFS(o.dir).Open(name); err == nil {
			return f, nil
		}
	}
	return o.base.Open(name)
}
