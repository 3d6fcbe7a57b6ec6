package backend

import (
	"context"
	"errors"

	"github.com/milk9111/tileworld/levels"
)

var (
	// ErrNetwork marks a failure to reach the data source. Layer listings and
	// placements are retried on it.
	ErrNetwork = errors.New("backend: network error")
	// ErrData marks a response that arrived but could not be used.
	ErrData = errors.New("backend: bad data")
)

// Client is the read side of the level data service.
type Client interface {
	ListLayers(ctx context.Context) ([]levels.Layer, error)
	ListPlacements(ctx context.Context, layer int) ([]levels.Placement, error)
	FetchMeta(ctx context.Context, kind levels.Kind, id string) (levels.SpriteMeta, error)
}
