package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/milk9111/tileworld/backend"
	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/logger"
	"github.com/milk9111/tileworld/prefabs"
	"github.com/milk9111/tileworld/world"
)

var (
	ErrUnknownLayer = errors.New("loader: unknown layer")
	// ErrStale is returned to callers whose load was overtaken by a newer
	// layer switch.
	ErrStale = errors.New("loader: stale generation")
)

// TextureFetcher turns sprite metadata into a texture.
type TextureFetcher interface {
	Fetch(ctx context.Context, meta levels.SpriteMeta) (component.Texture, error)
}

type Options struct {
	BatchSize     int
	BatchDelay    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func OptionsFromSpec(spec *prefabs.EngineSpec) Options {
	return Options{
		BatchSize:     spec.Loader.BatchSize,
		BatchDelay:    spec.BatchDelay(),
		RetryAttempts: spec.Loader.RetryAttempts,
		RetryDelay:    spec.RetryDelay(),
	}
}

// Result is a fully fetched layer, ready to be swapped in.
type Result struct {
	Generation uint64
	Layer      levels.Layer
	Objects    []world.PlacedObject
	// Err is set when the layer itself could not be resolved. Placement
	// failures are not errors; the layer arrives empty.
	Err error
}

// Loader fetches layers and their assets in the background. Results are
// handed over through Poll on the caller's goroutine.
type Loader struct {
	client   backend.Client
	textures TextureFetcher
	opts     Options
	cache    *Cache
	group    singleflight.Group

	gen atomic.Uint64

	mu         deadlock.Mutex
	active     int
	layers     []levels.Layer
	placements map[int][]levels.Placement
	pending    *Result
	status     Status
	onProgress func(Progress)

	afterLoad func(gen uint64)
}

func New(client backend.Client, textures TextureFetcher, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	return &Loader{
		client:     client,
		textures:   textures,
		opts:       opts,
		cache:      NewCache(),
		placements: make(map[int][]levels.Placement),
	}
}

// OnProgress sets the per-asset progress callback. It runs on loader
// goroutines.
func (l *Loader) OnProgress(fn func(Progress)) {
	l.mu.Lock()
	l.onProgress = fn
	l.mu.Unlock()
}

func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Loader) Generation() uint64 { return l.gen.Load() }

func (l *Loader) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Loader) stale(gen uint64) bool {
	return gen != 0 && gen != l.gen.Load()
}

// Layers returns the layer listing, fetching it on first use.
func (l *Loader) Layers(ctx context.Context) ([]levels.Layer, error) {
	return l.layersFor(ctx, 0)
}

func (l *Loader) layersFor(ctx context.Context, gen uint64) ([]levels.Layer, error) {
	for {
		l.mu.Lock()
		cached := l.layers
		l.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		v, err, _ := l.group.Do("layers", func() (any, error) {
			var out []levels.Layer
			err := l.retry(ctx, gen, "layers", func() error {
				var err error
				out, err = l.client.ListLayers(ctx)
				return err
			})
			return out, err
		})
		if errors.Is(err, ErrStale) && !l.stale(gen) {
			// The shared fetch belonged to a superseded load.
			continue
		}
		if err != nil {
			return nil, err
		}

		layers := v.([]levels.Layer)
		if layers == nil {
			layers = []levels.Layer{}
		}
		l.mu.Lock()
		l.layers = layers
		l.mu.Unlock()
		return layers, nil
	}
}

// Layer looks up a layer descriptor from the cached listing.
func (l *Loader) Layer(id int) (levels.Layer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return findLayer(l.layers, id)
}

// Asset returns a cached asset without fetching.
func (l *Loader) Asset(kind levels.Kind, id string) (Entry, bool) {
	return l.cache.Get(AssetKey{Kind: kind, ID: id})
}

// FetchAsset loads one asset outside of any layer load.
func (l *Loader) FetchAsset(ctx context.Context, kind levels.Kind, id string) (Entry, error) {
	return l.fetchAsset(ctx, 0, AssetKey{Kind: kind, ID: id})
}

func (l *Loader) fetchAsset(ctx context.Context, gen uint64, key AssetKey) (Entry, error) {
	if e, ok := l.cache.Get(key); ok {
		return e, nil
	}
	v, err, shared := l.group.Do(key.String(), func() (any, error) {
		meta, err := l.client.FetchMeta(ctx, key.Kind, key.ID)
		if err != nil {
			return Entry{}, err
		}
		var tex component.Texture
		if l.textures != nil {
			tex, err = l.textures.Fetch(ctx, meta)
			if err != nil {
				return Entry{}, err
			}
		}
		return Entry{Texture: tex, Meta: meta}, nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("loader: %s: %w", key, err)
	}
	if l.stale(gen) {
		return Entry{}, ErrStale
	}
	e := v.(Entry)
	if l.cache.Put(key, e) {
		logger.Log.WithFields(logrus.Fields{"asset": key.String(), "shared": shared}).Debug("asset cached")
	}
	return e, nil
}

// SwitchLayer starts loading id in the background and makes it the active
// target. Any load still running for an earlier switch is discarded when it
// finishes. The returned generation tags the eventual Result.
func (l *Loader) SwitchLayer(ctx context.Context, id int) uint64 {
	gen := l.gen.Add(1)

	l.mu.Lock()
	l.active = id
	l.pending = nil
	l.status = Status{Phase: PhaseLoading, Layer: id, Generation: gen}
	l.mu.Unlock()

	logger.Log.WithFields(logrus.Fields{"layer": id, "generation": gen}).Info("switching layer")
	go l.load(ctx, gen, id)
	return gen
}

// Reload refetches the layer listing and the active layer's placements.
// Cached assets are kept.
func (l *Loader) Reload(ctx context.Context) uint64 {
	l.mu.Lock()
	id := l.active
	l.layers = nil
	delete(l.placements, id)
	l.mu.Unlock()
	return l.SwitchLayer(ctx, id)
}

// Revert makes id the active layer again after the load tagged gen failed,
// so a later Reload refetches the layer that is still on screen. It does
// nothing once a newer switch has started.
func (l *Loader) Revert(gen uint64, id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen.Load() {
		return false
	}
	l.active = id
	l.status = Status{Phase: PhaseReady, Layer: id, Generation: gen}
	return true
}

// Poll returns the finished load for the current generation, once.
func (l *Loader) Poll() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.pending
	l.pending = nil
	if r == nil || l.stale(r.Generation) {
		return Result{}, false
	}
	return *r, true
}

func (l *Loader) load(ctx context.Context, gen uint64, id int) {
	log := logger.Log.WithFields(logrus.Fields{"layer": id, "generation": gen})
	if l.afterLoad != nil {
		defer l.afterLoad(gen)
	}

	layers, err := l.layersFor(ctx, gen)
	if errors.Is(err, ErrStale) {
		return
	}
	if err != nil {
		log.WithError(err).Error("layer listing failed")
		l.finish(gen, Result{Generation: gen, Layer: levels.Layer{Layer: id}, Err: err})
		return
	}
	desc, ok := findLayer(layers, id)
	if !ok || !desc.Valid() {
		err := fmt.Errorf("%w: %d", ErrUnknownLayer, id)
		log.WithError(err).Error("cannot load layer")
		l.finish(gen, Result{Generation: gen, Layer: levels.Layer{Layer: id}, Err: err})
		return
	}
	if l.stale(gen) {
		return
	}

	placements, err := l.placementsFor(ctx, gen, id)
	if errors.Is(err, ErrStale) {
		return
	}
	failed := err != nil
	if failed {
		log.WithError(err).Warn("placements unavailable, loading empty layer")
	}

	objects := make([]world.PlacedObject, 0, len(placements))
	for i, p := range placements {
		obj, err := world.FromPlacement(i, p)
		if err != nil {
			log.WithError(err).Warn("skipping placement")
			continue
		}
		objects = append(objects, obj)
	}

	if err := l.fetchBatches(ctx, gen, id, uniqueAssets(objects)); err != nil {
		if !errors.Is(err, ErrStale) {
			log.WithError(err).Error("layer load interrupted")
			l.finish(gen, Result{Generation: gen, Layer: desc, Err: err})
		}
		return
	}

	l.mu.Lock()
	if !l.stale(gen) && !failed {
		l.status.Phase = PhaseReady
	}
	l.mu.Unlock()
	l.finish(gen, Result{Generation: gen, Layer: desc, Objects: objects})
	log.WithField("objects", len(objects)).Info("layer loaded")
}

func (l *Loader) finish(gen uint64, r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stale(gen) {
		return
	}
	if r.Err != nil {
		l.status.Phase = PhaseFailed
		if l.status.Message == "" {
			l.status.Message = r.Err.Error()
		}
	}
	l.pending = &r
}

func (l *Loader) placementsFor(ctx context.Context, gen uint64, id int) ([]levels.Placement, error) {
	l.mu.Lock()
	cached, ok := l.placements[id]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	var (
		v   any
		err error
	)
	for {
		v, err, _ = l.group.Do("placements:"+strconv.Itoa(id), func() (any, error) {
			var out []levels.Placement
			err := l.retry(ctx, gen, "placements", func() error {
				var err error
				out, err = l.client.ListPlacements(ctx, id)
				return err
			})
			return out, err
		})
		if !errors.Is(err, ErrStale) || l.stale(gen) {
			break
		}
	}
	if l.stale(gen) {
		return nil, ErrStale
	}
	if err != nil {
		return nil, err
	}
	out := v.([]levels.Placement)

	l.mu.Lock()
	l.placements[id] = out
	l.mu.Unlock()
	return out, nil
}

// fetchBatches loads keys in groups of BatchSize, pausing BatchDelay between
// groups. A failed asset is logged and skipped. It returns ErrStale if a
// newer switch took over.
func (l *Loader) fetchBatches(ctx context.Context, gen uint64, layer int, keys []AssetKey) error {
	total := len(keys)
	l.setProgress(gen, 0, total)

	var loaded atomic.Int64
	for start := 0; start < total; start += l.opts.BatchSize {
		if start > 0 && l.opts.BatchDelay > 0 {
			if err := sleep(ctx, l.opts.BatchDelay); err != nil {
				return err
			}
		}
		if l.stale(gen) {
			return ErrStale
		}

		end := min(start+l.opts.BatchSize, total)
		var g errgroup.Group
		g.SetLimit(l.opts.BatchSize)
		for _, key := range keys[start:end] {
			g.Go(func() error {
				if _, err := l.fetchAsset(ctx, gen, key); err != nil {
					if errors.Is(err, ErrStale) {
						return err
					}
					logger.Log.WithError(err).WithField("asset", key.String()).Warn("skipping asset")
					return nil
				}
				n := int(loaded.Add(1))
				l.setProgress(gen, n, total)
				l.report(Progress{Layer: layer, Generation: gen, Key: key, Loaded: n, Total: total})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	if l.stale(gen) {
		return ErrStale
	}
	return nil
}

func (l *Loader) setProgress(gen uint64, loaded, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stale(gen) {
		return
	}
	l.status.Loaded = loaded
	l.status.Total = total
}

func (l *Loader) report(p Progress) {
	l.mu.Lock()
	fn := l.onProgress
	l.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// retry runs fn up to RetryAttempts times while it fails with a network
// error, publishing the countdown through Status. It gives up with ErrStale
// as soon as gen is superseded and then leaves Status alone.
func (l *Loader) retry(ctx context.Context, gen uint64, what string, fn func() error) error {
	attempts := l.opts.RetryAttempts
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, backend.ErrNetwork) {
			return err
		}
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"what":       what,
			"attempt":    attempt,
			"generation": gen,
		}).Warn("fetch failed")
		if attempt == attempts {
			break
		}

		if !l.updateStatus(gen, func(st *Status) {
			st.Phase = PhaseRetrying
			st.Attempt = attempt
			st.MaxAttempts = attempts
			st.RetryAt = time.Now().Add(l.opts.RetryDelay)
		}) {
			return ErrStale
		}

		if err := sleep(ctx, l.opts.RetryDelay); err != nil {
			return err
		}

		if !l.updateStatus(gen, func(st *Status) {
			if st.Phase == PhaseRetrying {
				st.Phase = PhaseLoading
			}
		}) {
			return ErrStale
		}
	}

	msg := fmt.Sprintf("failed after %d attempts", attempts)
	if !l.updateStatus(gen, func(st *Status) {
		st.Phase = PhaseFailed
		st.Attempt = attempts
		st.MaxAttempts = attempts
		st.Message = msg
	}) {
		return ErrStale
	}
	return fmt.Errorf("loader: %s: %s: %w", what, msg, err)
}

// updateStatus applies fn unless gen was superseded. It reports whether gen
// is still current.
func (l *Loader) updateStatus(gen uint64, fn func(*Status)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stale(gen) {
		return false
	}
	fn(&l.status)
	return true
}

// Instance is a placed object with its sprite.
type Instance struct {
	Object world.PlacedObject
	Sprite component.Sprite
}

// Place creates sprites for every object of r whose asset is cached.
// Positions are the top-left pixel of the object's cell.
func (l *Loader) Place(r Result, factory component.SpriteFactory, tileW, tileH float64) []Instance {
	if factory == nil {
		return nil
	}
	out := make([]Instance, 0, len(r.Objects))
	for _, obj := range r.Objects {
		e, ok := l.cache.Get(AssetKey{Kind: obj.Kind, ID: obj.ID})
		if !ok || e.Texture == nil {
			continue
		}
		s := factory.NewSprite(e.Texture, e.Meta)
		if s == nil {
			continue
		}
		s.SetPosition(float64(obj.Cell.X)*tileW, float64(obj.Cell.Y)*tileH)
		s.SetRotation(obj.Rotation * math.Pi / 180)
		s.SetTexture(0)
		s.SetVisible(true)
		out = append(out, Instance{Object: obj, Sprite: s})
	}
	return out
}

// Teardown destroys the sprites of a previous Place.
func (l *Loader) Teardown(instances []Instance) {
	for _, in := range instances {
		if in.Sprite != nil {
			in.Sprite.Destroy()
		}
	}
}

func findLayer(layers []levels.Layer, id int) (levels.Layer, bool) {
	for _, layer := range layers {
		if layer.Layer == id {
			return layer, true
		}
	}
	return levels.Layer{}, false
}

func uniqueAssets(objs []world.PlacedObject) []AssetKey {
	seen := make(map[AssetKey]struct{}, len(objs))
	out := make([]AssetKey, 0, len(objs))
	for _, o := range objs {
		key := AssetKey{Kind: o.Kind, ID: o.ID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
