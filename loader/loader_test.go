package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/milk9111/tileworld/backend"
	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/logger"
)

func init() {
	logger.Silence()
}

type fakeClient struct {
	mu         sync.Mutex
	layers     []levels.Layer
	placements map[int][]levels.Placement
	metas      map[string]levels.SpriteMeta

	layerFailures  int
	placementErr   error
	placementErrs  map[int]error
	placementGate  map[int]chan struct{}
	metaGate       chan struct{}
	metaDelay      time.Duration
	layerCalls     int
	placementCalls map[int]int
	metaCalls      map[string]int

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		layers: []levels.Layer{
			{Layer: 1, Width: 20, Height: 20},
			{Layer: 2, Width: 64, Height: 64},
		},
		placements: map[int][]levels.Placement{
			1: {{ID: "a", X: 1, Y: 1}, {ID: "a", X: 2, Y: 1}, {Tile: "grass", X: 3, Y: 3}},
			2: {{ID: "b", X: 5, Y: 5}},
		},
		metas: map[string]levels.SpriteMeta{
			"object:a":    testMeta(),
			"object:b":    testMeta(),
			"tile:grass":  testMeta(),
			"object:hero": testMeta(),
		},
		placementGate:  map[int]chan struct{}{},
		placementErrs:  map[int]error{},
		placementCalls: map[int]int{},
		metaCalls:      map[string]int{},
	}
}

func testMeta() levels.SpriteMeta {
	return levels.SpriteMeta{SpriteSheetURL: "placeholder:red", FrameSize: levels.FrameSize{Width: 8, Height: 8}}
}

func (f *fakeClient) ListLayers(ctx context.Context) ([]levels.Layer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.layerCalls++
	if f.layerCalls <= f.layerFailures {
		return nil, fmt.Errorf("dial: %w", backend.ErrNetwork)
	}
	return append([]levels.Layer(nil), f.layers...), nil
}

func (f *fakeClient) ListPlacements(ctx context.Context, layer int) ([]levels.Placement, error) {
	f.mu.Lock()
	f.placementCalls[layer]++
	gate := f.placementGate[layer]
	err := f.placementErr
	if e, ok := f.placementErrs[layer]; ok {
		err = e
	}
	out := append([]levels.Placement(nil), f.placements[layer]...)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeClient) FetchMeta(ctx context.Context, kind levels.Kind, id string) (levels.SpriteMeta, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}

	key := string(kind) + ":" + id
	f.mu.Lock()
	f.metaCalls[key]++
	meta, ok := f.metas[key]
	gate := f.metaGate
	delay := f.metaDelay
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return levels.SpriteMeta{}, fmt.Errorf("%s: %w", key, backend.ErrData)
	}
	return meta, nil
}

func (f *fakeClient) calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls[key]
}

type fakeTextures struct{}

func (fakeTextures) Fetch(ctx context.Context, meta levels.SpriteMeta) (component.Texture, error) {
	return image.NewRGBA(image.Rect(0, 0, meta.FrameSize.Width, meta.FrameSize.Height)), nil
}

type fakeSprite struct {
	x, y      float64
	rot       float64
	visible   bool
	destroyed bool
}

func (s *fakeSprite) SetPosition(x, y float64) { s.x, s.y = x, y }
func (s *fakeSprite) SetTexture(int)           {}
func (s *fakeSprite) SetRotation(r float64)    { s.rot = r }
func (s *fakeSprite) SetVisible(v bool)        { s.visible = v }
func (s *fakeSprite) Destroy()                 { s.destroyed = true }

type fakeFactory struct{ made []*fakeSprite }

func (f *fakeFactory) NewSprite(component.Texture, levels.SpriteMeta) component.Sprite {
	s := &fakeSprite{}
	f.made = append(f.made, s)
	return s
}

func testOptions() Options {
	return Options{BatchSize: 2, RetryAttempts: 3, RetryDelay: time.Millisecond}
}

func waitResult(t *testing.T, l *Loader) Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := l.Poll(); ok {
			return r
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for layer result")
	return Result{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition")
}

func TestSwitchLayerLoadsAndReportsProgress(t *testing.T) {
	client := newFakeClient()
	l := New(client, fakeTextures{}, testOptions())

	var mu sync.Mutex
	var progress []Progress
	l.OnProgress(func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})

	gen := l.SwitchLayer(context.Background(), 1)
	r := waitResult(t, l)

	if r.Err != nil || r.Generation != gen {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.Layer.Width != 20 || len(r.Objects) != 3 {
		t.Fatalf("expected 20 wide layer with 3 objects, got %+v", r)
	}
	if _, ok := l.Asset(levels.KindObject, "a"); !ok {
		t.Fatalf("object a should be cached")
	}
	if _, ok := l.Asset(levels.KindTile, "grass"); !ok {
		t.Fatalf("tile grass should be cached")
	}
	if got := client.calls("object:a"); got != 1 {
		t.Fatalf("object a fetched %d times, want 1", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) != 2 || progress[len(progress)-1].Total != 2 {
		t.Fatalf("expected one progress report per unique asset, got %+v", progress)
	}
	if st := l.Status(); st.Phase != PhaseReady || st.Loaded != 2 {
		t.Fatalf("unexpected status %+v", st)
	}
	if _, ok := l.Poll(); ok {
		t.Fatalf("a result is handed over only once")
	}
}

func TestFetchAssetDeduplicates(t *testing.T) {
	client := newFakeClient()
	client.metaGate = make(chan struct{})
	l := New(client, fakeTextures{}, testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.FetchAsset(context.Background(), levels.KindObject, "hero"); err != nil {
				t.Errorf("FetchAsset: %v", err)
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(client.metaGate)
	wg.Wait()

	if got := client.calls("object:hero"); got != 1 {
		t.Fatalf("expected one shared fetch, got %d", got)
	}
	if l.cache.Len() != 1 {
		t.Fatalf("expected one cache entry, got %d", l.cache.Len())
	}
}

func TestBatchesRespectLimit(t *testing.T) {
	client := newFakeClient()
	client.metaDelay = 5 * time.Millisecond
	var ps []levels.Placement
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("obj%d", i)
		client.metas["object:"+id] = testMeta()
		ps = append(ps, levels.Placement{ID: id, X: i, Y: 0})
	}
	client.placements[1] = ps

	opts := testOptions()
	opts.BatchDelay = time.Millisecond
	l := New(client, fakeTextures{}, opts)
	l.SwitchLayer(context.Background(), 1)
	r := waitResult(t, l)

	if len(r.Objects) != 7 {
		t.Fatalf("expected 7 objects, got %d", len(r.Objects))
	}
	if got := client.maxInflight.Load(); got > 2 {
		t.Fatalf("max concurrent fetches %d exceeds batch size 2", got)
	}
}

func TestGenerationGuardDiscardsStaleLoad(t *testing.T) {
	client := newFakeClient()
	gate := make(chan struct{})
	client.placementGate[1] = gate
	l := New(client, fakeTextures{}, testOptions())

	done := make(chan uint64, 2)
	l.afterLoad = func(gen uint64) { done <- gen }

	ctx := context.Background()
	stale := l.SwitchLayer(ctx, 1)
	current := l.SwitchLayer(ctx, 2)

	r := waitResult(t, l)
	if r.Generation != current || r.Layer.Layer != 2 {
		t.Fatalf("expected layer 2 result, got %+v", r)
	}

	close(gate)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case gen := <-done:
			if gen != stale {
				continue
			}
		case <-deadline:
			t.Fatalf("stale load never finished")
		}
		break
	}

	if _, ok := l.Poll(); ok {
		t.Fatalf("stale result must not be handed over")
	}
	if _, ok := l.Asset(levels.KindObject, "a"); ok {
		t.Fatalf("stale load must not populate the asset cache")
	}
	if got := client.calls("object:a"); got != 0 {
		t.Fatalf("stale load fetched assets %d times", got)
	}
	l.mu.Lock()
	_, cached := l.placements[1]
	l.mu.Unlock()
	if cached {
		t.Fatalf("stale load must not populate the placement cache")
	}
	if st := l.Status(); st.Layer != 2 {
		t.Fatalf("status should follow the active layer, got %+v", st)
	}
}

func TestSupersededRetryLeavesStatusAlone(t *testing.T) {
	client := newFakeClient()
	gate := make(chan struct{})
	client.placementGate[1] = gate
	client.placementErrs[1] = fmt.Errorf("reset: %w", backend.ErrNetwork)
	l := New(client, fakeTextures{}, testOptions())

	done := make(chan uint64, 2)
	l.afterLoad = func(gen uint64) { done <- gen }

	ctx := context.Background()
	stale := l.SwitchLayer(ctx, 1)
	waitFor(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.placementCalls[1] == 1
	})
	current := l.SwitchLayer(ctx, 2)

	r := waitResult(t, l)
	if r.Generation != current || r.Layer.Layer != 2 {
		t.Fatalf("expected layer 2 result, got %+v", r)
	}

	close(gate)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case gen := <-done:
			if gen != stale {
				continue
			}
		case <-deadline:
			t.Fatalf("superseded load never finished")
		}
		break
	}

	st := l.Status()
	if st.Phase != PhaseReady || st.Layer != 2 || st.Message != "" {
		t.Fatalf("superseded retry overwrote status: %+v", st)
	}
	client.mu.Lock()
	calls := client.placementCalls[1]
	client.mu.Unlock()
	if calls != 1 {
		t.Fatalf("superseded load kept retrying: %d placement calls", calls)
	}
}

func TestCanceledLoadFinishesWithError(t *testing.T) {
	client := newFakeClient()
	opts := testOptions()
	opts.BatchSize = 1
	opts.BatchDelay = time.Second
	l := New(client, fakeTextures{}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.OnProgress(func(Progress) { cancel() })

	gen := l.SwitchLayer(ctx, 1)
	r := waitResult(t, l)

	if r.Generation != gen || !errors.Is(r.Err, context.Canceled) {
		t.Fatalf("expected canceled result, got %+v", r)
	}
	if st := l.Status(); st.Phase != PhaseFailed {
		t.Fatalf("status should leave loading, got %+v", st)
	}
}

func TestRevertRestoresActiveLayer(t *testing.T) {
	client := newFakeClient()
	l := New(client, fakeTextures{}, testOptions())
	ctx := context.Background()

	first := l.SwitchLayer(ctx, 1)
	waitResult(t, l)
	failed := l.SwitchLayer(ctx, 99)
	if r := waitResult(t, l); !errors.Is(r.Err, ErrUnknownLayer) {
		t.Fatalf("expected unknown layer, got %+v", r)
	}

	if l.Revert(first, 1) {
		t.Fatalf("revert with an old generation should be ignored")
	}
	if !l.Revert(failed, 1) {
		t.Fatalf("revert refused")
	}
	if l.Active() != 1 || l.Generation() != failed {
		t.Fatalf("active=%d generation=%d", l.Active(), l.Generation())
	}
	if st := l.Status(); st.Phase != PhaseReady || st.Layer != 1 {
		t.Fatalf("unexpected status %+v", st)
	}

	l.Reload(ctx)
	if r := waitResult(t, l); r.Err != nil || r.Layer.Layer != 1 {
		t.Fatalf("reload should refetch layer 1, got %+v", r)
	}
}

func TestPlacementFailureLoadsEmptyLayer(t *testing.T) {
	client := newFakeClient()
	client.placementErr = fmt.Errorf("timeout: %w", backend.ErrNetwork)
	l := New(client, fakeTextures{}, testOptions())

	l.SwitchLayer(context.Background(), 1)
	r := waitResult(t, l)

	if r.Err != nil || len(r.Objects) != 0 {
		t.Fatalf("expected empty layer without error, got %+v", r)
	}
	st := l.Status()
	if st.Phase != PhaseFailed || st.Message != "failed after 3 attempts" {
		t.Fatalf("unexpected status %+v", st)
	}
	if !strings.Contains(st.Text(time.Now()), "failed after 3 attempts") {
		t.Fatalf("status text %q lacks failure message", st.Text(time.Now()))
	}
	client.mu.Lock()
	calls := client.placementCalls[1]
	client.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 placement attempts, got %d", calls)
	}
}

func TestLayerListingRetriesUntilSuccess(t *testing.T) {
	client := newFakeClient()
	client.layerFailures = 2
	l := New(client, fakeTextures{}, testOptions())

	l.SwitchLayer(context.Background(), 2)
	r := waitResult(t, l)
	if r.Err != nil || r.Layer.Width != 64 {
		t.Fatalf("unexpected result %+v", r)
	}
	if client.layerCalls != 3 {
		t.Fatalf("expected 3 listing attempts, got %d", client.layerCalls)
	}
	if desc, ok := l.Layer(2); !ok || desc.Height != 64 {
		t.Fatalf("layer 2 should be cached, got %+v %v", desc, ok)
	}
}

func TestUnknownLayer(t *testing.T) {
	l := New(newFakeClient(), fakeTextures{}, testOptions())
	l.SwitchLayer(context.Background(), 9)
	r := waitResult(t, l)
	if !errors.Is(r.Err, ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", r.Err)
	}
	if st := l.Status(); st.Phase != PhaseFailed {
		t.Fatalf("expected failed status, got %+v", st)
	}
}

func TestDataErrorSkipsOnlyThatAsset(t *testing.T) {
	client := newFakeClient()
	client.placements[1] = append(client.placements[1], levels.Placement{ID: "ghost", X: 9, Y: 9})
	l := New(client, fakeTextures{}, testOptions())

	l.SwitchLayer(context.Background(), 1)
	r := waitResult(t, l)
	if len(r.Objects) != 4 {
		t.Fatalf("expected all 4 placements, got %d", len(r.Objects))
	}
	if _, ok := l.Asset(levels.KindObject, "ghost"); ok {
		t.Fatalf("ghost has no metadata and must not be cached")
	}

	factory := &fakeFactory{}
	instances := l.Place(r, factory, 32, 32)
	if len(instances) != 3 {
		t.Fatalf("expected 3 placed sprites, got %d", len(instances))
	}
	for _, in := range instances {
		s := in.Sprite.(*fakeSprite)
		if s.x != float64(in.Object.Cell.X*32) || s.y != float64(in.Object.Cell.Y*32) || !s.visible {
			t.Fatalf("sprite for %+v misplaced: %+v", in.Object, s)
		}
	}

	l.Teardown(instances)
	for _, s := range factory.made {
		if !s.destroyed {
			t.Fatalf("teardown left a sprite alive")
		}
	}
}

func TestReloadRefetchesPlacementsKeepsAssets(t *testing.T) {
	client := newFakeClient()
	l := New(client, fakeTextures{}, testOptions())

	ctx := context.Background()
	l.SwitchLayer(ctx, 1)
	waitResult(t, l)

	client.mu.Lock()
	client.placements[1] = append(client.placements[1], levels.Placement{ID: "b", X: 4, Y: 4})
	client.mu.Unlock()

	l.Reload(ctx)
	r := waitResult(t, l)
	if len(r.Objects) != 4 {
		t.Fatalf("reload should pick up the new placement, got %d objects", len(r.Objects))
	}
	if got := client.calls("object:a"); got != 1 {
		t.Fatalf("cached asset refetched on reload: %d calls", got)
	}
}

func TestCacheIsWriteOnce(t *testing.T) {
	c := NewCache()
	key := AssetKey{Kind: levels.KindObject, ID: "a"}
	if !c.Put(key, Entry{Meta: levels.SpriteMeta{RenderScale: 1}}) {
		t.Fatalf("first put should store")
	}
	if c.Put(key, Entry{Meta: levels.SpriteMeta{RenderScale: 2}}) {
		t.Fatalf("second put should be refused")
	}
	if e, _ := c.Get(key); e.Meta.RenderScale != 1 {
		t.Fatalf("entry was overwritten")
	}
}

func TestStatusText(t *testing.T) {
	now := time.Now()
	cases := []struct {
		st   Status
		want string
	}{
		{Status{Phase: PhaseLoading, Layer: 1, Loaded: 2, Total: 5}, "Loading layer 1: 2/5"},
		{Status{Phase: PhaseRetrying, Layer: 2, Attempt: 1, MaxAttempts: 5, RetryAt: now.Add(3 * time.Second)}, "Layer 2 unreachable, retry 1/5 in 3s"},
		{Status{Phase: PhaseReady}, ""},
	}
	for _, c := range cases {
		if got := c.st.Text(now); got != c.want {
			t.Fatalf("Text() = %q, want %q", got, c.want)
		}
	}
}
