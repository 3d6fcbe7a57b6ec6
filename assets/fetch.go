package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/colornames"

	"github.com/milk9111/tileworld/backend"
	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/levels"
)

// PlaceholderScheme marks a generated sheet: "placeholder:<colorname>".
const PlaceholderScheme = "placeholder:"

var ErrUnknownColor = errors.New("assets: unknown placeholder color")

// Fetcher turns a sprite sheet URL into a texture. Relative file paths are
// resolved against Root.
type Fetcher struct {
	Client *http.Client
	Root   string
}

func NewFetcher(client *http.Client, root string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, Root: root}
}

// Fetch loads the sheet named by meta. The result is an *ebiten.Image.
func (f *Fetcher) Fetch(ctx context.Context, meta levels.SpriteMeta) (component.Texture, error) {
	img, err := f.Decode(ctx, meta)
	if err != nil {
		return nil, err
	}
	return ebiten.NewImageFromImage(img), nil
}

// Decode returns the sheet as a plain image without uploading it.
func (f *Fetcher) Decode(ctx context.Context, meta levels.SpriteMeta) (image.Image, error) {
	url := strings.TrimSpace(meta.SpriteSheetURL)
	switch {
	case strings.HasPrefix(url, PlaceholderScheme):
		return PlaceholderSheet(meta)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		b, err := f.get(ctx, url)
		if err != nil {
			return nil, err
		}
		return decode(url, b)
	default:
		b, err := os.ReadFile(f.resolve(url))
		if err != nil {
			return nil, fmt.Errorf("assets: read %s: %w", url, err)
		}
		return decode(url, b)
	}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("assets: %s: %w", url, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assets: get %s: %w: %v", url, backend.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("assets: get %s: %w: status %d", url, backend.ErrNetwork, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("assets: read %s: %w: %v", url, backend.ErrNetwork, err)
	}
	return b, nil
}

func (f *Fetcher) resolve(path string) string {
	s := filepath.ToSlash(path)
	s = strings.TrimPrefix(s, "file://")
	if filepath.IsAbs(s) || f.Root == "" {
		return filepath.FromSlash(s)
	}
	return filepath.Join(f.Root, filepath.FromSlash(s))
}

func decode(name string, b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("assets: decode %s: %w: %v", name, backend.ErrData, err)
	}
	return img, nil
}

// PlaceholderSheet draws a flat-colored sheet sized for meta: one column per
// walk frame and one row per direction. A marker block slides across each
// row so the walk cycle reads on screen.
func PlaceholderSheet(meta levels.SpriteMeta) (*image.RGBA, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(meta.SpriteSheetURL), PlaceholderScheme))
	base, ok := colornames.Map[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColor, name)
	}
	fw, fh := meta.FrameSize.Width, meta.FrameSize.Height
	if fw <= 0 || fh <= 0 {
		return nil, fmt.Errorf("assets: placeholder %s: %w", name, levels.ErrInvalidMeta)
	}

	cols := max(meta.FramesPerDirection, 1)
	rows := 1
	for _, row := range meta.DirectionMap {
		rows = max(rows, row+1)
	}

	img := image.NewRGBA(image.Rect(0, 0, fw*cols, fh*rows))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: base}, image.Point{}, draw.Src)

	edge := shade(base, 0.6)
	mark := shade(base, 1.4)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cell := image.Rect(c*fw, r*fh, (c+1)*fw, (r+1)*fh)
			outline(img, cell, edge)
			if cols > 1 {
				mw := max(fw/4, 1)
				mx := cell.Min.X + (fw-mw)*c/(cols-1)
				block := image.Rect(mx, cell.Min.Y+fh/4, mx+mw, cell.Max.Y-fh/4)
				draw.Draw(img, block, &image.Uniform{C: mark}, image.Point{}, draw.Src)
			}
		}
	}
	return img, nil
}

func outline(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

func shade(c color.RGBA, f float64) color.RGBA {
	scale := func(v uint8) uint8 {
		return uint8(min(float64(v)*f, 255))
	}
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}
