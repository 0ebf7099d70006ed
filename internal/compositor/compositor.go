// Package compositor reconstructs a full-resolution image from the deep-zoom
// tile pyramid exposed by a remote gallery server.
package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"deepstitch/pkg/deepzoom"
)

const defaultUserAgent = "deepstitch/1.0.0"

// Options contains compositor configuration.
type Options struct {
	// UserAgent is sent on every request; empty falls back to a default.
	UserAgent string

	// Logger receives engine progress. Nil discards all output.
	Logger *log.Logger

	// Progress, when set, is called after each tile is placed with the number
	// of placed tiles and the level's total.
	Progress func(done, total int)
}

// Result contains a finished reconstruction.
type Result struct {
	Image      image.Image
	Identifier string
	Width      int
	Height     int
}

// Compositor fetches deep-zoom tiles and pastes them onto a canvas. The HTTP
// client is injected so tests can point it at fake servers; the engine never
// reaches for ambient transport state.
type Compositor struct {
	client *http.Client
	opts   Options
}

// New creates a compositor around the given client. A nil client gets a
// default with a 30 second timeout.
func New(client *http.Client, opts Options) *Compositor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Compositor{client: client, opts: opts}
}

// Reconstruct runs the full pipeline for one collection-item URL: identifier
// extraction, descriptor fetch, level selection, tile compositing. The first
// failure at any stage aborts the operation; no partial image is returned.
func (c *Compositor) Reconstruct(ctx context.Context, itemURL string) (*Result, error) {
	id, err := deepzoom.ExtractIdentifier(itemURL)
	if err != nil {
		return nil, err
	}

	desc, err := c.FetchDescriptor(ctx, itemURL)
	if err != nil {
		return nil, err
	}

	level, err := desc.SelectLevel()
	if err != nil {
		return nil, err
	}

	img, err := c.Compose(ctx, level)
	if err != nil {
		return nil, err
	}

	return &Result{
		Image:      img,
		Identifier: id,
		Width:      level.Width,
		Height:     level.Height,
	}, nil
}

// FetchDescriptor retrieves and parses the tiles.json document for the
// collection rooted at base.
func (c *Compositor) FetchDescriptor(ctx context.Context, base string) (*deepzoom.Descriptor, error) {
	url := deepzoom.DescriptorURL(base)
	c.opts.Logger.Debug("fetching descriptor", "url", url)

	data, _, err := c.get(ctx, url)
	if err != nil {
		return nil, &deepzoom.DescriptorError{URL: url, Stage: deepzoom.StageFetch, Err: err}
	}

	desc, err := deepzoom.ParseDescriptor(data)
	if err != nil {
		return nil, &deepzoom.DescriptorError{URL: url, Stage: deepzoom.StageParse, Err: err}
	}

	return desc, nil
}

// Compose downloads every tile of level and pastes each at its grid-derived
// pixel offset on a canvas of the level's declared dimensions. The first
// decoded tile fixes the cell size for the whole level; the gallery server
// keeps tile dimensions uniform apart from edge tiles, so later tiles are not
// re-measured. Pixels past the canvas bounds are clipped on write, which is
// how oversized edge tiles are handled. Any single fetch or decode failure
// aborts the reconstruction.
func (c *Compositor) Compose(ctx context.Context, level *deepzoom.Level) (image.Image, error) {
	if level.Width <= 0 || level.Height <= 0 {
		return nil, fmt.Errorf("level %q has invalid dimensions %dx%d", level.Name, level.Width, level.Height)
	}
	if len(level.Tiles) == 0 {
		return nil, fmt.Errorf("level %q has no tiles", level.Name)
	}

	c.opts.Logger.Info("composing level",
		"name", level.Name,
		"size", fmt.Sprintf("%dx%d", level.Width, level.Height),
		"tiles", len(level.Tiles))

	canvas := imaging.New(level.Width, level.Height, color.NRGBA{A: 0xff})

	var cellW, cellH int
	for i, ref := range level.Tiles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, status, err := c.get(ctx, ref.URL)
		if err != nil {
			return nil, &deepzoom.TileError{URL: ref.URL, Stage: deepzoom.StageFetch, StatusCode: status, Err: err}
		}

		tile, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &deepzoom.TileError{URL: ref.URL, Stage: deepzoom.StageDecode, Err: err}
		}

		if i == 0 {
			b := tile.Bounds()
			cellW, cellH = b.Dx(), b.Dy()
			c.opts.Logger.Debug("inferred cell size", "width", cellW, "height", cellH)
		}

		canvas = imaging.Paste(canvas, tile, image.Pt(ref.X*cellW, ref.Y*cellH))
		c.opts.Logger.Debug("tile placed", "url", ref.URL, "x", ref.X, "y", ref.Y)

		if c.opts.Progress != nil {
			c.opts.Progress(i+1, len(level.Tiles))
		}
	}

	return canvas, nil
}

// get performs one GET and returns the body. On a non-2xx answer the status
// code is returned alongside the error so callers can surface it.
func (c *Compositor) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Encode writes img to w in the given format ("jpg" or "png").
func Encode(w io.Writer, img image.Image, format string) error {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return fmt.Errorf("unsupported output format %q: %w", format, err)
	}
	return imaging.Encode(w, img, f)
}

// Save encodes img to path; the encoder follows the file extension.
func Save(img image.Image, path string) error {
	return imaging.Save(img, path)
}
