package deepzoom

import "fmt"

// Pipeline stage labels carried by DescriptorError and TileError.
const (
	StageFetch  = "fetch"
	StageParse  = "parse"
	StageDecode = "decode"
)

// DescriptorError reports a failure retrieving or parsing tiles.json.
type DescriptorError struct {
	URL   string
	Stage string // StageFetch or StageParse
	Err   error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor %s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }

// LevelNotFoundError reports a descriptor that carries no level with the
// maximum-resolution label.
type LevelNotFoundError struct {
	Name string
}

func (e *LevelNotFoundError) Error() string {
	return fmt.Sprintf("no zoom level named %q in descriptor", e.Name)
}

// TileError reports a failure retrieving or decoding a single tile. One
// failing tile aborts the whole reconstruction; there is no partial result.
type TileError struct {
	URL        string
	Stage      string // StageFetch or StageDecode
	StatusCode int    // set when the server answered with a non-2xx status
	Err        error
}

func (e *TileError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tile %s %s: HTTP %d", e.Stage, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("tile %s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }

// IdentifierError reports an input URL with no recognizable resource
// identifier segment.
type IdentifierError struct {
	URL string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("no resource identifier in %q", e.URL)
}
