package deepzoom

// MaxResolutionLevel is the label the gallery server assigns to the
// highest-resolution tier of an image pyramid.
const MaxResolutionLevel = "z0"

// Descriptor is the tiles.json metadata document enumerating the zoom levels
// of one digitized image.
type Descriptor struct {
	Levels []Level `json:"levels"`
}

// Level is one resolution tier: overall pixel dimensions plus the tile grid
// covering them.
type Level struct {
	Name   string    `json:"name"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Tiles  []TileRef `json:"tiles"`
}

// TileRef locates one tile within a level's grid. X and Y are grid indices,
// not pixel offsets; the per-tile pixel size is not part of the descriptor
// and is inferred from the first decoded tile.
type TileRef struct {
	URL string `json:"url"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
}
