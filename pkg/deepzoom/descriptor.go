package deepzoom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DescriptorURL derives the tiles.json URL for the collection rooted at base.
// A trailing slash on base is normalized away.
func DescriptorURL(base string) string {
	return strings.TrimRight(base, "/") + "/tiles.json"
}

// ParseDescriptor decodes a tiles.json body. A document with no levels is
// rejected here; all other shape validation is deferred to level selection.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if len(d.Levels) == 0 {
		return nil, fmt.Errorf("descriptor contains no zoom levels")
	}
	return &d, nil
}

// SelectLevel returns the maximum-resolution level of the descriptor. The
// gallery server labels that tier "z0", so this is a fixed lookup rather than
// a max-over-dimensions scan. No fallback to another level is attempted.
func (d *Descriptor) SelectLevel() (*Level, error) {
	for i := range d.Levels {
		if d.Levels[i].Name == MaxResolutionLevel {
			return &d.Levels[i], nil
		}
	}
	return nil, &LevelNotFoundError{Name: MaxResolutionLevel}
}
