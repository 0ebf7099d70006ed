package deepzoom

import "strings"

// ExtractIdentifier derives the collection-item identifier from an item URL.
// The identifier is the path tail after the last "resource/" segment, e.g.
// ".../resource/B+43122" yields "B+43122". It is used only to name the output
// artifact and is validated before any network activity.
func ExtractIdentifier(rawURL string) (string, error) {
	const marker = "resource/"
	idx := strings.LastIndex(rawURL, marker)
	if idx == -1 {
		return "", &IdentifierError{URL: rawURL}
	}
	id := strings.Trim(rawURL[idx+len(marker):], "/")
	if id == "" || strings.Contains(id, "/") {
		return "", &IdentifierError{URL: rawURL}
	}
	return id, nil
}

// Slug normalizes an identifier for use in a filename: lowercased, with runs
// of non-alphanumeric characters collapsed to a single dash.
func Slug(id string) string {
	var b strings.Builder
	dash := true // swallow leading separators
	for _, r := range strings.ToLower(id) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// OutputFilename builds the artifact filename for an identifier, e.g.
// OutputFilename("slsa", "B+43122", "jpg") == "slsa-b-43122.jpg".
func OutputFilename(prefix, id, ext string) string {
	name := Slug(id)
	if prefix != "" {
		name = prefix + "-" + name
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
