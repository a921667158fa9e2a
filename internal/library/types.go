package library

// TrackInfo describes one subtitle file discovered under the content root.
type TrackInfo struct {
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Language string `json:"language,omitempty"` // normalized base code, "" when the filename carries no language token
}

// Content groups the subtitle tracks that share one media base name.
// Its ID is the slash-separated path of that base name relative to the
// content root, so it is stable across rescans.
type Content struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Tracks []TrackInfo `json:"tracks"`
}

// Catalog is the result of one scan of the content root.
type Catalog struct {
	Root     string    `json:"root"`
	Contents []Content `json:"contents"`
}
