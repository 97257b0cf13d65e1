package build

// Task describes the plane mesh of a tile. It travels encoded to the workers.
type Task struct {
	// The key of the tile, as formatted by quadtree.Key.
	Key string `json:"key"`

	// The submission ticket. Results echo it so that stale results can be
	// told apart.
	Ticket string `json:"ticket"`

	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	WidthSegments  int     `json:"width_segments"`
	HeightSegments int     `json:"height_segments"`
}

// Result holds the flat buffers of a built mesh, or the reason the build
// failed.
type Result struct {
	Key    string `json:"key"`
	Ticket string `json:"ticket"`

	Positions []float32 `json:"positions"`
	Normals   []float32 `json:"normals"`
	UVs       []float32 `json:"uvs"`
	Indices   []uint32  `json:"indices"`

	Error string `json:"error,omitempty"`
}
