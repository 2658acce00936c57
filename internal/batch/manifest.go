package batch

// FileInfo describes one closed batch file.
type FileInfo struct {
	Name              string `json:"name"`
	URL               string `json:"url"`
	Records           int    `json:"records"`
	UncompressedBytes int64  `json:"uncompressed_bytes"`
	CompressedBytes   int64  `json:"compressed_bytes"`
	// Checksum is the hex xxh3-64 hash of the uncompressed content.
	Checksum string `json:"checksum"`
}

// Manifest lists the files produced for one chunk. URLs holds exactly one
// address per chunk, in the same order as Files.
type Manifest struct {
	RunID  string     `json:"run_id"`
	Tap    string     `json:"tap"`
	Stream string     `json:"stream"`
	Seq    int        `json:"seq"`
	URLs   []string   `json:"urls"`
	Files  []FileInfo `json:"files"`
}

// Records returns the number of records across all files.
func (m Manifest) Records() int {
	n := 0
	for _, f := range m.Files {
		n += f.Records
	}
	return n
}
