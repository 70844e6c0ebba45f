package vecstore

// Record is a vector row as presented to and returned from store operations.
type Record struct {
	ID     uint32
	Vector []float32
	Meta   []byte
}

// Hit is a single search result: the matched id, its metric score (higher is
// always closer, regardless of Metric), and its metadata blob.
type Hit struct {
	ID    uint32
	Score float32
	Meta  []byte
}
