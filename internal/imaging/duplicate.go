/**
 * Near-duplicate photo detection
 *
 * Keeps a Haar-wavelet perceptual hash index of every photo seen by this
 * process. Re-submitted shots of the same product (re-encoded, slightly
 * cropped, recompressed) match even when their byte hashes differ, letting
 * the worker short-circuit to the stored extraction instead of re-running
 * the full pipeline. Exact re-uploads are already handled upstream by the
 * SHA-256 UPSERT in the history store.
 */

package imaging

import (
	"image"
	"sync"

	"github.com/rivo/duplo"
)

// DefaultDuplicateThreshold is the duplo match score below which two photos
// are treated as the same shot. Scores get more negative the closer the
// match; identical images land far below this cutoff.
const DefaultDuplicateThreshold = -60.0

// DuplicateIndex is a concurrency-safe perceptual hash index.
type DuplicateIndex struct {
	mu        sync.Mutex
	store     *duplo.Store
	threshold float64
}

// NewDuplicateIndex creates an empty index. A zero threshold selects
// DefaultDuplicateThreshold.
func NewDuplicateIndex(threshold float64) *DuplicateIndex {
	if threshold == 0 {
		threshold = DefaultDuplicateThreshold
	}
	return &DuplicateIndex{
		store:     duplo.New(),
		threshold: threshold,
	}
}

// Insert checks img against the index and, when no near-duplicate exists,
// registers it under id. Returns the matched id and true when a
// near-duplicate was found; the new image is not added in that case.
func (d *DuplicateIndex) Insert(id string, img image.Image) (string, bool) {
	hash, _ := duplo.CreateHash(img)

	d.mu.Lock()
	defer d.mu.Unlock()

	matches := d.store.Query(hash)
	if len(matches) > 0 && matches[0].Score <= d.threshold {
		if matchedID, ok := matches[0].ID.(string); ok {
			return matchedID, true
		}
	}

	d.store.Add(id, hash)
	return "", false
}

// Size returns the number of indexed photos.
func (d *DuplicateIndex) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Size()
}
