package schema

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable content hash of the chunk's payload,
// attached to the engine's per-chunk debug watch events to correlate the same chunk
// across fan-out destinations without printing the payload itself.
func (c Chunk) Fingerprint() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%#v", c.Payload))
}
