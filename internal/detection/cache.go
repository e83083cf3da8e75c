package detection

import (
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CornerKey identifies one corner detection: which pixels (by buffer
// version), which backend, which region and which parameters.
type CornerKey struct {
	Version uint64
	Backend string
	Rule    ExtractRule
	Region  image.Rectangle
	Params  CornerParams
}

// TransitionKey identifies one transition detection along a line.
type TransitionKey struct {
	Version uint64
	Rule    ExtractRule
	Start   Point
	End     Point
	Params  TransitionParams
}

// Cache memoises detection results for the caller that owns it. Detectors
// never consult it; it only saves recomputation when the same buffer version,
// geometry and parameters are requested again.
//
// Cached results are shared between callers and must be treated as read-only.
// A Cache is safe for concurrent use. A nil *Cache, or one built with size
// <= 0, computes every request.
type Cache struct {
	corners     *lru.Cache[CornerKey, CornersResult]
	transitions *lru.Cache[TransitionKey, TransitionsResult]
}

// NewCache returns a cache holding up to size entries of each kind.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return &Cache{}, nil
	}
	corners, err := lru.New[CornerKey, CornersResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create corner cache: %w", err)
	}
	transitions, err := lru.New[TransitionKey, TransitionsResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition cache: %w", err)
	}
	return &Cache{corners: corners, transitions: transitions}, nil
}

// Corners returns the cached result for key or computes and stores it.
// Results carrying a diagnostic are returned but not stored.
func (c *Cache) Corners(key CornerKey, compute func() CornersResult) CornersResult {
	if c == nil || c.corners == nil {
		return compute()
	}
	if res, ok := c.corners.Get(key); ok {
		return res
	}
	res := compute()
	if res.Diagnostic == "" {
		c.corners.Add(key, res)
	}
	return res
}

// Transitions returns the cached result for key or computes and stores it.
func (c *Cache) Transitions(key TransitionKey, compute func() TransitionsResult) TransitionsResult {
	if c == nil || c.transitions == nil {
		return compute()
	}
	if res, ok := c.transitions.Get(key); ok {
		return res
	}
	res := compute()
	c.transitions.Add(key, res)
	return res
}

// Len returns the number of cached corner and transition results.
func (c *Cache) Len() (corners, transitions int) {
	if c == nil || c.corners == nil {
		return 0, 0
	}
	return c.corners.Len(), c.transitions.Len()
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	if c == nil || c.corners == nil {
		return
	}
	c.corners.Purge()
	c.transitions.Purge()
}
