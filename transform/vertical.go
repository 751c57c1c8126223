/*
Copyright © 2019 the dycore authors.
This file is part of dycore.

dycore is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dycore is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dycore.  If not, see <http://www.gnu.org/licenses/>.
*/

package transform

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
)

// VerticalCache builds the position-dependent transform matrices of a
// stretched vertical grid. Levels whose normalized stencils are identical
// (e.g., every level of a uniform grid) share one set of matrices.
type VerticalCache struct {
	ord, ngll int
	mu        sync.Mutex
	cache     *lru.Cache
}

// NewVerticalCache returns a cache holding up to maxEntries matrix sets.
func NewVerticalCache(ord, ngll, maxEntries int) (*VerticalCache, error) {
	if err := checkOrder(ord, ngll); err != nil {
		return nil, err
	}
	return &VerticalCache{
		ord:   ord,
		ngll:  ngll,
		cache: lru.New(maxEntries),
	}, nil
}

// Levels returns the transform matrices for every level of a column
// with the given nz+1 interface heights zint. Ghost interfaces beyond the
// domain ends repeat the thickness of the end cells.
func (c *VerticalCache) Levels(zint []float64) ([]*Matrices, error) {
	nz := len(zint) - 1
	if nz < 1 {
		return nil, fmt.Errorf("transform: vertical column needs at least 2 interfaces; got %d", len(zint))
	}
	hs := (c.ord - 1) / 2
	ghost := GhostInterfaces(zint, hs)
	out := make([]*Matrices, nz)
	locs := make([]float64, c.ord+1)
	for k := 0; k < nz; k++ {
		copy(locs, ghost[k:k+c.ord+1])
		zmid := (locs[hs+1] + locs[hs]) / 2
		dzmid := locs[hs+1] - locs[hs]
		for i := range locs {
			locs[i] = (locs[i] - zmid) / dzmid
		}
		m, err := c.get(locs)
		if err != nil {
			return nil, fmt.Errorf("transform: level %d: %v", k, err)
		}
		out[k] = m
	}
	return out, nil
}

func (c *VerticalCache) get(locs []float64) (*Matrices, error) {
	key := locsKey(locs)
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.cache.Get(key); ok {
		return m.(*Matrices), nil
	}
	m, err := NewNonuniform(c.ord, c.ngll, locs)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, m)
	return m, nil
}

// locsKey rounds the normalized locations so that levels that differ only
// by floating-point noise share a key.
func locsKey(locs []float64) string {
	b := new(bytes.Buffer)
	for _, l := range locs {
		fmt.Fprintf(b, "%.10f,", l)
	}
	return b.String()
}

// GhostInterfaces extends the interface heights zint by hs ghost cells on
// each end. The ghost cells have the thickness of the nearest domain cell.
func GhostInterfaces(zint []float64, hs int) []float64 {
	nz := len(zint) - 1
	out := make([]float64, nz+2*hs+1)
	dzBot := zint[1] - zint[0]
	dzTop := zint[nz] - zint[nz-1]
	out[0] = zint[0] - float64(hs)*dzBot
	for i := 1; i < len(out); i++ {
		k := i - 1 - hs // index of the cell below interface i
		var dz float64
		switch {
		case k < 0:
			dz = dzBot
		case k >= nz:
			dz = dzTop
		default:
			dz = zint[k+1] - zint[k]
		}
		out[i] = out[i-1] + dz
	}
	return out
}
