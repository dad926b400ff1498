// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mb

// cacheIdx is the fixed 16-entry map from a 4x4 sub-block index to its
// position in the 5x8 cache grid, transcribed verbatim from the
// standard reference layout: adjacent-row stride is 8, and the
// mapping groups the 16 sub-blocks into four 2x2 quadrants staged at
// rows {1,2} and {3,4}, columns {4,5} and {6,7} (spec.md §9 "mb_cache
// layout ... load-bearing").
var cacheIdx = [16]uint8{
	1*8 + 4, 1*8 + 5,
	2*8 + 4, 2*8 + 5,
	1*8 + 6, 1*8 + 7,
	2*8 + 6, 2*8 + 7,

	3*8 + 4, 3*8 + 5,
	4*8 + 4, 4*8 + 5,
	3*8 + 6, 3*8 + 7,
	4*8 + 6, 4*8 + 7,
}

// Cache is the 5x8 byte grid staging neighbour values (non-zero
// counts or prediction modes) for the current macroblock's 16 4x4
// sub-blocks, plus a one-row/one-column border used to hold the left
// and top neighbours' edge values.
type Cache struct {
	grid [5 * 8]byte
}

// NewCache returns a Cache with every cell marked unavailable (0xff,
// matching the convention that a real value never uses the top bit
// range reserved for "not present").
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.grid {
		c.grid[i] = 0xff
	}
	return c
}

// Set stores a sub-block's value at its fixed cache position.
func (c *Cache) Set(subBlock int, v byte) {
	c.grid[cacheIdx[subBlock]] = v
}

// Get retrieves a sub-block's cached value.
func (c *Cache) Get(subBlock int) byte {
	return c.grid[cacheIdx[subBlock]]
}

// SetAt/GetAt address the grid directly by (row, col), used to stage
// the border cells (row 0 and column <4) that the reindexed
// left/top-neighbour values are copied into before a sub-block's
// value is derived from cache[cacheIdx[i]-1] / cache[cacheIdx[i]-8].
func (c *Cache) SetAt(row, col int, v byte) {
	c.grid[row*8+col] = v
}

func (c *Cache) GetAt(row, col int) byte {
	return c.grid[row*8+col]
}

// Left returns the cached value immediately to the left of sub-block
// subBlock's grid cell (its raster-adjacent neighbour within the
// cache, valid for both AC/nzc and prediction-mode use).
func (c *Cache) Left(subBlock int) byte {
	return c.grid[cacheIdx[subBlock]-1]
}

// Top returns the cached value immediately above sub-block subBlock's
// grid cell.
func (c *Cache) Top(subBlock int) byte {
	return c.grid[cacheIdx[subBlock]-8]
}

// Reset marks every cell unavailable again, for reuse across
// macroblocks.
func (c *Cache) Reset() {
	for i := range c.grid {
		c.grid[i] = 0xff
	}
}
