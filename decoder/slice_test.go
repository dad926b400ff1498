// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntra16x16Table_KnownValues(t *testing.T) {
	predMode, cbpChroma, cbpLuma := intra16x16Table(1)
	assert.Equal(t, int8(0), predMode)
	assert.Equal(t, uint8(0), cbpChroma)
	assert.Equal(t, uint8(0), cbpLuma)

	predMode, cbpChroma, cbpLuma = intra16x16Table(13)
	assert.Equal(t, int8(0), predMode)
	assert.Equal(t, uint8(0), cbpChroma)
	assert.Equal(t, uint8(15), cbpLuma)

	predMode, cbpChroma, cbpLuma = intra16x16Table(24)
	assert.Equal(t, int8(3), predMode)
	assert.Equal(t, uint8(2), cbpChroma)
	assert.Equal(t, uint8(15), cbpLuma)
}

func TestCacheToMode(t *testing.T) {
	assert.Equal(t, int8(-1), cacheToMode(0xff))
	assert.Equal(t, int8(5), cacheToMode(5))
}

func TestClip3i(t *testing.T) {
	assert.Equal(t, 0, clip3i(0, 51, -5))
	assert.Equal(t, 51, clip3i(0, 51, 200))
	assert.Equal(t, 30, clip3i(0, 51, 30))
}

func TestNeighbourAt_OutOfRangeIsNil(t *testing.T) {
	assert.Nil(t, neighbourAt(nil, -1))
}
