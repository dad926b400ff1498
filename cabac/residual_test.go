// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cabac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMin(t *testing.T) {
	assert.Equal(t, 2, min(2, 5))
	assert.Equal(t, 2, min(5, 2))
	assert.Equal(t, 3, min(3, 3))
}

func TestResidualBases_CoverAllCategories(t *testing.T) {
	cats := []CtxBlockCat{CatLumaDC, CatLumaAC, CatLuma4x4, CatChromaDC, CatChromaAC, CatLuma8x8}
	for _, c := range cats {
		base := residualBases[c]
		assert.Greater(t, base.codedBlockFlag, 0)
		assert.Greater(t, base.significant, 0)
		assert.Greater(t, base.lastSignif, 0)
		assert.Greater(t, base.absLevelMinus1, 0)
	}
}
