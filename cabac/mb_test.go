// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cabac

import (
	"testing"

	"github.com/cnotch/h264nal/mb"
	"github.com/stretchr/testify/assert"
)

func TestPredictedIntraMode_UnavailableNeighboursAreDC(t *testing.T) {
	assert.Equal(t, int8(2), PredictedIntraMode(-1, -1))
	assert.Equal(t, int8(2), PredictedIntraMode(-1, 5))
	assert.Equal(t, int8(3), PredictedIntraMode(3, 7))
}

func TestNeighbourIntraFlag_NilNeighbourIsZero(t *testing.T) {
	assert.Equal(t, 0, neighbourIntraFlag(nil, func(r *mb.Record) bool { return true }))
}

func TestNeighbourIntraFlag_ConditionEvaluatedWhenPresent(t *testing.T) {
	rec := mb.NewRecord(0, 0, 0, 0)
	rec.Type = mb.TypeIntra
	assert.Equal(t, 1, neighbourIntraFlag(rec, func(r *mb.Record) bool { return r.Type&mb.TypeIntra != 0 }))
	assert.Equal(t, 0, neighbourIntraFlag(rec, func(r *mb.Record) bool { return r.Type&mb.TypeIPCM != 0 }))
}
