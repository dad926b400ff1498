// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	NalBufferSize int `toml:"nal_buffer_size"`
}

func TestTOMLLoader_CreatesFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h264nal.toml")
	l := &TOMLLoader{Path: path, CreatedIfNonExsit: true}

	v := &testConfig{NalBufferSize: 65536}
	assert.NoError(t, l.Load(v))
	assert.FileExists(t, path)
}

func TestTOMLLoader_LoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h264nal.toml")
	seed := &TOMLLoader{Path: path, CreatedIfNonExsit: true}
	assert.NoError(t, seed.Load(&testConfig{NalBufferSize: 4096}))

	l := &TOMLLoader{Path: path}
	got := &testConfig{}
	assert.NoError(t, l.Load(got))
	assert.Equal(t, 4096, got.NalBufferSize)
}

func TestTOMLLoader_MissingWithoutCreateReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	l := &TOMLLoader{Path: path}
	assert.Error(t, l.Load(&testConfig{}))
}
