// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// TOMLLoader is a cnotch/loader-compatible layer that reads (and, if
// absent, creates) a TOML configuration file. The teacher's own
// config package layers a JSONLoader the same way; this module swaps
// the format for TOML since that's the format the rest of the
// retrieval pack's BurntSushi/toml usage targets.
type TOMLLoader struct {
	Path              string
	CreatedIfNonExsit bool
}

// Load implements cfg.Loader.
func (l *TOMLLoader) Load(v interface{}) error {
	if _, err := os.Stat(l.Path); err != nil {
		if os.IsNotExist(err) && l.CreatedIfNonExsit {
			return l.create(v)
		}
		return err
	}
	_, err := toml.DecodeFile(l.Path, v)
	return err
}

func (l *TOMLLoader) create(v interface{}) error {
	f, err := os.Create(l.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(v)
}
