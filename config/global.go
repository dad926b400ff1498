// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"

	cfg "github.com/cnotch/loader"
	"github.com/cnotch/xlog"
)

// Vendor/Name/Version identify this build for the config file name
// and any future version-reporting surface.
const (
	Vendor  = "CAOHONGJU"
	Name    = "h264nal"
	Version = "V1.0.0"
)

var globalC *config

// InitConfig loads the layered configuration (TOML file, environment,
// command-line flags, in that priority order) and initialises the
// global logger from it.
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".toml")

	globalC = new(config)
	globalC.initFlags()

	if err := cfg.Load(globalC,
		&TOMLLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		xlog.Panic(err.Error())
	}

	globalC.Log.initLogger()
}

// NalBufferSize returns the NAL scanner's initial flat-buffer capacity.
func NalBufferSize() int {
	if globalC == nil || globalC.NalBufferSize <= 0 {
		return 64 * 1024
	}
	return globalC.NalBufferSize
}

// TsBufferSize returns the TS demultiplexer's initial flat-buffer capacity.
func TsBufferSize() int {
	if globalC == nil || globalC.TsBufferSize <= 0 {
		return 64 * 1024
	}
	return globalC.TsBufferSize
}

// SeiMaxPayload returns the maximum number of SEI payload bytes retained
// per message.
func SeiMaxPayload() int {
	if globalC == nil || globalC.SeiMaxPayload <= 0 {
		return 4096
	}
	return globalC.SeiMaxPayload
}
