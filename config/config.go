// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
)

// config holds every knob the decoder's ambient stack exposes: log
// output plus the buffer-sizing and payload-capacity knobs the
// teacher's service config has no equivalent for.
type config struct {
	NalBufferSize  int       `toml:"nal_buffer_size"`
	TsBufferSize   int       `toml:"ts_buffer_size"`
	SeiMaxPayload  int       `toml:"sei_max_payload"`
	Log            LogConfig `toml:"log"`
}

func (c *config) initFlags() {
	flag.IntVar(&c.NalBufferSize, "nal-bufsize", 64*1024,
		"Set the initial capacity in bytes of the NAL scanner's flat buffer")
	flag.IntVar(&c.TsBufferSize, "ts-bufsize", 64*1024,
		"Set the initial capacity in bytes of the TS demultiplexer's flat buffer")
	flag.IntVar(&c.SeiMaxPayload, "sei-max-payload", 4096,
		"Set the maximum number of SEI payload bytes retained per message")

	c.Log.initFlags()
}
