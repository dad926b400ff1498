// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"io"
	"os"

	"github.com/cnotch/h264nal/config"
	"github.com/cnotch/h264nal/decoder"
	"github.com/cnotch/h264nal/mpegts"
	"github.com/cnotch/xlog"
)

func main() {
	config.InitConfig()

	var (
		rtp     = flag.Bool("r", false, "RTP input (reserved, not implemented)")
		tsPid   = flag.String("t", "", "TS input with numeric decimal/hex video PID")
		annexB  = flag.Bool("a", false, "Annex B input")
		outPath = flag.String("o", "", "Create this output file (no stream data is written to it)")
	)
	flag.Parse()

	if *rtp {
		xlog.Errorf("RTP input is reserved and not implemented")
		os.Exit(1)
	}

	inputPath := flag.Arg(0)
	if inputPath == "" {
		xlog.Errorf("missing input path")
		os.Exit(1)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		xlog.Errorf("open input: %v", err)
		os.Exit(1)
	}
	defer in.Close()

	var out io.Writer
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			xlog.Errorf("open output: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	dec := decoder.New(config.NalBufferSize())

	var pid uint16
	if *tsPid != "" {
		pid, err = parsePID(*tsPid)
		if err != nil {
			xlog.Errorf("parse pid: %v", err)
			os.Exit(1)
		}
	}

	if pid != 0 {
		runTS(in, out, dec, pid)
		return
	}
	if *annexB {
		runAnnexB(in, out, dec)
		return
	}
	runAnnexB(in, out, dec)
}

func parsePID(s string) (uint16, error) {
	base := 10
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		base = 16
		s = s[2:]
	}
	var v uint64
	for _, c := range []byte(s) {
		d, ok := hexDigit(c, base)
		if !ok {
			return 0, os.ErrInvalid
		}
		v = v*uint64(base) + uint64(d)
	}
	return uint16(v), nil
}

func hexDigit(c byte, base int) (int, bool) {
	var d int
	switch {
	case c >= '0' && c <= '9':
		d = int(c - '0')
	case base == 16 && c >= 'a' && c <= 'f':
		d = int(c-'a') + 10
	case base == 16 && c >= 'A' && c <= 'F':
		d = int(c-'A') + 10
	default:
		return 0, false
	}
	if d >= base {
		return 0, false
	}
	return d, true
}

func runAnnexB(in io.Reader, out io.Writer, dec *decoder.Decoder) {
	buf := make([]byte, 64*1024)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			drain(dec, out)
		}
		if err != nil {
			return
		}
	}
}

func runTS(in io.Reader, out io.Writer, dec *decoder.Decoder, pid uint16) {
	demux := mpegts.NewDemuxer(config.TsBufferSize())
	demux.SetVideoPID(pid)

	buf := make([]byte, 64*1024)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			demux.Feed(buf[:n])
			for {
				status := demux.Parse()
				switch status {
				case mpegts.NeedBytes:
				case mpegts.SyncGained:
					xlog.Infof("ts sync acquired")
				case mpegts.NotSynchronized:
					xlog.Warnf("ts sync not yet found, skipping bytes")
				case mpegts.SyncLost:
					xlog.Warnf("ts sync lost, resynchronizing")
				case mpegts.TransportRateDetected:
					xlog.Infof("ts transport rate detected")
				}
				if status == mpegts.NeedBytes {
					break
				}
				if len(demux.Output) > 0 {
					dec.Feed(demux.Output)
					demux.Output = demux.Output[:0]
					drain(dec, out)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func drain(dec *decoder.Decoder, out io.Writer) {
	for {
		status := dec.Parse()
		if status == decoder.NeedBytes {
			return
		}
		if out != nil && status == decoder.SliceParsed {
			// Nothing is written to out: the decoder does not hand back
			// the raw slice bytes, so the output file stays empty.
		}
	}
}
