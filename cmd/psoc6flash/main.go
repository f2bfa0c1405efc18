// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	psoc6 "github.com/RolfNoot/PSoC6-CMSIS-DAP-Programmer"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var logger *logrus.Logger

type cliSink struct{}

func (cliSink) Log(text string) {
	logger.Info(text)
}

func (cliSink) Progress(done, total uint32) {
	logger.Debugf("progress %d/%d", done, total)
}

func initLogger(level int) {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}

	logger = logrus.New()
	logger.SetFormatter(formatter)
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.Level(level))
}

func setUpCancelFlag() func() bool {
	var cancelled int32
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		atomic.StoreInt32(&cancelled, 1)
	}()

	return func() bool {
		return atomic.LoadInt32(&cancelled) != 0
	}
}

func loadFirmware(path string) (*psoc6.FirmwareRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fr := psoc6.NewFirmwareRecord()

	var segments []*psoc6.Segment
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		segments, err = psoc6.ParseHex(bytes.NewReader(raw))
	} else {
		var elfSegs []*psoc6.ProgramSegment
		elfSegs, err = psoc6.ParseElf32(raw)
		if err == nil {
			for _, es := range elfSegs {
				if es.IsLoad() {
					segments = append(segments, es.ToSegment())
				}
			}
		}
	}
	if err != nil {
		return nil, err
	}

	for _, seg := range segments {
		fr.Classify(seg)
	}
	fr.Merge(psoc6.RowSizePSoC6)
	return fr, nil
}

func main() {
	flagLogLevel := flag.Int("LogLevel", int(logrus.InfoLevel), "Logging verbosity [0 - 7]")
	flagVID := flag.Int("VID", 0, "probe USB vendor id, 0 matches any")
	flagPID := flag.Int("PID", 0, "probe USB product id, 0 matches any")
	flagSerial := flag.String("Serial", "", "probe serial number to match, empty matches any")
	flagSpeed := flag.Uint("Speed", 1000000, "SWJ clock speed in Hz")
	flagAP := flag.String("AP", "CM4", "access port to program through: CM0 or CM4")
	flagVerify := flag.Bool("Verify", true, "verify the image after programming")
	flagFirmware := flag.String("Firmware", "", "path to an Intel-HEX or ELF32 firmware image")

	flag.Parse()
	initLogger(*flagLogLevel)
	psoc6.SetLogger(logger)

	logger.Info("Welcome to the PSoC6 CMSIS-DAP programmer...")

	if *flagFirmware == "" {
		logger.Fatal("no firmware image given; pass -Firmware=<path>")
	}

	fr, err := loadFirmware(*flagFirmware)
	if err != nil {
		logger.Fatalf("error loading firmware: %v", err)
	}

	probes, err := psoc6.Scan(uint16(*flagVID), uint16(*flagPID))
	if err != nil {
		logger.Fatalf("error scanning for probes: %v", err)
	}

	var target *psoc6.ProbeInfo
	for i := range probes {
		if *flagSerial == "" || probes[i].SerialNumber == *flagSerial {
			target = &probes[i]
			break
		}
	}
	if target == nil {
		logger.Fatal("no matching CMSIS-DAP probe found")
	}

	cancel := setUpCancelFlag()

	programmer, err := psoc6.Open(*target,
		psoc6.WithSink(cliSink{}),
		psoc6.WithVerifyAfterProgram(*flagVerify),
		psoc6.WithSWJClockHz(uint32(*flagSpeed)),
	)
	if err != nil {
		logger.Fatalf("error opening probe: %v", err)
	}
	defer programmer.Close()

	ap := psoc6.ApCM4
	if strings.EqualFold(*flagAP, "CM0") {
		ap = psoc6.ApCM0
	}

	logger.Debugf("acquiring target over AP %v at %d Hz...", ap, *flagSpeed)
	if err := programmer.Acquire(psoc6.AcquireReset, ap, cancel); err != nil {
		logger.Fatalf("error acquiring target: %v", err)
	}

	info, err := programmer.GetInfo(cancel)
	if err != nil {
		logger.Errorf("error reading silicon id: %v", err)
	} else {
		logger.Infof("target family=0x%04x silicon=0x%04x rev=%d protection=%v", info.FamilyID, info.SiliconID, info.RevisionID, info.Protection)
	}

	for _, seg := range fr.ApplicationFlash {
		logger.Infof("erasing 0x%08x..0x%08x", seg.First, seg.Last+1)
		if err := programmer.Erase(seg.First, seg.Last+1, cancel); err != nil {
			logger.Fatalf("error erasing: %v", err)
		}

		logger.Infof("programming 0x%08x (%d bytes)", seg.First, len(seg.Data))
		if err := programmer.Program(seg.Data, seg.First, cancel); err != nil {
			logger.Fatalf("error programming: %v", err)
		}
	}

	logger.Info("done.")
	os.Exit(0)
}
