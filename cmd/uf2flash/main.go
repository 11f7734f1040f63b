// uf2flash: Neural-Hash Bootloader Toolkit, repurposed for UF2 conversion
// and USB flashing
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"bytes"
	"context"
	"debug/elf"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/gousb"

	"uf2flash/internal/config"
	"uf2flash/internal/discovery"
	"uf2flash/internal/logging"
	"uf2flash/internal/progress"
	"uf2flash/internal/statusserver"
	"uf2flash/internal/verify"
	"uf2flash/pkg/blockdev"
	"uf2flash/pkg/elfrange"
	"uf2flash/pkg/fatfs"
	"uf2flash/pkg/uf2"
	"uf2flash/pkg/usbmsc"
)

const uf2OutputName = "out.uf2"
const uf2InfoMarker = "INFO_UF2.TXT"
const deployChunkSize = 16 * 1024

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		runConvert(os.Args[2:])
	case "flash":
		runFlash(os.Args[2:])
	case "boards":
		runBoards()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: uf2flash <convert|flash|boards> [flags]")
}

func runBoards() {
	reg := uf2.NewRegistry()
	for _, b := range reg.All() {
		fmt.Printf("%-28s family=0x%08x page=%d erase=%d\n", b.Name, b.FamilyID, b.PageSize, b.FlashSectorEraseSize)
	}
}

func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	elfPath := fs.String("elf", "", "input ELF binary")
	boardName := fs.String("board", "", "target board name (see 'uf2flash boards')")
	outPath := fs.String("out", "", "output .uf2 path")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel), os.Stderr)

	if *elfPath == "" || *outPath == "" {
		usage()
		os.Exit(1)
	}
	board, ok := resolveBoard(*boardName, cfg.DefaultBoard)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown board %q; see 'uf2flash boards'\n", *boardName)
		os.Exit(1)
	}

	input, err := os.Open(*elfPath)
	if err != nil {
		log.Error("opening ELF: %v", err)
		os.Exit(1)
	}
	defer input.Close()

	f, err := elf.NewFile(input)
	if err != nil {
		log.Error("parsing ELF: %v", err)
		os.Exit(1)
	}
	defer f.Close()

	ranges, err := elfrange.FromELFSegments(f)
	if err != nil {
		log.Error("reading segments: %v", err)
		os.Exit(1)
	}
	log.Info("found %d in-memory address ranges", len(ranges))

	pageMap, err := elfrange.Paginate(input, board.PageSize)
	if err != nil {
		log.Error("paginating: %v", err)
		os.Exit(1)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Error("creating output: %v", err)
		os.Exit(1)
	}
	defer out.Close()

	err = progress.Run(fmt.Sprintf("converting %s -> %s (%s)", *elfPath, *outPath, board.Name), func(r uf2.ProgressReporter) error {
		return uf2.Encode(input, pageMap, board, out, r)
	})
	if err != nil {
		log.Error("encode failed: %v", err)
		os.Exit(1)
	}
}

func runFlash(args []string) {
	fs := flag.NewFlagSet("flash", flag.ExitOnError)
	elfPath := fs.String("elf", "", "input ELF binary")
	boardName := fs.String("board", "", "target board name")
	familyIDFlag := fs.String("family-id", "", "UF2 family id override (e.g. 0xe48bff56), used for the generic-board fallback")
	doVerify := fs.Bool("verify", true, "read back and checksum-verify after flashing")
	statusAddr := fs.String("status-addr", "", "if set, serve GET /status and /healthz on this address while flashing")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	registry := uf2.NewRegistry()

	input, err := os.Open(*elfPath)
	if err != nil {
		log.Error("opening ELF: %v", err)
		os.Exit(1)
	}
	defer input.Close()

	f, err := elf.NewFile(input)
	if err != nil {
		log.Error("parsing ELF: %v", err)
		os.Exit(1)
	}
	defer f.Close()

	status := &statusserver.Status{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *statusAddr != "" {
		srv := statusserver.New(*statusAddr, status)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Warn("status server stopped: %v", err)
			}
		}()
		log.Info("status available at %s", srv.Addr())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("received shutdown signal, aborting")
		cancel()
		os.Exit(1)
	}()

	// Drag-and-drop path: the host OS already mounted the bootloader's
	// FAT volume, so its own FAT driver is the collaborator — no raw BOT
	// transport or fatfs.Volume involved at all (§12 item "board
	// auto-detection", mounted-volume branch).
	if vols, scanErr := discovery.Scan(); scanErr == nil && len(vols) > 0 {
		vol := vols[0]
		board, ok := resolveBoard(*boardName, cfg.DefaultBoard)
		if !ok {
			board, ok = genericBoardFromFlag(*familyIDFlag)
		}
		if !ok {
			log.Error("no board selected for mounted volume %s; pass --board or --family-id", vol.MountPoint)
			os.Exit(1)
		}

		pageMap, err := elfrange.Paginate(input, board.PageSize)
		if err != nil {
			log.Error("paginating: %v", err)
			os.Exit(1)
		}

		var uf2Stream bytes.Buffer
		err = progress.Run(fmt.Sprintf("flashing %s -> %s (%s)", *elfPath, vol.MountPoint, board.Name), func(r uf2.ProgressReporter) error {
			reporter := &statusReporter{inner: r, status: status, board: board.Name}
			return uf2.Encode(input, pageMap, board, &uf2Stream, reporter)
		})
		if err != nil {
			status.Fail(err)
			log.Error("encode failed: %v", err)
			os.Exit(1)
		}

		outPath := filepath.Join(vol.MountPoint, uf2OutputName)
		if err := writeChunked(outPath, uf2Stream.Bytes()); err != nil {
			status.Fail(err)
			log.Error("writing %s: %v", outPath, err)
			os.Exit(1)
		}
		status.SetState("done")

		if *doVerify {
			log.Info("verifying...")
			readBack, err := os.ReadFile(outPath)
			if err != nil {
				log.Error("verify (readback): %v", err)
				os.Exit(1)
			}
			if !verifyMatches(uf2Stream.Bytes(), readBack) {
				log.Error("verification failed: checksum mismatch")
				os.Exit(1)
			}
			log.Info("verification passed")
		}
		return
	}

	// No mounted volume: fall back to the raw USB-MSC/BOT transport and
	// a minimal FAT collaborator (pkg/fatfs) over the matching partition.
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	candidates, err := usbmsc.Enumerate(usbCtx)
	if err != nil {
		log.Error("usb enumeration: %v", err)
		os.Exit(1)
	}
	if len(candidates) == 0 {
		log.Error("no USB mass storage device found")
		os.Exit(1)
	}

	target, board, ok := selectTarget(candidates, registry, *boardName, cfg.DefaultBoard, *familyIDFlag)
	if !ok {
		log.Error("no matching USB mass storage device found; pass --family-id for a generic fallback")
		os.Exit(1)
	}
	if !board.HasUSBMatch {
		log.Warn("no registered board matched; treating device as a generic UF2 target (family 0x%08x)", board.FamilyID)
	}

	opened, err := target.Open()
	if err != nil {
		log.Error("opening device: %v", err)
		os.Exit(1)
	}
	defer opened.Close()

	dev, err := blockdev.Open(opened)
	if err != nil {
		log.Error("reading device capacity: %v", err)
		os.Exit(1)
	}

	vol, err := findUF2Partition(dev)
	if err != nil {
		log.Error("locating FAT partition: %v", err)
		os.Exit(1)
	}

	pageMap, err := elfrange.Paginate(input, board.PageSize)
	if err != nil {
		log.Error("paginating: %v", err)
		os.Exit(1)
	}

	var uf2Stream bytes.Buffer
	err = progress.Run(fmt.Sprintf("flashing %s (%s)", *elfPath, board.Name), func(r uf2.ProgressReporter) error {
		reporter := &statusReporter{inner: r, status: status, board: board.Name}
		return uf2.Encode(input, pageMap, board, &uf2Stream, reporter)
	})
	if err != nil {
		status.Fail(err)
		log.Error("encode failed: %v", err)
		os.Exit(1)
	}

	if err := vol.CreateFile(uf2OutputName, uf2Stream.Bytes()); err != nil {
		status.Fail(err)
		log.Error("writing %s through FAT collaborator: %v", uf2OutputName, err)
		os.Exit(1)
	}
	if err := vol.Flush(); err != nil {
		status.Fail(err)
		log.Error("flushing %s: %v", uf2OutputName, err)
		os.Exit(1)
	}
	status.SetState("done")

	if *doVerify {
		log.Info("verifying...")
		readBack, err := vol.ReadFile(uf2OutputName)
		if err != nil {
			log.Error("verify (readback): %v", err)
			os.Exit(1)
		}
		if !verifyMatches(uf2Stream.Bytes(), readBack) {
			log.Error("verification failed: checksum mismatch")
			os.Exit(1)
		}
		log.Info("verification passed")
	}
}

// statusReporter forwards progress to both the active CLI reporter
// (plain or bubbletea) and the optional HTTP status server, so the two
// never drift out of sync (§12's status-daemon wiring).
type statusReporter struct {
	inner  uf2.ProgressReporter
	status *statusserver.Status
	board  string
}

func (r *statusReporter) Start(total int) {
	r.status.Set(r.board, total)
	r.inner.Start(total)
}

func (r *statusReporter) Advance(n int) {
	r.status.Advance(n)
	r.inner.Advance(n)
}

func (r *statusReporter) Finish() {
	r.status.SetState("verifying")
	r.inner.Finish()
}

// writeChunked creates path and copies data into it in deployChunkSize
// chunks, fsyncing once at the end — the same chunk-then-flush contract
// original_source's deploy_to_usb follows when writing through its own
// FAT collaborator.
func writeChunked(path string, data []byte) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	for len(data) > 0 {
		n := len(data)
		if n > deployChunkSize {
			n = deployChunkSize
		}
		if _, err := out.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return out.Sync()
}

func verifyMatches(want, got []byte) bool {
	wantDigest, err := verify.DigestStream(bytes.NewReader(want))
	if err != nil {
		return false
	}
	gotDigest, err := verify.DigestStream(bytes.NewReader(got))
	if err != nil {
		return false
	}
	return verify.Equal(wantDigest, gotDigest)
}

// findUF2Partition performs the multi-partition scan (§12 item 2): walk
// every partition the device's MBR (or lack of one) exposes and mount the
// first whose root directory carries an INFO_UF2.TXT marker.
func findUF2Partition(dev *blockdev.UsbBlockDevice) (*fatfs.Volume, error) {
	partitions, err := discovery.ScanPartitionTable(dev, dev.DiskSize())
	if err != nil {
		return nil, err
	}

	for _, part := range partitions {
		view, err := blockdev.NewPartitionView(dev, part.FirstByte, part.SizeBytes)
		if err != nil {
			continue
		}
		vol, err := fatfs.Mount(view)
		if err != nil {
			continue
		}
		if ok, _ := vol.HasMarkerFile(uf2InfoMarker); ok {
			return vol, nil
		}
	}
	return nil, fmt.Errorf("no partition with %s found among %d candidate(s)", uf2InfoMarker, len(partitions))
}

// selectTarget matches an enumerated MSC candidate against the board
// registry, falling back to a generic board (§12 item 1) when nothing
// matches and --family-id was supplied.
func selectTarget(candidates []usbmsc.Closed, registry *uf2.Registry, boardName, defaultBoard, familyIDFlag string) (*usbmsc.Closed, uf2.Board, bool) {
	if boardName != "" || defaultBoard != "" {
		if board, ok := resolveBoard(boardName, defaultBoard); ok {
			for i := range candidates {
				info := candidates[i].Info()
				if board.Matches(info.VendorID, info.ProductID) {
					return &candidates[i], board, true
				}
			}
		}
	}

	for i := range candidates {
		info := candidates[i].Info()
		if board, ok := registry.MatchUSB(info.VendorID, info.ProductID); ok {
			return &candidates[i], board, true
		}
	}

	if generic, ok := genericBoardFromFlag(familyIDFlag); ok {
		return &candidates[0], generic, true
	}

	return nil, uf2.Board{}, false
}

// genericBoardFromFlag builds an unmatched "generic" board descriptor
// from a user-supplied family id, the fallback original_source's
// get_plugged_in_boards takes when no known board recognizes the device.
func genericBoardFromFlag(familyIDFlag string) (uf2.Board, bool) {
	if familyIDFlag == "" {
		return uf2.Board{}, false
	}
	familyID, err := strconv.ParseUint(familyIDFlag, 0, 32)
	if err != nil {
		return uf2.Board{}, false
	}
	return uf2.NewBoard("generic", uint32(familyID)), true
}

func resolveBoard(name, fallback string) (uf2.Board, bool) {
	reg := uf2.NewRegistry()
	if name != "" {
		return reg.Lookup(name)
	}
	if fallback != "" {
		return reg.Lookup(fallback)
	}
	return uf2.Board{}, false
}
