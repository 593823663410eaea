package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/docopt/docopt-go"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/ftao/ddelta"
)

func main() {
	usage := `ddeltadiff

Usage:
  ddeltadiff [--verbose] [--stats <stats_file>] <old_path> <new_path> <patch_path> [<blocksize>]
  ddeltadiff -h | --help
  ddeltadiff --version

Options:
  --stats=<stats_file>  Write a msgpack-encoded block summary here.
  --verbose             Log each block's checksums at debug level.
  -h --help             Show this screen.
  --version             Show version.`

	args, err := docopt.Parse(usage, nil, true, "ddeltadiff 0.1", false)
	if err != nil {
		os.Exit(1)
	}

	oldPath := args["<old_path>"].(string)
	newPath := args["<new_path>"].(string)
	patchPath := args["<patch_path>"].(string)

	blocksize := 0
	if bs, ok := args["<blocksize>"].(string); ok && bs != "" {
		n, err := strconv.Atoi(bs)
		if err != nil {
			color.Red("ddeltadiff: invalid blocksize %q: %v", bs, err)
			os.Exit(1)
		}
		blocksize = n
	}

	log := logrus.New()
	if v, _ := args["--verbose"].(bool); v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	old, err := os.ReadFile(oldPath)
	if err != nil {
		color.Red("ddeltadiff: reading reference: %v", err)
		os.Exit(1)
	}
	target, err := os.ReadFile(newPath)
	if err != nil {
		color.Red("ddeltadiff: reading target: %v", err)
		os.Exit(1)
	}

	patchFile, err := os.Create(patchPath)
	if err != nil {
		color.Red("ddeltadiff: creating patch: %v", err)
		os.Exit(1)
	}
	defer patchFile.Close()

	stats := &ddelta.PatchStats{}
	opts := ddelta.GenerateOptions{BlockSize: blocksize, Log: log, Stats: stats}

	if err := ddelta.Generate(old, target, patchFile, opts); err != nil {
		reportErr(err)
		os.Exit(1)
	}

	if statsPath, ok := args["--stats"].(string); ok && statsPath != "" {
		f, err := os.Create(statsPath)
		if err != nil {
			color.Red("ddeltadiff: creating stats file: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := ddelta.WriteStats(f, stats); err != nil {
			color.Red("ddeltadiff: writing stats: %v", err)
			os.Exit(1)
		}
	}

	if info, err := patchFile.Stat(); err == nil {
		fmt.Printf("wrote %s patch (%s -> %s) in %d blocks\n",
			humanize.Bytes(uint64(info.Size())),
			humanize.Bytes(stats.OldSize),
			humanize.Bytes(stats.NewSize),
			len(stats.Blocks))
	}
}

func reportErr(err error) {
	var derr *ddelta.Error
	if ok := errors.As(err, &derr); ok {
		switch derr.Kind {
		case ddelta.KindAlgorithm, ddelta.KindBadMagic:
			color.Red("ddeltadiff: %v", err)
		default:
			color.Yellow("ddeltadiff: %v", err)
		}
		return
	}
	color.Red("ddeltadiff: %v", err)
}
