package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/ftao/ddelta"
)

func main() {
	usage := `ddeltapatch

Usage:
  ddeltapatch [--verbose] <old_path> <new_path_or_dir> <patch_path>
  ddeltapatch -h | --help
  ddeltapatch --version

Options:
  --verbose   Log block-boundary reconciliation at debug/warn level.
  -h --help   Show this screen.
  --version   Show version.`

	args, err := docopt.Parse(usage, nil, true, "ddeltapatch 0.1", false)
	if err != nil {
		os.Exit(1)
	}

	oldPath := args["<old_path>"].(string)
	newPathOrDir := args["<new_path_or_dir>"].(string)
	patchPath := args["<patch_path>"].(string)

	log := logrus.New()
	if v, _ := args["--verbose"].(bool); v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	opts := ddelta.ApplyOptions{Log: log}
	if err := ddelta.Apply(oldPath, patchPath, newPathOrDir, opts); err != nil {
		reportErr(err)
		os.Exit(1)
	}

	if info, err := os.Stat(patchPath); err == nil {
		fmt.Printf("applied %s patch to %s\n", humanize.Bytes(uint64(info.Size())), newPathOrDir)
	}
}

func reportErr(err error) {
	var derr *ddelta.Error
	if errors.As(err, &derr) {
		switch derr.Kind {
		case ddelta.KindAlgorithm, ddelta.KindBadMagic:
			color.Red("ddeltapatch: %v", err)
		default:
			color.Yellow("ddeltapatch: %v", err)
		}
		return
	}
	color.Red("ddeltapatch: %v", err)
}
