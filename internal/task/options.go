// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package task

import (
	"fmt"
	"strings"
)

// Options that write outside the validated output template
var outputOptions = []string{
	"--output",
	"--paths",
	"--download-archive",
	"--cookies",
	"--cache-dir",
	"--print-to-file",
}

// Options that run programs, load other args or pick binaries
var commandOptions = []string{
	"--exec",
	"--exec-before-download",
	"--config-location",
	"--config-locations",
	"--batch-file",
	"--load-info-json",
	"--ffmpeg-location",
	"--downloader",
	"--external-downloader",
	"--downloader-args",
	"--external-downloader-args",
	"--postprocessor-args",
	"--ppa",
	"--use-postprocessor",
	"--plugin-dirs",
	"--netrc-cmd",
	"--netrc-location",
	"--alias",
}

var (
	shortOutput  = "oP"
	shortCommand = "a"
)

// Short options that consume the rest of their cluster as a value
var shortValued = "fIrRNSupt"

// validateOptions rejects extra args that could redirect output or run commands
func validateOptions(opts []string) error {
	for _, opt := range opts {
		if opt == "--" {
			return fmt.Errorf("%w: %s", ErrInvalidOption, opt)
		}
		if strings.HasPrefix(opt, "--") {
			if err := checkLong(opt); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(opt, "-") && len(opt) > 1 {
			if err := checkShort(opt); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkLong(opt string) error {
	name, _, _ := strings.Cut(opt, "=")
	if strings.HasPrefix(name, "--exec") {
		return fmt.Errorf("%w: %s", ErrInvalidOption, name)
	}
	if matchLong(name, outputOptions) {
		return fmt.Errorf("%w: %s", ErrInvalidOutput, name)
	}
	if matchLong(name, commandOptions) {
		return fmt.Errorf("%w: %s", ErrInvalidOption, name)
	}
	return nil
}

// matchLong also catches abbreviations, which the downloader's option parser accepts
func matchLong(name string, list []string) bool {
	for _, l := range list {
		if name == l || (len(name) > 3 && strings.HasPrefix(l, name)) {
			return true
		}
	}
	return false
}

// checkShort walks a cluster like -xo until a flag takes the remainder as its value
func checkShort(opt string) error {
	for _, r := range opt[1:] {
		switch {
		case strings.ContainsRune(shortOutput, r):
			return fmt.Errorf("%w: -%c", ErrInvalidOutput, r)
		case strings.ContainsRune(shortCommand, r):
			return fmt.Errorf("%w: -%c", ErrInvalidOption, r)
		case strings.ContainsRune(shortValued, r):
			return nil
		}
	}
	return nil
}
