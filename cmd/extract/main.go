// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

// Command extract classifies downloader output read from stdin or a file and
// prints one JSON object per event.
//
//	yt-dlp --newline URL | extract
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ZSC714725/ytdlmanager/internal/logger"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl/parse"
)

func main() {
	file := flag.String("file", "", "Read lines from file instead of stdin")
	all := flag.Bool("all", false, "Print {} for lines without an event")
	flag.Parse()

	log := logger.New("extract", logger.Config{Format: "console"})

	var in io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Error("open: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if err := run(in, os.Stdout, *all); err != nil {
		log.Error("extract: %v", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, all bool) error {
	w := bufio.NewWriter(out)

	session := parse.NewSession()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e := session.Extract(scanner.Text())
		if e == nil && !all {
			continue
		}
		data, err := parse.MarshalEvent(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return w.Flush()
}
