// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Extractor is a site the downloader can extract from
type Extractor struct {
	Id     string
	Broken bool
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

type downloaderInfo struct {
	Name    string
	Version string
}

type ffmpegInfo struct {
	Binary        string
	Version       string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of the downloader and of the ffmpeg
// used to merge and convert its output
type Skills struct {
	Downloader downloaderInfo
	Extractors []Extractor
	FFmpeg     ffmpegInfo
}

// CanMerge reports whether separate video and audio streams can be muxed
func (s Skills) CanMerge() bool {
	return s.FFmpeg.Version != ""
}

var (
	reDownloaderVersion = regexp.MustCompile(`^\s*([0-9]{4}\.[0-9]{2}\.[0-9]{2}(?:\.[0-9]+)?|[0-9]+\.[0-9]+(?:\.[0-9]+)?)\s*$`)
	reFFmpegVersion     = regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reConfiguration     = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary           = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
)

// New probes the downloader binary and, when ffmpeg is non-empty, the ffmpeg
// binary. A missing ffmpeg is not an error; downloads then stay unmerged.
func New(binary, ffmpeg string) (Skills, error) {
	s := Skills{}

	d, err := getDownloaderVersion(binary)
	if d.Version == "" || err != nil {
		if err != nil {
			return Skills{}, fmt.Errorf("can't parse downloader version: %w", err)
		}
		return Skills{}, fmt.Errorf("can't parse downloader version")
	}
	s.Downloader = d
	s.Extractors = getExtractors(binary)

	if ffmpeg != "" {
		s.FFmpeg = getFFmpeg(ffmpeg)
	}
	return s, nil
}

func getDownloaderVersion(binary string) (downloaderInfo, error) {
	out, err := exec.Command(binary, "--version").Output()
	if err != nil {
		return downloaderInfo{}, err
	}
	return parseDownloaderVersion(filepath.Base(binary), out), nil
}

func parseDownloaderVersion(name string, data []byte) downloaderInfo {
	d := downloaderInfo{Name: strings.TrimSuffix(name, filepath.Ext(name))}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := reDownloaderVersion.FindStringSubmatch(scanner.Text()); m != nil {
			d.Version = m[1]
			break
		}
	}
	return d
}

func getExtractors(binary string) []Extractor {
	stdout, _ := exec.Command(binary, "--list-extractors").Output()
	return parseExtractors(stdout)
}

func parseExtractors(data []byte) []Extractor {
	var extractors []Extractor
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e := Extractor{Id: line}
		if id, ok := strings.CutSuffix(line, "(CURRENTLY BROKEN)"); ok {
			e.Id = strings.TrimSpace(id)
			e.Broken = true
		}
		extractors = append(extractors, e)
	}
	return extractors
}

func getFFmpeg(binary string) ffmpegInfo {
	path, err := exec.LookPath(binary)
	if err != nil {
		return ffmpegInfo{}
	}
	out, err := exec.Command(path, "-version").CombinedOutput()
	if err != nil {
		return ffmpegInfo{}
	}
	f := parseFFmpegVersion(out)
	f.Binary = path
	return f
}

func parseFFmpegVersion(data []byte) ffmpegInfo {
	f := ffmpegInfo{}
	if m := reFFmpegVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}
