// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package skills

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ffmpegVersion = `ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers
built with gcc 13 (Ubuntu 13.2.0-23ubuntu3)
configuration: --prefix=/usr --enable-gpl --enable-libx264
libavutil      58. 29.100 / 58. 29.100
libavcodec     60. 31.102 / 60. 31.102
libavformat    60. 16.100 / 60. 16.100
`

func TestParseDownloaderVersion(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		version string
	}{
		{"yt-dlp", "2024.08.06\n", "2024.08.06"},
		{"yt-dlp", "2023.11.16.1\n", "2023.11.16.1"},
		{"youtube-dl.exe", "2021.12.17\r\n", "2021.12.17"},
		{"yt-dlp", "WARNING: something\n2024.08.06\n", "2024.08.06"},
		{"yt-dlp", "not a version\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			d := parseDownloaderVersion(tt.name, []byte(tt.data))
			assert.Equal(t, tt.version, d.Version)
		})
	}

	assert.Equal(t, "youtube-dl", parseDownloaderVersion("youtube-dl.exe", nil).Name)
}

func TestParseExtractors(t *testing.T) {
	data := "youtube\n  youtube:playlist\n\nniconico (CURRENTLY BROKEN)\npicta\n"
	assert.Equal(t, []Extractor{
		{Id: "youtube"},
		{Id: "youtube:playlist"},
		{Id: "niconico", Broken: true},
		{Id: "picta"},
	}, parseExtractors([]byte(data)))

	assert.Empty(t, parseExtractors(nil))
}

func TestParseFFmpegVersion(t *testing.T) {
	f := parseFFmpegVersion([]byte(ffmpegVersion))
	assert.Equal(t, "6.1.1", f.Version)
	assert.Equal(t, "--prefix=/usr --enable-gpl --enable-libx264", f.Configuration)
	require.Len(t, f.Libraries, 3)
	assert.Equal(t, Library{Name: "libavutil", Compiled: "58. 29.100", Linked: "58. 29.100"}, f.Libraries[0])

	f = parseFFmpegVersion([]byte("ffmpeg version n7.0 Copyright"))
	assert.Equal(t, "7.0.0", f.Version)

	assert.Empty(t, parseFFmpegVersion([]byte("garbage")).Version)
}

func TestCanMerge(t *testing.T) {
	assert.False(t, Skills{}.CanMerge())
	assert.True(t, Skills{FFmpeg: ffmpegInfo{Version: "6.1.1"}}.CanMerge())
}

func TestNew(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}

	dir := t.TempDir()
	ytdl := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.WriteFile(ytdl, []byte(`#!/bin/sh
case "$1" in
  --version) echo 2024.08.06 ;;
  --list-extractors) printf 'youtube\nniconico (CURRENTLY BROKEN)\n' ;;
esac
`), 0o755))
	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte("#!/bin/sh\ncat <<'EOF'\n"+ffmpegVersion+"EOF\n"), 0o755))

	s, err := New(ytdl, "")
	require.NoError(t, err)
	assert.Equal(t, "yt-dlp", s.Downloader.Name)
	assert.Equal(t, "2024.08.06", s.Downloader.Version)
	assert.Len(t, s.Extractors, 2)
	assert.False(t, s.CanMerge())

	s, err = New(ytdl, ffmpeg)
	require.NoError(t, err)
	assert.True(t, s.CanMerge())
	assert.Equal(t, ffmpeg, s.FFmpeg.Binary)

	// a missing ffmpeg only disables merging
	s, err = New(ytdl, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, s.CanMerge())

	_, err = New(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}
