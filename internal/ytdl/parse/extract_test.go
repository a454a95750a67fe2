// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package parse

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadGolden reads testdata/<name>_output.txt and the matching
// <name>_expected.jsonl, one expected object per output line.
func loadGolden(t *testing.T, name string) ([]string, []map[string]string) {
	t.Helper()

	read := func(file string) []string {
		f, err := os.Open(filepath.Join("testdata", file))
		require.NoError(t, err)
		defer f.Close()

		var lines []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		require.NoError(t, scanner.Err())
		return lines
	}

	lines := read(name + "_output.txt")
	var expected []map[string]string
	for _, raw := range read(name + "_expected.jsonl") {
		m := map[string]string{}
		require.NoError(t, json.Unmarshal([]byte(raw), &m), raw)
		expected = append(expected, m)
	}
	require.Len(t, lines, len(expected))
	return lines, expected
}

func TestExtractGolden(t *testing.T) {
	for _, name := range []string{"video", "playlist"} {
		t.Run(name, func(t *testing.T) {
			lines, expected := loadGolden(t, name)
			s := NewSession()
			got := make([]map[string]string, len(lines))
			for i, line := range lines {
				got[i] = Fields(s.Extract(line))
			}
			if diff := cmp.Diff(expected, got); diff != "" {
				t.Errorf("%s_output.txt mismatch (-want +got):\n%s", name, diff)
			}
		})
	}
}

func TestExtractVideoSequence(t *testing.T) {
	lines, _ := loadGolden(t, "video")

	var phases []Phase
	var dest []string
	completed := 0
	for _, line := range lines {
		e := Extract(line)
		if e == nil {
			continue
		}
		phases = append(phases, e.Phase())
		switch e := e.(type) {
		case Destination:
			dest = append(dest, e.Name())
		case Completion:
			completed++
		}
	}

	require.NotEmpty(t, phases)
	assert.Equal(t, PhasePreProcessing, phases[0])
	assert.Equal(t, PhasePostProcessing, phases[len(phases)-1])
	assert.Equal(t, 2, completed)
	assert.Equal(t, []string{
		"Among Us Momentos Divertidos-among-us-momentos-divertidos-2020-09-24-18-28-12-525257.f0.mp4",
		"Among Us Momentos Divertidos-among-us-momentos-divertidos-2020-09-24-18-28-12-525257.f3.m4a",
	}, dest)
}

func TestExtractPlaylistMarkers(t *testing.T) {
	lines, _ := loadGolden(t, "playlist")

	s := NewSession()
	var markers []PlaylistMarker
	for _, line := range lines {
		if m, ok := s.Extract(line).(PlaylistMarker); ok {
			markers = append(markers, m)
			index, size, ok := s.Playlist()
			require.True(t, ok)
			assert.Equal(t, m.Index, strconv.Itoa(index))
			assert.Equal(t, m.Size, strconv.Itoa(size))
		}
	}
	assert.Equal(t, []PlaylistMarker{
		{Index: "1", Size: "3"},
		{Index: "2", Size: "3"},
		{Index: "3", Size: "3"},
	}, markers)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{"empty", "", nil},
		{"blank", "   \t ", nil},
		{"untagged", "Deleting original file a.f0.mp4 (pass -k to keep)", nil},
		{"warning", "WARNING: Requested formats are incompatible for merge", nil},
		{"error", "ERROR: Unsupported URL: https://example.com", nil},
		{"debug", "[debug] Command-line config: ['--newline']", nil},

		{"extractor", "[youtube] dQw4w9WgXcQ: Downloading webpage", PreProcessing{}},
		{"generic", "[generic] Extracting URL: https://example.com/v.mp4", PreProcessing{}},
		{"info", "[info] dQw4w9WgXcQ: Downloading 1 format(s): 137+140", PreProcessing{}},
		{"namespaced", "[picta:playlist] 4302: Downloading webpage", PreProcessing{}},

		{"playlist video", "[download] Downloading video 2 of 7", PlaylistMarker{Index: "2", Size: "7"}},
		{"playlist item", "[download] Downloading item 10 of 12", PlaylistMarker{Index: "10", Size: "12"}},
		{"playlist zero", "[download] Downloading video 0 of 3", nil},
		{"playlist overflow", "[download] Downloading video 4 of 3", nil},
		{"playlist notice", "[download] Downloading playlist: Cubadebate", DownloadNotice{}},

		{"destination", "[download] Destination: clip.f137.mp4",
			Destination{Target{Path: "", Filename: "clip.f137", Extension: ".mp4"}}},
		{"destination dir", "[download] Destination: /data/videos/My Clip.webm",
			Destination{Target{Path: "/data/videos", Filename: "My Clip", Extension: ".webm"}}},
		{"destination root", "[download] Destination: /clip.mp4",
			Destination{Target{Path: "/", Filename: "clip", Extension: ".mp4"}}},
		{"destination windows", `[download] Destination: C:\Users\me\clip.mkv`,
			Destination{Target{Path: `C:\Users\me`, Filename: "clip", Extension: ".mkv"}}},
		{"destination without extension", "[download] Destination: clip", nil},
		{"destination dotfile", "[download] Destination: /tmp/.hidden", nil},

		{"progress", "[download]  41.6% of 1.13MiB at 261.50KiB/s ETA 00:02",
			Progress{Percent: "41.6%", Filesize: "1.13MiB", Speed: "261.50KiB/s", ETA: "00:02"}},
		{"progress unknown", "[download]   0.1% of 1.13MiB at Unknown speed ETA Unknown ETA",
			Progress{Percent: "0.1%", Filesize: "1.13MiB", Speed: SpeedUnknown, ETA: ETAUnknown}},
		{"progress estimate", "[download]  12.0% of ~ 50.12MiB at  2.00MiB/s ETA 00:21",
			Progress{Percent: "12.0%", Filesize: "50.12MiB", Speed: "2.00MiB/s", ETA: "00:21"}},
		{"progress dashes", "[download]   5.0% of 10.00MiB at  1.00MiB/s ETA --:--",
			Progress{Percent: "5.0%", Filesize: "10.00MiB", Speed: "1.00MiB/s", ETA: ETAUnknown}},
		{"progress hours", "[download]   1.0% of 2.00GiB at 500.00KiB/s ETA 1:09:48",
			Progress{Percent: "1.0%", Filesize: "2.00GiB", Speed: "500.00KiB/s", ETA: "1:09:48"}},
		{"progress done", "[download] 100.0% of 1.13MiB at 370.95KiB/s ETA 00:00",
			Progress{Percent: "100.0%", Filesize: "1.13MiB", Speed: "370.95KiB/s", ETA: "00:00"}},
		{"progress carriage return", "\r[download]  10.0% of 1.00MiB at 1.00MiB/s ETA 00:01\r\n",
			Progress{Percent: "10.0%", Filesize: "1.00MiB", Speed: "1.00MiB/s", ETA: "00:01"}},
		{"progress truncated", "[download]  10.0% of 1.00MiB at", nil},

		{"completion", "[download] 100% of 1.13MiB in 00:03", Completion{Filesize: "1.13MiB"}},
		{"completion estimate", "[download] 100% of ~569.83KiB in 00:01", Completion{Filesize: "569.83KiB"}},

		{"already", "[download] clip.mp4 has already been downloaded",
			AlreadyDownloaded{Target{Filename: "clip", Extension: ".mp4"}}},
		{"already merged", "[download] /srv/a/clip.mkv has already been downloaded and merged",
			AlreadyDownloaded{Target{Path: "/srv/a", Filename: "clip", Extension: ".mkv"}}},
		{"abort", "[download] File is larger than max-filesize (104857600 bytes > 1048576 bytes). Aborting.",
			FilesizeAbort{}},

		{"fragment", "[hlsnative] Downloading fragment 3 of 12", FragmentProgress{Percent: "25.0%"}},
		{"fragment dash", "[dashsegments] Total fragments: 40", DownloadNotice{}},
		{"fragment invalid", "[hlsnative] Downloading fragment 13 of 12", nil},

		{"merge", `[ffmpeg] Merging formats into "out/clip.mp4"`,
			PostProcessing{Target{Path: "out", Filename: "clip", Extension: ".mp4"}}},
		{"merger", `[Merger] Merging formats into "clip.mkv"`,
			PostProcessing{Target{Filename: "clip", Extension: ".mkv"}}},
		{"extract audio", "[ExtractAudio] Destination: clip.mp3",
			PostProcessing{Target{Filename: "clip", Extension: ".mp3"}}},
		{"fixup", `[FixupM3u8] Fixing MPEG-TS in MP4 container of "clip.mp4"`,
			PostProcessing{Target{Filename: "clip", Extension: ".mp4"}}},
		{"post without target", "[ffmpeg] Correcting container", nil},
		{"post bare", "[ffmpeg]", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.line))
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	lines, _ := loadGolden(t, "playlist")
	for _, line := range lines {
		assert.Equal(t, Extract(line), Extract(line), line)
	}
}

func TestFieldsKeys(t *testing.T) {
	tests := []struct {
		name string
		e    Event
		keys []string
	}{
		{"nil", nil, nil},
		{"pre", PreProcessing{}, []string{KeyPhase}},
		{"marker", PlaylistMarker{Index: "1", Size: "2"}, []string{KeyPhase, KeyPlaylistIndex, KeyPlaylistSize}},
		{"destination", Destination{}, []string{KeyPhase, KeyPath, KeyFilename, KeyExtension}},
		{"progress", Progress{}, []string{KeyPhase, KeyPercent, KeyFilesize, KeySpeed, KeyETA}},
		{"completion", Completion{}, []string{KeyPhase, KeyPercent, KeyFilesize, KeySpeed, KeyETA}},
		{"fragment", FragmentProgress{}, []string{KeyPhase, KeyPercent}},
		{"notice", DownloadNotice{}, []string{KeyPhase}},
		{"post", PostProcessing{}, []string{KeyPhase, KeyPath, KeyFilename, KeyExtension}},
		{"already", AlreadyDownloaded{}, []string{KeyPhase, KeyPath, KeyFilename, KeyExtension}},
		{"abort", FilesizeAbort{}, []string{KeyPhase}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var keys []string
			for k := range Fields(tt.e) {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.keys, keys)
		})
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	data, err = MarshalEvent(Completion{Filesize: "1.13MiB"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"Downloading","percent":"100%","filesize":"1.13MiB","speed":"","eta":""}`, string(data))
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
		ok   bool
	}{
		{"a.mp4", Target{Filename: "a", Extension: ".mp4"}, true},
		{"a.b.c.mp4", Target{Filename: "a.b.c", Extension: ".mp4"}, true},
		{"dir/sub/a.mp4", Target{Path: "dir/sub", Filename: "a", Extension: ".mp4"}, true},
		{`dir\a.mp4`, Target{Path: "dir", Filename: "a", Extension: ".mp4"}, true},
		{"/a.mp4", Target{Path: "/", Filename: "a", Extension: ".mp4"}, true},
		{" a.mp4 ", Target{Filename: "a", Extension: ".mp4"}, true},
		{"a", Target{}, false},
		{"a.", Target{}, false},
		{".a", Target{}, false},
		{"dir.d/a", Target{}, false},
		{"", Target{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := splitTarget(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

var etaShape = regexp.MustCompile(`^\d{2}:\d{2}$`)

func TestExtractFieldShapes(t *testing.T) {
	for _, name := range []string{"video", "playlist"} {
		lines, _ := loadGolden(t, name)
		var prev Event
		for _, line := range lines {
			e := Extract(line)
			switch e := e.(type) {
			case Destination:
				assert.NotEmpty(t, e.Filename, line)
				assert.True(t, strings.HasPrefix(e.Extension, "."), line)
			case Progress:
				assert.True(t, e.Speed == SpeedUnknown || strings.HasSuffix(e.Speed, "/s"), line)
				assert.True(t, e.ETA == ETAUnknown || etaShape.MatchString(e.ETA), line)
			case Completion:
				p, ok := prev.(Progress)
				require.True(t, ok, "completion must follow progress: %q", line)
				assert.Equal(t, PercentDoneOne, p.Percent)
				assert.Equal(t, p.Filesize, e.Filesize)
			}
			if e != nil {
				_, isMarker := e.(PlaylistMarker)
				fields := e.Fields()
				_, hasIndex := fields[KeyPlaylistIndex]
				assert.Equal(t, isMarker, hasIndex, line)
			}
			prev = e
		}
	}
}
