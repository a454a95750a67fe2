// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// 数值格式：1.13MiB / 330.59KiB/s / 00:03
const (
	sizePattern  = `\d+(?:\.\d+)?[KMGTPEZY]?i?B`
	speedPattern = sizePattern + `/s`
	etaPattern   = `\d+(?::\d{2})+`
)

var re = struct {
	tag        *regexp.Regexp
	playlist   *regexp.Regexp
	dest       *regexp.Regexp
	progress   *regexp.Regexp
	completion *regexp.Regexp
	already    *regexp.Regexp
	abort      *regexp.Regexp
	fragment   *regexp.Regexp
	postTag    *regexp.Regexp
	merging    *regexp.Regexp
	postDest   *regexp.Regexp
	quoted     *regexp.Regexp
}{
	tag:      regexp.MustCompile(`^\[([^\]\s]+)\]`),
	playlist: regexp.MustCompile(`^\[download\] Downloading (?:video|item) (\d+) of (\d+)$`),
	dest:     regexp.MustCompile(`^\[download\] Destination: (.+)$`),
	progress: regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?%)\s+of\s+~?\s*(` + sizePattern + `)` +
		`\s+at\s+(?:(Unknown)(?:\s+speed|\s+B/s)?|(` + speedPattern + `))` +
		`\s+ETA\s+(?:(Unknown|--:--)(?:\s+ETA)?|(` + etaPattern + `))(?:\s|$)`),
	completion: regexp.MustCompile(`^\[download\]\s+100%\s+of\s+~?\s*(` + sizePattern + `)(?:\s|$)`),
	already:    regexp.MustCompile(`^\[download\] (.+?) has already been downloaded(?: and merged)?$`),
	abort:      regexp.MustCompile(`^\[download\] File is larger than max-filesize\b.*Aborting\.$`),
	fragment:   regexp.MustCompile(`^\[(?:hlsnative|dashsegments)\] .*?\b(\d+) (?:of|/) (\d+)$`),
	postTag: regexp.MustCompile(`^(?:ffmpeg|avconv|Merger|ExtractAudio|VideoConvertor|VideoRemuxer|` +
		`Embed\w*|Fixup\w*|Metadata|ModifyChapters|SplitChapters|MoveFiles|` +
		`ThumbnailsConvertor|SubtitlesConvertor|Exec|XAttrMetadata)$`),
	merging:  regexp.MustCompile(`Merging formats into "(.+)"$`),
	postDest: regexp.MustCompile(`Destination: (.+)$`),
	quoted:   regexp.MustCompile(`"([^"]+)"`),
}

// tags that never mean metadata work
var reservedTags = map[string]bool{
	"download":     true,
	"debug":        true,
	"hlsnative":    true,
	"dashsegments": true,
}

// matcher recognises one line shape. ok is false when the shape does not
// apply; a shape that applies but is malformed returns (nil, true) so no
// later matcher reinterprets it.
type matcher func(line string) (e Event, ok bool)

// matchers in priority order, first match wins
var matchers = []matcher{
	matchPreProcessing,
	matchPlaylist,
	matchDestination,
	matchProgress,
	matchCompletion,
	matchAlreadyDownloaded,
	matchFilesizeAbort,
	matchFragment,
	matchDownloadNotice,
	matchPostProcessing,
}

// Extract classifies a single downloader output line. It never fails:
// blank, unknown or partially matching lines return nil.
func Extract(line string) Event {
	line = clean(line)
	if line == "" {
		return nil
	}
	for _, m := range matchers {
		if e, ok := m(line); ok {
			return e
		}
	}
	return nil
}

func clean(line string) string {
	line = strings.TrimRight(line, "\r\n")
	// progress redraws arrive as "\r[download] ..."
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

func lineTag(line string) string {
	m := re.tag.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

func matchPreProcessing(line string) (Event, bool) {
	tag := lineTag(line)
	if tag == "" || reservedTags[tag] || re.postTag.MatchString(tag) {
		return nil, false
	}
	return PreProcessing{}, true
}

func matchPlaylist(line string) (Event, bool) {
	m := re.playlist.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	index, err1 := strconv.Atoi(m[1])
	size, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || index < 1 || index > size {
		return nil, true
	}
	return PlaylistMarker{Index: strconv.Itoa(index), Size: strconv.Itoa(size)}, true
}

func matchDestination(line string) (Event, bool) {
	m := re.dest.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	t, ok := splitTarget(m[1])
	if !ok {
		return nil, true
	}
	return Destination{Target: t}, true
}

func matchProgress(line string) (Event, bool) {
	m := re.progress.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	p := Progress{Percent: m[1], Filesize: m[2], Speed: m[4], ETA: m[6]}
	if m[3] != "" {
		p.Speed = SpeedUnknown
	}
	if m[5] != "" {
		p.ETA = ETAUnknown
	}
	return p, true
}

func matchCompletion(line string) (Event, bool) {
	m := re.completion.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	return Completion{Filesize: m[1]}, true
}

func matchAlreadyDownloaded(line string) (Event, bool) {
	m := re.already.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	t, ok := splitTarget(m[1])
	if !ok {
		return nil, true
	}
	return AlreadyDownloaded{Target: t}, true
}

func matchFilesizeAbort(line string) (Event, bool) {
	if !re.abort.MatchString(line) {
		return nil, false
	}
	return FilesizeAbort{}, true
}

func matchFragment(line string) (Event, bool) {
	m := re.fragment.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	current, err1 := strconv.Atoi(m[1])
	total, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || total == 0 || current > total {
		return nil, true
	}
	return FragmentProgress{
		Percent: fmt.Sprintf("%.1f%%", float64(current)/float64(total)*100),
	}, true
}

func matchDownloadNotice(line string) (Event, bool) {
	switch lineTag(line) {
	case "download":
		// a progress line we could not read is dropped, not downgraded
		if strings.Contains(line, "%") {
			return nil, true
		}
		return DownloadNotice{}, true
	case "hlsnative", "dashsegments":
		return DownloadNotice{}, true
	}
	return nil, false
}

func matchPostProcessing(line string) (Event, bool) {
	tag := lineTag(line)
	if tag == "" || !re.postTag.MatchString(tag) {
		return nil, false
	}
	rest := strings.TrimSpace(line[len(tag)+2:])

	var target string
	if mm := re.merging.FindStringSubmatch(rest); mm != nil {
		target = mm[1]
	} else if mm := re.postDest.FindStringSubmatch(rest); mm != nil {
		target = strings.Trim(mm[1], `"`)
	} else if all := re.quoted.FindAllStringSubmatch(rest, -1); len(all) > 0 {
		target = all[len(all)-1][1]
	}
	if target == "" {
		return nil, true
	}

	t, ok := splitTarget(target)
	if !ok {
		return nil, true
	}
	return PostProcessing{Target: t}, true
}

// splitTarget splits a path into directory, stem and extension. Both
// separators are accepted since the downloader may run on another OS.
func splitTarget(p string) (Target, bool) {
	p = strings.TrimSpace(p)
	dir, name := "", p
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		dir, name = p[:i], p[i+1:]
		if dir == "" {
			dir = p[:i+1]
		}
	}

	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return Target{}, false
	}
	return Target{Path: dir, Filename: name[:dot], Extension: name[dot:]}, true
}
