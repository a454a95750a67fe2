// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package parse

import "strconv"

// Session carries the playlist position across the lines of one downloader
// run. The zero value is ready to use. A Session must not be shared between
// goroutines.
type Session struct {
	index int
	size  int
	set   bool
}

// NewSession returns an empty Session
func NewSession() *Session {
	return &Session{}
}

// Extract classifies line like the package level Extract and records the
// position of playlist markers. A nil Session classifies without recording.
func (s *Session) Extract(line string) Event {
	e := Extract(line)
	if m, ok := e.(PlaylistMarker); ok && s != nil {
		// matchPlaylist only emits validated decimal strings
		s.index, _ = strconv.Atoi(m.Index)
		s.size, _ = strconv.Atoi(m.Size)
		s.set = true
	}
	return e
}

// Playlist returns the last seen position; ok is false before any marker
func (s *Session) Playlist() (index, size int, ok bool) {
	if s == nil || !s.set {
		return 0, 0, false
	}
	return s.index, s.size, true
}

// Reset forgets the playlist position
func (s *Session) Reset() {
	if s == nil {
		return
	}
	*s = Session{}
}
