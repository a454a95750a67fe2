// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package process

import "time"

// Parser consumes process output one line at a time, in the order the
// process wrote it. Parse returns non-zero when the line showed progress,
// which keeps the stale timeout from firing.
type Parser interface {
	Parse(line string) uint64
	ResetStats()
	ResetLog()
	Log() []Line
}

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}
