// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package process

import "time"

// Limiter samples CPU/memory usage of a running process and reports when
// the configured limits are exceeded.
type Limiter interface {
	Start(pid int) error
	Stop()
	Current() (cpu float64, memory uint64)
	Limits() (cpu float64, memory uint64)
}

// LimiterConfig configures a Limiter. Zero limits are not enforced.
type LimiterConfig struct {
	CPU        float64 // percent, 100 = one core
	Memory     uint64  // bytes RSS
	WaitFor    time.Duration
	Interval   time.Duration
	OnExceeded func(cpu float64, memory uint64)
}
