// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package process

import (
	"sync"
	"time"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// sysLimiter 使用 gopsutil 周期采集进程 CPU 和内存，超限持续 WaitFor 后回调
type sysLimiter struct {
	config LimiterConfig

	mu       sync.RWMutex
	proc     *gopsutilprocess.Process
	cpu      float64
	memory   uint64
	exceeded time.Time
	done     chan struct{}
}

// NewSysLimiter creates a limiter backed by gopsutil
func NewSysLimiter(config LimiterConfig) Limiter {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &sysLimiter{config: config}
}

func (l *sysLimiter) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		close(l.done)
	}
	l.proc = proc
	l.cpu, l.memory = 0, 0
	l.exceeded = time.Time{}
	l.done = make(chan struct{})

	go l.sample(proc, l.done)
	return nil
}

func (l *sysLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		close(l.done)
		l.done = nil
	}
	l.proc = nil
}

func (l *sysLimiter) sample(proc *gopsutilprocess.Process, done <-chan struct{}) {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			var cpu float64
			var memory uint64
			if pct, err := proc.Percent(0); err == nil {
				cpu = pct
			}
			if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
				memory = memInfo.RSS
			}

			if l.update(now, cpu, memory) && l.config.OnExceeded != nil {
				l.config.OnExceeded(cpu, memory)
				return
			}
		}
	}
}

// update stores a sample and reports whether the limits have been exceeded
// for longer than WaitFor
func (l *sysLimiter) update(now time.Time, cpu float64, memory uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cpu, l.memory = cpu, memory

	over := (l.config.CPU > 0 && cpu > l.config.CPU) ||
		(l.config.Memory > 0 && memory > l.config.Memory)
	if !over {
		l.exceeded = time.Time{}
		return false
	}
	if l.exceeded.IsZero() {
		l.exceeded = now
	}
	return now.Sub(l.exceeded) >= l.config.WaitFor
}

func (l *sysLimiter) Current() (cpu float64, memory uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.proc == nil {
		return 0, 0
	}
	return l.cpu, l.memory
}

func (l *sysLimiter) Limits() (float64, uint64) {
	return l.config.CPU, l.config.Memory
}
