// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package task

import (
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultOutputTemplate names files after title and id
const DefaultOutputTemplate = "%(title)s-%(id)s.%(ext)s"

// Config for a download task
type Config struct {
	ID             string   `json:"id"`
	Reference      string   `json:"reference"`
	URL            string   `json:"url"`
	OutputDir      string   `json:"output_dir"`
	OutputTemplate string   `json:"output_template"`
	Format         string   `json:"format"`
	RateLimit      string   `json:"rate_limit"`
	PlaylistStart  uint64   `json:"playlist_start"`
	PlaylistEnd    uint64   `json:"playlist_end"`
	Options        []string `json:"options"`
	Reconnect      bool     `json:"reconnect"`
	ReconnectDelay uint64   `json:"reconnect_delay_seconds"`
	Autostart      bool     `json:"autostart"`
	StaleTimeout   uint64   `json:"stale_timeout_seconds"`
	LimitCPU       float64  `json:"limit_cpu_usage"`
	LimitMemory    uint64   `json:"limit_memory_bytes"`
	LimitWaitFor   uint64   `json:"limit_waitfor_seconds"`
}

// Validate checks the parts of the config that don't depend on the downloader
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrInvalidConfig
	}
	if c.PlaylistEnd > 0 && c.PlaylistStart > c.PlaylistEnd {
		return ErrInvalidRange
	}
	return validateOptions(c.Options)
}

// Output returns the output template including the output directory
func (c *Config) Output() string {
	tmpl := c.OutputTemplate
	if tmpl == "" {
		tmpl = DefaultOutputTemplate
	}
	if c.OutputDir != "" {
		tmpl = filepath.Join(c.OutputDir, tmpl)
	}
	return tmpl
}

// CreateCommand builds downloader args from config
func (c *Config) CreateCommand() []string {
	// --newline: one progress report per line instead of \r redraws
	cmd := []string{"--newline"}
	if c.Format != "" {
		cmd = append(cmd, "-f", c.Format)
	}
	if c.RateLimit != "" {
		cmd = append(cmd, "--limit-rate", c.RateLimit)
	}
	if c.PlaylistStart > 0 {
		cmd = append(cmd, "--playlist-start", strconv.FormatUint(c.PlaylistStart, 10))
	}
	if c.PlaylistEnd > 0 {
		cmd = append(cmd, "--playlist-end", strconv.FormatUint(c.PlaylistEnd, 10))
	}
	cmd = append(cmd, "-o", c.Output())
	cmd = append(cmd, c.Options...)
	cmd = append(cmd, "--", c.URL)
	return cmd
}
