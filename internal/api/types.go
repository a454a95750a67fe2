// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package api

// DownloadConfigLimits for API
type DownloadConfigLimits struct {
	CPU     float64 `json:"cpu_usage"`
	Memory  uint64  `json:"memory_mbytes"`
	WaitFor uint64  `json:"waitfor_seconds"`
}

// DownloadConfigRequest for Add/Update
type DownloadConfigRequest struct {
	ID             string               `json:"id"`
	Reference      string               `json:"reference"`
	URL            string               `json:"url" binding:"required"`
	OutputDir      string               `json:"output_dir"`
	OutputTemplate string               `json:"output_template"`
	Format         string               `json:"format"`
	RateLimit      string               `json:"rate_limit"`
	PlaylistStart  uint64               `json:"playlist_start"`
	PlaylistEnd    uint64               `json:"playlist_end"`
	Options        []string             `json:"options"`
	Reconnect      bool                 `json:"reconnect"`
	ReconnectDelay uint64               `json:"reconnect_delay_seconds"`
	Autostart      bool                 `json:"autostart"`
	StaleTimeout   uint64               `json:"stale_timeout_seconds"`
	Limits         DownloadConfigLimits `json:"limits"`
}

// Download represents a task in API response
type Download struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Reference string          `json:"reference"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
	Config    *DownloadConfig `json:"config,omitempty"`
	State     *DownloadState  `json:"state,omitempty"`
	Report    *DownloadReport `json:"report,omitempty"`
}

// DownloadConfig in API format
type DownloadConfig struct {
	ID             string               `json:"id"`
	Type           string               `json:"type"`
	Reference      string               `json:"reference"`
	URL            string               `json:"url"`
	OutputDir      string               `json:"output_dir"`
	OutputTemplate string               `json:"output_template"`
	Format         string               `json:"format"`
	RateLimit      string               `json:"rate_limit"`
	PlaylistStart  uint64               `json:"playlist_start"`
	PlaylistEnd    uint64               `json:"playlist_end"`
	Options        []string             `json:"options"`
	Reconnect      bool                 `json:"reconnect"`
	ReconnectDelay uint64               `json:"reconnect_delay_seconds"`
	Autostart      bool                 `json:"autostart"`
	StaleTimeout   uint64               `json:"stale_timeout_seconds"`
	Limits         DownloadConfigLimits `json:"limits"`
}

// DownloadState for API
type DownloadState struct {
	Order     string    `json:"order"`
	State     string    `json:"exec"`
	Runtime   int64     `json:"runtime_seconds"`
	Reconnect int64     `json:"reconnect_seconds"`
	ExitCode  int       `json:"exit_code"`
	LastLog   string    `json:"last_logline"`
	Progress  *Progress `json:"progress"`
	Memory    uint64    `json:"memory_bytes"`
	CPU       float64   `json:"cpu_usage"`
	Command   []string  `json:"command"`
}

// Progress from the downloader output
type Progress struct {
	Phase         string `json:"phase"`
	Path          string `json:"path"`
	Filename      string `json:"filename"`
	Extension     string `json:"extension"`
	Percent       string `json:"percent"`
	Filesize      string `json:"filesize"`
	Speed         string `json:"speed"`
	ETA           string `json:"eta"`
	PlaylistIndex int    `json:"playlist_index"`
	PlaylistSize  int    `json:"playlist_size"`
	Streams       uint64 `json:"streams"`
	Completed     uint64 `json:"completed"`
	Output        string `json:"output"`
	LastError     string `json:"last_error,omitempty"`
}

// DownloadReport for logs
type DownloadReport struct {
	CreatedAt int64       `json:"created_at"`
	Prelude   []string    `json:"prelude"`
	Log       [][2]string `json:"log"`
}

// EventRecord is one classified line with the time it was read
type EventRecord struct {
	Time  string            `json:"time"`
	Event map[string]string `json:"event"`
}

// ExtractRequest carries raw downloader lines to classify
type ExtractRequest struct {
	Lines []string `json:"lines" binding:"required"`
}

// ExtractResponse has one entry per request line; {} for lines without an event
type ExtractResponse struct {
	Events   []map[string]string `json:"events"`
	Playlist *PlaylistPosition   `json:"playlist,omitempty"`
}

// PlaylistPosition is the last playlist marker seen
type PlaylistPosition struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// CommandRequest for start/stop/restart
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
