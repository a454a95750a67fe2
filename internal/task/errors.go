// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package task

import "errors"

var (
	ErrNotFound      = errors.New("task not found")
	ErrTaskExists    = errors.New("task already exists")
	ErrInvalidConfig = errors.New("invalid config: need a url")
	ErrInvalidURL    = errors.New("invalid url")
	ErrInvalidOutput = errors.New("invalid output path")
	ErrInvalidRange  = errors.New("invalid playlist range")
	ErrInvalidOption = errors.New("option not allowed")
)
