// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultBind        = ":8080"
	defaultBinary      = "yt-dlp"
	defaultMaxLogLines = 100
	defaultMaxEvents   = 500
	defaultLogLevel    = "info"
	defaultLogFormat   = "json"
)

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Ytdl   YtdlConfig   `yaml:"ytdl"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// YtdlConfig 下载器配置
type YtdlConfig struct {
	Path        string   `yaml:"path"`
	FFmpeg      string   `yaml:"ffmpeg"`
	MaxLogLines int      `yaml:"max_log_lines"`
	MaxEvents   int      `yaml:"max_events"`
	Allow       []string `yaml:"allow"`
	Block       []string `yaml:"block"`
	OutputAllow []string `yaml:"output_allow"`
	OutputBlock []string `yaml:"output_block"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: defaultBind},
		Ytdl: YtdlConfig{
			Path:        defaultBinary,
			MaxLogLines: defaultMaxLogLines,
			MaxEvents:   defaultMaxEvents,
		},
		Log: LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fillDefaults()
	return cfg, nil
}

// 填充空值
func (c *Config) fillDefaults() {
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Ytdl.Path == "" {
		c.Ytdl.Path = defaultBinary
	}
	if c.Ytdl.MaxLogLines <= 0 {
		c.Ytdl.MaxLogLines = defaultMaxLogLines
	}
	if c.Ytdl.MaxEvents <= 0 {
		c.Ytdl.MaxEvents = defaultMaxEvents
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
}
