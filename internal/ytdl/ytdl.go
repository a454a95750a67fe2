// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package ytdl

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ZSC714725/ytdlmanager/internal/logger"
	"github.com/ZSC714725/ytdlmanager/internal/metrics"
	"github.com/ZSC714725/ytdlmanager/internal/process"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl/parse"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl/skills"
)

// Downloader manages the downloader binary and its skills
type Downloader interface {
	New(config ProcessConfig) (process.Process, error)
	NewParser(log logger.Logger, id string, onEvent func(parse.Event)) parse.Parser
	ValidateURL(address string) bool
	ValidateOutput(path string) bool
	Skills() skills.Skills
	ReloadSkills() error
}

// ProcessConfig for creating a process
type ProcessConfig struct {
	Reconnect      bool
	ReconnectDelay time.Duration
	StaleTimeout   time.Duration
	LimitCPU       float64
	LimitMemory    uint64
	LimitWaitFor   time.Duration
	Command        []string
	Dir            string
	Parser         process.Parser
	Logger         logger.Logger
	OnExit         func(state string)
	OnStart        func()
	OnStateChange  func(from, to string)
}

// Config for the Downloader
type Config struct {
	Binary          string
	FFmpeg          string
	MaxLogLines     int
	MaxEvents       int
	ValidatorURL    Validator
	ValidatorOutput Validator
}

type downloader struct {
	binary       string
	ffmpeg       string
	validatorURL Validator
	validatorOut Validator
	skills       skills.Skills
	logLines     int
	maxEvents    int
	skillsLock   sync.RWMutex
}

// New creates a Downloader. The binary must be runnable.
func New(config Config) (Downloader, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid downloader binary: %w", err)
	}

	d := &downloader{
		binary:    binary,
		ffmpeg:    config.FFmpeg,
		logLines:  config.MaxLogLines,
		maxEvents: config.MaxEvents,
	}

	if config.ValidatorURL != nil {
		d.validatorURL = config.ValidatorURL
	} else {
		d.validatorURL, _ = NewURLValidator(nil, nil)
	}
	if config.ValidatorOutput != nil {
		d.validatorOut = config.ValidatorOutput
	} else {
		d.validatorOut, _ = NewValidator(nil, nil)
	}

	s, err := skills.New(d.binary, d.ffmpeg)
	if err != nil {
		return nil, fmt.Errorf("invalid downloader: %w", err)
	}
	d.skills = s

	return d, nil
}

func (d *downloader) New(config ProcessConfig) (process.Process, error) {
	args := config.Command
	if d.ffmpeg != "" {
		args = append([]string{"--ffmpeg-location", d.ffmpeg}, args...)
	}

	onStateChange := config.OnStateChange
	return process.New(process.Config{
		Binary:         d.binary,
		Args:           args,
		Dir:            config.Dir,
		Reconnect:      config.Reconnect,
		ReconnectDelay: config.ReconnectDelay,
		StaleTimeout:   config.StaleTimeout,
		LimitCPU:       config.LimitCPU,
		LimitMemory:    config.LimitMemory,
		LimitWaitFor:   config.LimitWaitFor,
		Parser:         config.Parser,
		Logger:         wrapLogger(config.Logger),
		OnStart:        config.OnStart,
		OnExit:         config.OnExit,
		OnStateChange: func(from, to string) {
			metrics.ProcessStateTotal.WithLabelValues(to).Inc()
			if onStateChange != nil {
				onStateChange(from, to)
			}
		},
	})
}

func (d *downloader) NewParser(log logger.Logger, id string, onEvent func(parse.Event)) parse.Parser {
	return parse.New(parse.Config{
		ID:        id,
		LogLines:  d.logLines,
		MaxEvents: d.maxEvents,
		Logger:    log,
		OnEvent:   onEvent,
	})
}

func (d *downloader) ValidateURL(address string) bool {
	return d.validatorURL.IsValid(address)
}

func (d *downloader) ValidateOutput(path string) bool {
	return d.validatorOut.IsValid(path)
}

func (d *downloader) Skills() skills.Skills {
	d.skillsLock.RLock()
	defer d.skillsLock.RUnlock()
	return d.skills
}

func (d *downloader) ReloadSkills() error {
	s, err := skills.New(d.binary, d.ffmpeg)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	d.skillsLock.Lock()
	d.skills = s
	d.skillsLock.Unlock()
	return nil
}

func wrapLogger(l logger.Logger) process.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}
