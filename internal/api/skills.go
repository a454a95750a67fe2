// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package api

import (
	"github.com/ZSC714725/ytdlmanager/internal/ytdl/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	Downloader struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"downloader"`

	Extractors []SkillsExtractor `json:"extractors"`

	FFmpeg struct {
		Binary        string          `json:"binary"`
		Version       string          `json:"version"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	CanMerge bool `json:"can_merge"`
}

type SkillsExtractor struct {
	ID     string `json:"id"`
	Broken bool   `json:"broken"`
}

type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{CanMerge: s.CanMerge()}

	resp.Downloader.Name = s.Downloader.Name
	resp.Downloader.Version = s.Downloader.Version

	resp.Extractors = make([]SkillsExtractor, len(s.Extractors))
	for i, e := range s.Extractors {
		resp.Extractors[i] = SkillsExtractor{ID: e.Id, Broken: e.Broken}
	}

	resp.FFmpeg.Binary = s.FFmpeg.Binary
	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{Name: lib.Name, Compiled: lib.Compiled, Linked: lib.Linked}
	}

	return resp
}
