// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/ytdlmanager/internal/task"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl/parse"
)

const (
	downloadType = "yt-dlp"
	timeFormat   = "2006-01-02 15:04:05.000"
)

// Handler holds dependencies
type Handler struct {
	store task.Store
	ytdl  ytdl.Downloader
}

// NewHandler creates API handler
func NewHandler(store task.Store, dl ytdl.Downloader) *Handler {
	return &Handler{store: store, ytdl: dl}
}

// Register mounts the API routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/skills", h.Skills)
	r.POST("/skills/reload", h.ReloadSkills)

	r.POST("/extract", h.Extract)

	r.GET("/download", h.ListDownloads)
	r.POST("/download", h.AddDownload)
	r.GET("/download/:id", h.GetDownload)
	r.PUT("/download/:id", h.UpdateDownload)
	r.DELETE("/download/:id", h.DeleteDownload)
	r.GET("/download/:id/config", h.GetConfig)
	r.GET("/download/:id/state", h.GetState)
	r.GET("/download/:id/report", h.GetReport)
	r.GET("/download/:id/events", h.GetEvents)
	r.PUT("/download/:id/command", h.Command)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

func storeErrResp(c *gin.Context, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		errResp(c, http.StatusNotFound, "Unknown download ID", err.Error())
	case errors.Is(err, task.ErrTaskExists):
		errResp(c, http.StatusBadRequest, "Download exists", err.Error())
	case errors.Is(err, task.ErrInvalidURL):
		errResp(c, http.StatusBadRequest, "Invalid URL", err.Error())
	case errors.Is(err, task.ErrInvalidOutput):
		errResp(c, http.StatusBadRequest, "Invalid output", err.Error())
	case errors.Is(err, task.ErrInvalidOption):
		errResp(c, http.StatusBadRequest, "Invalid option", err.Error())
	default:
		errResp(c, http.StatusBadRequest, "Invalid config", err.Error())
	}
}

// AddDownload POST /api/v3/download
func (h *Handler) AddDownload(c *gin.Context) {
	var req DownloadConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	// Autostart 由前端请求决定，默认不自动启动
	t, err := h.store.Add(requestToConfig(&req))
	if err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, taskToDownloadConfig(t))
}

// ListDownloads GET /api/v3/download
func (h *Handler) ListDownloads(c *gin.Context) {
	filter := c.DefaultQuery("filter", "")
	reference := c.DefaultQuery("reference", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	tasks := h.store.List(ids, reference)
	downloads := make([]Download, 0, len(tasks))
	for _, t := range tasks {
		downloads = append(downloads, taskToDownload(t, filter))
	}

	c.JSON(http.StatusOK, downloads)
}

// GetDownload GET /api/v3/download/:id
func (h *Handler) GetDownload(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, taskToDownload(t, c.DefaultQuery("filter", "")))
}

// DeleteDownload DELETE /api/v3/download/:id
func (h *Handler) DeleteDownload(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// UpdateDownload PUT /api/v3/download/:id
func (h *Handler) UpdateDownload(c *gin.Context) {
	id := c.Param("id")

	var req DownloadConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	cfg := requestToConfig(&req)
	cfg.ID = id

	t, err := h.store.Update(id, cfg)
	if err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, taskToDownloadConfig(t))
}

// GetConfig GET /api/v3/download/:id/config
func (h *Handler) GetConfig(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, taskToDownloadConfig(t))
}

// GetState GET /api/v3/download/:id/state
func (h *Handler) GetState(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, taskToState(t))
}

// GetReport GET /api/v3/download/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErrResp(c, err)
		return
	}

	c.JSON(http.StatusOK, taskToReport(t, func(ts time.Time) string { return ts.Format(timeFormat) }))
}

// GetEvents GET /api/v3/download/:id/events
//
// Optional query "since" (RFC 3339) returns only newer events.
func (h *Handler) GetEvents(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErrResp(c, err)
		return
	}

	var since time.Time
	if s := c.Query("since"); s != "" {
		since, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			errResp(c, http.StatusBadRequest, "Invalid since", err.Error())
			return
		}
	}

	records := t.Events()
	out := make([]EventRecord, 0, len(records))
	for _, r := range records {
		if !since.IsZero() && !r.Timestamp.After(since) {
			continue
		}
		out = append(out, EventRecord{
			Time:  r.Timestamp.Format(time.RFC3339Nano),
			Event: parse.Fields(r.Event),
		})
	}

	c.JSON(http.StatusOK, out)
}

// Extract POST /api/v3/extract
//
// Classifies the posted lines in order with a fresh session.
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	session := parse.NewSession()
	resp := ExtractResponse{Events: make([]map[string]string, len(req.Lines))}
	for i, line := range req.Lines {
		resp.Events[i] = parse.Fields(session.Extract(line))
	}
	if index, size, ok := session.Playlist(); ok {
		resp.Playlist = &PlaylistPosition{Index: index, Size: size}
	}

	c.JSON(http.StatusOK, resp)
}

// Command PUT /api/v3/download/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var err error
	switch req.Command {
	case "start":
		err = h.store.Start(id)
	case "stop":
		err = h.store.Stop(id)
	case "restart":
		err = h.store.Restart(id)
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: start, stop, restart")
		return
	}

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			storeErrResp(c, err)
			return
		}
		errResp(c, http.StatusBadRequest, "Command failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Skills GET /api/v3/skills
func (h *Handler) Skills(c *gin.Context) {
	c.JSON(http.StatusOK, skillsToAPI(h.ytdl.Skills()))
}

// ReloadSkills POST /api/v3/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if err := h.ytdl.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ytdl.Skills()))
}

func requestToConfig(req *DownloadConfigRequest) *task.Config {
	return &task.Config{
		ID:             req.ID,
		Reference:      req.Reference,
		URL:            req.URL,
		OutputDir:      req.OutputDir,
		OutputTemplate: req.OutputTemplate,
		Format:         req.Format,
		RateLimit:      req.RateLimit,
		PlaylistStart:  req.PlaylistStart,
		PlaylistEnd:    req.PlaylistEnd,
		Options:        req.Options,
		Reconnect:      req.Reconnect,
		ReconnectDelay: req.ReconnectDelay,
		Autostart:      req.Autostart,
		StaleTimeout:   req.StaleTimeout,
		LimitCPU:       req.Limits.CPU,
		LimitMemory:    req.Limits.Memory * 1024 * 1024,
		LimitWaitFor:   req.Limits.WaitFor,
	}
}

func taskToDownloadConfig(t *task.Task) *DownloadConfig {
	return &DownloadConfig{
		ID:             t.ID,
		Type:           downloadType,
		Reference:      t.Reference,
		URL:            t.Config.URL,
		OutputDir:      t.Config.OutputDir,
		OutputTemplate: t.Config.OutputTemplate,
		Format:         t.Config.Format,
		RateLimit:      t.Config.RateLimit,
		PlaylistStart:  t.Config.PlaylistStart,
		PlaylistEnd:    t.Config.PlaylistEnd,
		Options:        t.Config.Options,
		Reconnect:      t.Config.Reconnect,
		ReconnectDelay: t.Config.ReconnectDelay,
		Autostart:      t.Config.Autostart,
		StaleTimeout:   t.Config.StaleTimeout,
		Limits: DownloadConfigLimits{
			CPU:     t.Config.LimitCPU,
			Memory:  t.Config.LimitMemory / 1024 / 1024,
			WaitFor: t.Config.LimitWaitFor,
		},
	}
}

func taskToState(t *task.Task) *DownloadState {
	status := t.Status()
	state := &DownloadState{
		Order:     status.Order,
		State:     status.State,
		Runtime:   int64(status.Duration.Seconds()),
		Reconnect: -1,
		ExitCode:  status.ExitCode,
		LastLog:   status.LastLine,
		Memory:    status.Memory.Current,
		CPU:       status.CPU.Current,
		Command:   t.Config.CreateCommand(),
	}

	prog := t.Progress()
	state.Progress = &Progress{
		Phase:         prog.Phase.String(),
		Path:          prog.Path,
		Filename:      prog.Filename,
		Extension:     prog.Extension,
		Percent:       prog.Percent,
		Filesize:      prog.Filesize,
		Speed:         prog.Speed,
		ETA:           prog.ETA,
		PlaylistIndex: prog.PlaylistIndex,
		PlaylistSize:  prog.PlaylistSize,
		Streams:       prog.Streams,
		Completed:     prog.Completed,
		Output:        prog.Output,
		LastError:     prog.LastError,
	}
	return state
}

func taskToReport(t *task.Task, format func(time.Time) string) *DownloadReport {
	lines := t.Log()
	report := &DownloadReport{CreatedAt: t.CreatedAt, Prelude: []string{}}
	report.Log = make([][2]string, len(lines))
	for i, line := range lines {
		report.Log[i] = [2]string{format(line.Timestamp), line.Data}
	}
	return report
}

func taskToDownload(t *task.Task, filter string) Download {
	d := Download{
		ID:        t.ID,
		Type:      downloadType,
		Reference: t.Reference,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}

	includeAll := filter == ""
	if includeAll || strings.Contains(filter, "config") {
		d.Config = taskToDownloadConfig(t)
	}
	if includeAll || strings.Contains(filter, "state") {
		d.State = taskToState(t)
	}
	if includeAll || strings.Contains(filter, "report") {
		d.Report = taskToReport(t, func(ts time.Time) string {
			return strconv.FormatInt(ts.Unix(), 10)
		})
	}

	return d
}
