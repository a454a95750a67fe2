// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package parse

import (
	"container/ring"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/ytdlmanager/internal/logger"
	"github.com/ZSC714725/ytdlmanager/internal/metrics"
	"github.com/ZSC714725/ytdlmanager/internal/process"
)

const errorPrefix = "ERROR:"

// Status is the aggregated view of a download, built from the event stream.
// Progress values always belong to the file named by Path/Filename/Extension.
type Status struct {
	Phase         Phase  `json:"phase"`
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
	LastError     string `json:"last_error"`
	Lines         uint64 `json:"lines"`
	Events        uint64 `json:"events"`
}

// Record is an Event with the time its line was read
type Record struct {
	Timestamp time.Time
	Event     Event
}

// Parser implements process.Parser for downloader output
type Parser interface {
	process.Parser
	Status() Status
	Events() []Record
}

type parser struct {
	id      string
	logger  logger.Logger
	onEvent func(Event)

	session *Session

	log      *ring.Ring
	logLines int
	logStart time.Time

	events    []Record
	maxEvents int

	status Status
	lock   sync.RWMutex
}

// Config for the parser
type Config struct {
	ID        string
	LogLines  int
	MaxEvents int
	Logger    logger.Logger
	OnEvent   func(Event)
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		id:        config.ID,
		logger:    config.Logger,
		onEvent:   config.OnEvent,
		session:   NewSession(),
		logLines:  config.LogLines,
		maxEvents: config.MaxEvents,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	if p.maxEvents <= 0 {
		p.maxEvents = 500
	}

	p.log = ring.New(p.logLines)
	p.logStart = time.Now()
	return p
}

// Parse feeds one line. It returns the number of events seen so far when the
// line produced one, 0 otherwise.
func (p *parser) Parse(line string) uint64 {
	now := time.Now()

	p.lock.Lock()
	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()
	p.status.Lines++

	if msg := strings.TrimSpace(line); strings.HasPrefix(msg, errorPrefix) {
		p.status.LastError = strings.TrimSpace(strings.TrimPrefix(msg, errorPrefix))
	}

	e := p.session.Extract(line)
	if e == nil {
		p.lock.Unlock()
		metrics.LinesUnclassified.Inc()
		return 0
	}

	p.apply(e)
	p.status.Events++
	n := p.status.Events

	if len(p.events) >= p.maxEvents {
		p.events = append(p.events[:0], p.events[1:]...)
	}
	p.events = append(p.events, Record{Timestamp: now, Event: e})
	p.lock.Unlock()

	metrics.EventsTotal.WithLabelValues(e.Phase().String()).Inc()
	if p.logger != nil {
		p.logger.Debug("download %s: %s %v", p.id, e.Phase(), e.Fields())
	}
	if p.onEvent != nil {
		p.onEvent(e)
	}
	return n
}

func (p *parser) apply(e Event) {
	s := &p.status
	s.Phase = e.Phase()

	switch e := e.(type) {
	case PlaylistMarker:
		s.PlaylistIndex, s.PlaylistSize, _ = p.session.Playlist()
		p.setTarget(Target{})
		s.Output = ""
	case Destination:
		p.setTarget(e.Target)
		s.Streams++
	case Progress:
		s.Percent, s.Filesize, s.Speed, s.ETA = e.Percent, e.Filesize, e.Speed, e.ETA
	case Completion:
		s.Percent, s.Filesize, s.Speed, s.ETA = PercentDone, e.Filesize, "", ""
		s.Completed++
	case FragmentProgress:
		s.Percent = e.Percent
	case PostProcessing:
		p.setTarget(e.Target)
		s.Output = e.Name()
	case AlreadyDownloaded:
		p.setTarget(e.Target)
		s.Percent = PercentDone
		s.Output = e.Name()
	}
}

// setTarget switches to a new file and clears the previous file's progress
func (p *parser) setTarget(t Target) {
	s := &p.status
	s.Path, s.Filename, s.Extension = t.Path, t.Filename, t.Extension
	s.Percent, s.Filesize, s.Speed, s.ETA = "", "", "", ""
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.status = Status{}
	p.session.Reset()
	p.events = nil
}

func (p *parser) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.log = ring.New(p.logLines)
	p.logStart = time.Now()
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

func (p *parser) Status() Status {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.status
}

func (p *parser) Events() []Record {
	p.lock.RLock()
	defer p.lock.RUnlock()
	out := make([]Record, len(p.events))
	copy(out, p.events)
	return out
}
