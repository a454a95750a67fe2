// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package task

import (
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/ytdlmanager/internal/logger"
	"github.com/ZSC714725/ytdlmanager/internal/metrics"
	"github.com/ZSC714725/ytdlmanager/internal/process"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl/parse"

	"github.com/lithammer/shortuuid/v4"
)

// Task is a download task. Its fields are not modified once the store has
// handed it out; Update swaps in a new Task.
type Task struct {
	ID        string
	Reference string
	Config    *Config
	CreatedAt int64
	UpdatedAt int64

	proc   process.Process
	parser parse.Parser
}

// Status returns process status
func (t *Task) Status() process.Status {
	return t.proc.Status()
}

// Progress returns the download status built from the downloader output
func (t *Task) Progress() parse.Status {
	if t.parser == nil {
		return parse.Status{}
	}
	return t.parser.Status()
}

// Events returns the recent classified output lines, oldest first
func (t *Task) Events() []parse.Record {
	if t.parser == nil {
		return nil
	}
	return t.parser.Events()
}

// Log returns process log lines
func (t *Task) Log() []process.Line {
	if t.parser == nil {
		return nil
	}
	return t.parser.Log()
}

// IsRunning returns whether the process is running
func (t *Task) IsRunning() bool {
	return t.proc.IsRunning()
}

// Store manages tasks in memory
type Store interface {
	Add(config *Config) (*Task, error)
	Get(id string) (*Task, error)
	List(ids []string, reference string) []*Task
	Update(id string, config *Config) (*Task, error)
	Delete(id string) error
	Start(id string) error
	Stop(id string) error
	Restart(id string) error
}

type store struct {
	ytdl   ytdl.Downloader
	logger logger.Logger
	tasks  map[string]*Task
	mu     sync.RWMutex
}

// NewStore creates a task store
func NewStore(dl ytdl.Downloader, log logger.Logger) Store {
	if log == nil {
		log = logger.Nop()
	}
	return &store{
		ytdl:   dl,
		logger: log,
		tasks:  make(map[string]*Task),
	}
}

func (s *store) validate(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if !s.ytdl.ValidateURL(config.URL) {
		return ErrInvalidURL
	}
	if !s.ytdl.ValidateOutput(config.Output()) {
		return ErrInvalidOutput
	}
	return nil
}

// attach creates the parser and process for t from its config
func (s *store) attach(t *Task) error {
	id := t.ID
	config := t.Config

	parser := s.ytdl.NewParser(s.logger, id, nil)

	proc, err := s.ytdl.New(ytdl.ProcessConfig{
		Reconnect:      config.Reconnect,
		ReconnectDelay: time.Duration(config.ReconnectDelay) * time.Second,
		StaleTimeout:   time.Duration(config.StaleTimeout) * time.Second,
		LimitCPU:       config.LimitCPU,
		LimitMemory:    config.LimitMemory,
		LimitWaitFor:   time.Duration(config.LimitWaitFor) * time.Second,
		Command:        config.CreateCommand(),
		Parser:         parser,
		Logger:         s.logger,
		OnStateChange: func(from, to string) {
			s.logger.Info("task %s state %s -> %s", id, from, to)
		},
		OnExit: func(state string) {
			st := parser.Status()
			if st.LastError != "" {
				s.logger.Error("task %s exited %s: %s", id, state, st.LastError)
				return
			}
			s.logger.Info("task %s exited %s: %d file(s) completed, output %q", id, state, st.Completed, st.Output)
		},
	})
	if err != nil {
		return err
	}

	t.proc = proc
	t.parser = parser
	return nil
}

func (s *store) Add(config *Config) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(config.ID) == 0 {
		config.ID = shortuuid.New()
	}
	if err := s.validate(config); err != nil {
		return nil, err
	}

	if _, exists := s.tasks[config.ID]; exists {
		return nil, ErrTaskExists
	}

	now := time.Now().Unix()
	task := &Task{
		ID:        config.ID,
		Reference: config.Reference,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attach(task); err != nil {
		return nil, err
	}

	s.tasks[config.ID] = task
	metrics.Tasks.Set(float64(len(s.tasks)))

	if config.Autostart {
		go task.proc.Start()
	}

	return task, nil
}

func (s *store) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns matching tasks ordered by creation time
func (s *store) List(ids []string, reference string) []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var out []*Task
	for _, t := range s.tasks {
		if len(reference) > 0 && t.Reference != reference {
			continue
		}
		if len(ids) > 0 && !wanted[t.ID] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update replaces the task with a new one built from config. Tasks returned
// earlier keep their old config and stopped process.
func (s *store) Update(id string, config *Config) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	config.ID = id
	config.Reference = t.Reference
	if err := s.validate(config); err != nil {
		return nil, err
	}

	next := &Task{
		ID:        id,
		Reference: t.Reference,
		Config:    config,
		CreatedAt: t.CreatedAt,
		UpdatedAt: time.Now().Unix(),
	}
	if err := s.attach(next); err != nil {
		return nil, err
	}

	wasRunning := t.proc.IsRunning()
	if wasRunning {
		t.proc.Stop(true)
	}
	s.tasks[id] = next

	if wasRunning || config.Autostart {
		go next.proc.Start()
	}

	return next, nil
}

func (s *store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}

	t.proc.Stop(true)
	delete(s.tasks, id)
	metrics.Tasks.Set(float64(len(s.tasks)))
	return nil
}

func (s *store) Start(id string) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}
	return t.proc.Start()
}

func (s *store) Stop(id string) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}
	return t.proc.Stop(true)
}

func (s *store) Restart(id string) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}
	t.proc.Stop(true)
	return t.proc.Start()
}
