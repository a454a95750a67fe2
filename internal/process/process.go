// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具
//
// Package process wraps exec.Cmd for controlling a downloader process.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

// Exit codes the downloader uses for a run that ended as asked
const (
	exitOK           = 0
	exitMaxDownloads = 101
)

// Process represents a process
type Process interface {
	Status() Status
	Start() error
	Stop(wait bool) error
	Kill(wait bool) error
	IsRunning() bool
}

// Config for a process
type Config struct {
	Binary         string
	Args           []string
	Env            []string
	Dir            string
	Reconnect      bool
	ReconnectDelay time.Duration
	StaleTimeout   time.Duration
	LimitCPU       float64
	LimitMemory    uint64
	LimitWaitFor   time.Duration
	Parser         Parser
	OnStart        func()
	OnExit         func(state string)
	OnStateChange  func(from, to string)
	Logger         Logger
}

// Status of a process
type Status struct {
	State    string
	States   States
	Order    string
	Duration time.Duration
	Time     time.Time
	ExitCode int
	LastLine string
	CPU      struct {
		Current float64
		Limit   float64
	}
	Memory struct {
		Current uint64
		Limit   uint64
	}
}

// States cumulative counts
type States struct {
	Finished  uint64
	Starting  uint64
	Running   uint64
	Finishing uint64
	Failed    uint64
	Killed    uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

var transitions = map[stateType][]stateType{
	stateFinished:  {stateStarting},
	stateStarting:  {stateFinishing, stateRunning, stateFailed},
	stateRunning:   {stateFinished, stateFinishing, stateFailed, stateKilled},
	stateFinishing: {stateFinished, stateFailed, stateKilled},
	stateFailed:    {stateStarting},
	stateKilled:    {stateStarting},
}

type process struct {
	binary string
	args   []string
	env    []string
	dir    string
	cmd    *exec.Cmd
	pid    int32
	output io.ReadCloser

	state struct {
		state    stateType
		time     time.Time
		states   States
		exitCode int
		lastLine string
		lock     sync.Mutex
	}
	order struct {
		order string
		lock  sync.Mutex
	}
	parser Parser
	stale  struct {
		last    time.Time
		timeout time.Duration
		cancel  context.CancelFunc
		lock    sync.Mutex
	}
	reconn struct {
		enable bool
		delay  time.Duration
		timer  *time.Timer
		lock   sync.Mutex
	}
	killTimer     *time.Timer
	killTimerLock sync.Mutex
	logger        Logger
	limits        Limiter
	callbacks     struct {
		onStart       func()
		onExit        func(state string)
		onStateChange func(from, to string)
		lock          sync.Mutex
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary: config.Binary,
		args:   config.Args,
		env:    config.Env,
		dir:    config.Dir,
		parser: config.Parser,
		logger: config.Logger,
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.parser == nil {
		p.parser = &nullParser{}
	}

	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.limits = NewSysLimiter(LimiterConfig{
		CPU:     config.LimitCPU,
		Memory:  config.LimitMemory,
		WaitFor: config.LimitWaitFor,
		OnExceeded: func(cpu float64, memory uint64) {
			p.logger.Error("pid %d exceeded limits (cpu %.1f%%, memory %d bytes), killing", p.pid, cpu, memory)
			p.Kill(false)
		},
	})

	p.order.order = "stop"
	p.initState(stateFinished)
	p.reconn.enable = config.Reconnect
	p.reconn.delay = config.ReconnectDelay
	p.stale.last = time.Now()
	p.stale.timeout = config.StaleTimeout
	p.callbacks.onStart = config.OnStart
	p.callbacks.onExit = config.OnExit
	p.callbacks.onStateChange = config.OnStateChange

	return p, nil
}

func (p *process) initState(state stateType) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	p.state.state = state
	p.state.time = time.Now()
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prevState := p.state.state

	allowed := false
	for _, s := range transitions[prevState] {
		if s == state {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("can't change from %s to %s", prevState, state)
	}

	p.state.state = state
	switch state {
	case stateFinished:
		p.state.states.Finished++
	case stateStarting:
		p.state.states.Starting++
	case stateRunning:
		p.state.states.Running++
	case stateFinishing:
		p.state.states.Finishing++
	case stateFailed:
		p.state.states.Failed++
	case stateKilled:
		p.state.states.Killed++
	}

	p.state.time = time.Now()
	if p.callbacks.onStateChange != nil {
		go p.callbacks.onStateChange(prevState.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) isRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	cpu, memory := p.limits.Current()
	cpuLimit, memoryLimit := p.limits.Limits()

	p.state.lock.Lock()
	stateTime := p.state.time
	stateString := p.state.state.String()
	states := p.state.states
	exitCode := p.state.exitCode
	lastLine := p.state.lastLine
	p.state.lock.Unlock()

	p.order.lock.Lock()
	order := p.order.order
	p.order.lock.Unlock()

	s := Status{
		State:    stateString,
		States:   states,
		Order:    order,
		Duration: time.Since(stateTime),
		Time:     stateTime,
		ExitCode: exitCode,
		LastLine: lastLine,
	}
	s.CPU.Current = cpu
	s.CPU.Limit = cpuLimit
	s.Memory.Current = memory
	s.Memory.Limit = memoryLimit
	return s
}

func (p *process) IsRunning() bool {
	return p.isRunning()
}

func (p *process) Start() error {
	p.order.lock.Lock()
	defer p.order.lock.Unlock()

	if p.order.order == "start" && p.isRunning() {
		return nil
	}
	p.order.order = "start"
	return p.start()
}

func (p *process) start() error {
	if p.isRunning() {
		return nil
	}

	p.unreconnect()
	p.setState(stateStarting)

	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = append(os.Environ(), p.env...)
	p.cmd.Dir = p.dir

	// 进度在 stdout，错误在 stderr，合并到同一个管道里按顺序解析
	r, w, err := os.Pipe()
	if err != nil {
		p.setState(stateFailed)
		p.parser.Parse(err.Error())
		p.reconnect()
		return err
	}
	p.cmd.Stdout = w
	p.cmd.Stderr = w
	p.output = r

	if err := p.cmd.Start(); err != nil {
		w.Close()
		r.Close()
		p.setState(stateFailed)
		p.parser.Parse(err.Error())
		p.reconnect()
		return err
	}
	// the child holds its own copy; EOF arrives once it exits
	w.Close()

	p.pid = int32(p.cmd.Process.Pid)
	if err := p.limits.Start(int(p.pid)); err != nil {
		p.logger.Debug("pid %d: resource sampling unavailable: %v", p.pid, err)
	}

	p.setState(stateRunning)
	p.logger.Info("started %s (pid %d)", p.binary, p.pid)

	if p.callbacks.onStart != nil {
		go p.callbacks.onStart()
	}

	go p.reader()

	if p.stale.timeout != 0 {
		p.stale.lock.Lock()
		ctx, cancel := context.WithCancel(context.Background())
		p.stale.cancel = cancel
		p.stale.lock.Unlock()
		go p.staler(ctx)
	}

	return nil
}

func (p *process) Stop(wait bool) error {
	p.order.lock.Lock()
	defer p.order.lock.Unlock()

	if p.order.order == "stop" && !p.isRunning() {
		return nil
	}
	p.order.order = "stop"
	return p.stop(wait)
}

func (p *process) Kill(wait bool) error {
	if !p.isRunning() {
		return nil
	}
	p.order.lock.Lock()
	defer p.order.lock.Unlock()
	return p.stop(wait)
}

func (p *process) stop(wait bool) error {
	if !p.isRunning() {
		p.unreconnect()
		return nil
	}
	if p.getState() == stateFinishing {
		return nil
	}

	p.setState(stateFinishing)

	wg := sync.WaitGroup{}
	if wait {
		wg.Add(1)
		once := sync.Once{}
		p.callbacks.lock.Lock()
		cb := p.callbacks.onExit
		p.callbacks.onExit = func(state string) {
			if cb != nil {
				cb(state)
			}
			once.Do(wg.Done)
		}
		p.callbacks.lock.Unlock()
		defer func() {
			p.callbacks.lock.Lock()
			p.callbacks.onExit = cb
			p.callbacks.lock.Unlock()
		}()
	}

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(os.Interrupt)
		if err != nil {
			err = p.cmd.Process.Kill()
		} else {
			p.killTimerLock.Lock()
			p.killTimer = time.AfterFunc(5*time.Second, func() {
				p.cmd.Process.Kill()
			})
			p.killTimerLock.Unlock()
		}
	}

	if err == nil && wait {
		wg.Wait()
	}

	if err != nil {
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
	}
	return err
}

func (p *process) reconnect() {
	if !p.reconn.enable {
		return
	}
	p.unreconnect()

	p.reconn.lock.Lock()
	defer p.reconn.lock.Unlock()

	p.logger.Info("retrying %s in %s", p.binary, p.reconn.delay)
	p.reconn.timer = time.AfterFunc(p.reconn.delay, func() {
		p.order.lock.Lock()
		defer p.order.lock.Unlock()
		if p.order.order == "start" {
			p.start()
		}
	})
}

func (p *process) unreconnect() {
	p.reconn.lock.Lock()
	defer p.reconn.lock.Unlock()

	if p.reconn.timer != nil {
		p.reconn.timer.Stop()
		p.reconn.timer = nil
	}
}

func (p *process) staler(ctx context.Context) {
	p.stale.lock.Lock()
	p.stale.last = time.Now()
	p.stale.lock.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.stale.lock.Lock()
			last := p.stale.last
			timeout := p.stale.timeout
			p.stale.lock.Unlock()

			if t.Sub(last) > timeout {
				p.logger.Error("pid %d stale for %s, stopping", p.pid, timeout)
				p.Kill(false)
				return
			}
		}
	}
}

func (p *process) reader() {
	scanner := bufio.NewScanner(p.output)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	p.parser.ResetStats()
	p.parser.ResetLog()

	for scanner.Scan() {
		line := scanner.Text()

		p.state.lock.Lock()
		p.state.lastLine = line
		p.state.lock.Unlock()

		n := p.parser.Parse(line)
		if n != 0 {
			p.stale.lock.Lock()
			p.stale.last = time.Now()
			p.stale.lock.Unlock()
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Error("pid %d: reading output: %v", p.pid, err)
	}
	p.output.Close()

	p.waiter()
}

func (p *process) waiter() {
	// stop() 触发的退出在 finishing 状态，其余按退出码判断
	state, code := exitState(p.cmd.Wait())
	if state == stateFailed && p.getState() == stateFinishing {
		state = stateKilled
	}

	p.state.lock.Lock()
	p.state.exitCode = code
	p.state.lock.Unlock()

	if err := p.setState(state); err != nil {
		p.logger.Debug("pid %d: %v", p.pid, err)
	}
	p.logger.Info("pid %d exited: %s (code %d)", p.pid, state, code)

	p.limits.Stop()

	p.killTimerLock.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.killTimerLock.Unlock()

	p.stale.lock.Lock()
	if p.stale.cancel != nil {
		p.stale.cancel()
		p.stale.cancel = nil
	}
	p.stale.lock.Unlock()

	p.callbacks.lock.Lock()
	if p.callbacks.onExit != nil {
		go p.callbacks.onExit(state.String())
	}
	p.callbacks.lock.Unlock()

	p.order.lock.Lock()
	defer p.order.lock.Unlock()

	switch {
	case state == stateFailed && p.order.order == "start":
		p.reconnect()
	case state == stateFinished:
		p.order.order = "stop"
	}
}

// exitState maps the result of Wait to a final state and exit code
func exitState(err error) (stateType, int) {
	if err == nil {
		return stateFinished, exitOK
	}
	var exiterr *exec.ExitError
	if !errors.As(err, &exiterr) {
		return stateKilled, -1
	}
	status, ok := exiterr.Sys().(syscall.WaitStatus)
	if !ok || !status.Exited() {
		return stateKilled, exiterr.ExitCode()
	}
	switch code := status.ExitStatus(); code {
	case exitOK, exitMaxDownloads:
		return stateFinished, code
	default:
		return stateFailed, code
	}
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nullParser struct{}

func (p *nullParser) Parse(line string) uint64 { return 1 }
func (p *nullParser) ResetStats()              {}
func (p *nullParser) ResetLog()                {}
func (p *nullParser) Log() []Line              { return nil }

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
