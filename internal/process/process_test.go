// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package process

import (
	"bufio"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordParser struct {
	mu    sync.Mutex
	lines []string
}

func (p *recordParser) Parse(line string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return uint64(len(p.lines))
}

func (p *recordParser) ResetStats() {}
func (p *recordParser) ResetLog()   {}
func (p *recordParser) Log() []Line { return nil }

func (p *recordParser) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func shell(t *testing.T, script string, parser Parser) (Process, <-chan string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}

	exit := make(chan string, 4)
	p, err := New(Config{
		Binary: "/bin/sh",
		Args:   []string{"-c", script},
		Parser: parser,
		OnExit: func(state string) { exit <- state },
	})
	require.NoError(t, err)
	return p, exit
}

func waitExit(t *testing.T, exit <-chan string) string {
	t.Helper()
	select {
	case state := <-exit:
		return state
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
		return ""
	}
}

func TestNewWithoutBinary(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestProcessFinished(t *testing.T) {
	parser := &recordParser{}
	p, exit := shell(t, `echo "[youtube] a: Downloading webpage"; echo "ERROR: oops" >&2; printf 'x\ry'`, parser)

	require.NoError(t, p.Start())
	assert.Equal(t, "finished", waitExit(t, exit))

	assert.Equal(t, []string{"[youtube] a: Downloading webpage", "ERROR: oops", "x", "y"}, parser.Lines())

	s := p.Status()
	assert.Equal(t, "finished", s.State)
	assert.Equal(t, 0, s.ExitCode)
	assert.Equal(t, "y", s.LastLine)
	assert.Equal(t, uint64(1), s.States.Starting)
	assert.Equal(t, uint64(1), s.States.Running)
	assert.Equal(t, uint64(1), s.States.Finished)
	assert.False(t, p.IsRunning())
	assert.Eventually(t, func() bool { return p.Status().Order == "stop" }, 5*time.Second, 10*time.Millisecond)
}

func TestProcessMaxDownloadsIsFinished(t *testing.T) {
	p, exit := shell(t, "exit 101", nil)
	require.NoError(t, p.Start())
	assert.Equal(t, "finished", waitExit(t, exit))
	assert.Equal(t, 101, p.Status().ExitCode)
}

func TestProcessFailed(t *testing.T) {
	p, exit := shell(t, "exit 3", nil)
	require.NoError(t, p.Start())
	assert.Equal(t, "failed", waitExit(t, exit))

	s := p.Status()
	assert.Equal(t, "failed", s.State)
	assert.Equal(t, 3, s.ExitCode)
	assert.Equal(t, "start", s.Order)
}

func TestProcessStop(t *testing.T) {
	p, exit := shell(t, "exec sleep 30", nil)
	require.NoError(t, p.Start())
	assert.True(t, p.IsRunning())

	require.NoError(t, p.Stop(true))
	assert.Equal(t, "killed", waitExit(t, exit))

	s := p.Status()
	assert.Equal(t, "killed", s.State)
	assert.Equal(t, "stop", s.Order)
	assert.Equal(t, uint64(1), s.States.Finishing)

	// stopping a stopped process is a no-op
	assert.NoError(t, p.Stop(false))
}

func TestProcessStartMissingBinary(t *testing.T) {
	parser := &recordParser{}
	p, err := New(Config{Binary: "/nonexistent/yt-dlp", Parser: parser})
	require.NoError(t, err)

	assert.Error(t, p.Start())
	assert.Equal(t, "failed", p.Status().State)
	assert.Len(t, parser.Lines(), 1)
}

func TestProcessReconnect(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}

	exit := make(chan string, 8)
	p, err := New(Config{
		Binary:         "/bin/sh",
		Args:           []string{"-c", "exit 1"},
		Reconnect:      true,
		ReconnectDelay: 10 * time.Millisecond,
		OnExit:         func(state string) { exit <- state },
	})
	require.NoError(t, err)

	require.NoError(t, p.Start())
	assert.Equal(t, "failed", waitExit(t, exit))
	assert.Equal(t, "failed", waitExit(t, exit))

	require.NoError(t, p.Stop(false))
	assert.Eventually(t, func() bool { return !p.IsRunning() }, 5*time.Second, 10*time.Millisecond)
}

func TestExitState(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}

	state, code := exitState(nil)
	assert.Equal(t, stateFinished, state)
	assert.Equal(t, 0, code)

	state, code = exitState(exec.Command("/bin/sh", "-c", "exit 101").Run())
	assert.Equal(t, stateFinished, state)
	assert.Equal(t, 101, code)

	state, code = exitState(exec.Command("/bin/sh", "-c", "exit 2").Run())
	assert.Equal(t, stateFailed, state)
	assert.Equal(t, 2, code)

	state, _ = exitState(exec.Command("/bin/sh", "-c", "kill -9 $$").Run())
	assert.Equal(t, stateKilled, state)

	state, code = exitState(errors.New("boom"))
	assert.Equal(t, stateKilled, state)
	assert.Equal(t, -1, code)
}

func TestTransitions(t *testing.T) {
	p := &process{}
	p.initState(stateFinished)

	assert.Error(t, p.setState(stateRunning))
	require.NoError(t, p.setState(stateStarting))
	require.NoError(t, p.setState(stateRunning))
	require.NoError(t, p.setState(stateFinishing))
	assert.Error(t, p.setState(stateStarting))
	require.NoError(t, p.setState(stateKilled))
	assert.Equal(t, stateKilled, p.getState())
	assert.Equal(t, uint64(1), p.state.states.Killed)
}

func TestScanLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"newlines", "a\nb\n", []string{"a", "b"}},
		{"carriage returns", "[download]  1.0%\r[download]  2.0%\r\n", []string{"[download]  1.0%", "[download]  2.0%"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank lines skipped", "\n\n\na\n\n", []string{"a"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"utf8", "[download] Destination: 视频.mp4\n", []string{"[download] Destination: 视频.mp4"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.in))
			scanner.Split(scanLine)
			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}
