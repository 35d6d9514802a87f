package player

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// SpawnSpec describes the child process to start.
type SpawnSpec struct {
	Argv []string
	Env  []string
	Dir  string
}

// Process is a running child with a writable command channel and a single
// combined stdout/stderr stream.
type Process interface {
	// Stdin is the command channel into the process.
	Stdin() io.WriteCloser
	// Output carries everything the process writes to stdout and stderr. It
	// reaches EOF once the process and all of its children have exited.
	Output() io.Reader
	Pid() int
	Signal(sig os.Signal) error
	Kill() error
	// Exited is closed once the process has been reaped.
	Exited() <-chan struct{}
	// Wait blocks until the process has been reaped and returns its status.
	Wait() error
	// Close releases the output stream.
	Close() error
}

// Spawner starts child processes. This abstraction enables unit testing of
// the driver without starting a real media player.
type Spawner interface {
	Spawn(spec SpawnSpec) (Process, error)
}

// ExecSpawner implements Spawner with os/exec.
type ExecSpawner struct{}

// Spawn starts spec.Argv with stdout and stderr sharing one pipe.
func (ExecSpawner) Spawn(spec SpawnSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("spawn: empty argv")
	}
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	// One pipe for both streams, owned by us rather than by cmd, so Wait
	// does not close the read end while the monitor is still draining it.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		return nil, err
	}
	outW.Close()

	p := &execProcess{cmd: cmd, stdin: stdin, out: outR, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	out     *os.File
	exited  chan struct{}
	waitErr error
}

func (p *execProcess) Stdin() io.WriteCloser   { return p.stdin }
func (p *execProcess) Output() io.Reader       { return p.out }
func (p *execProcess) Pid() int                { return p.cmd.Process.Pid }
func (p *execProcess) Exited() <-chan struct{} { return p.exited }
func (p *execProcess) Close() error            { return p.out.Close() }

func (p *execProcess) Signal(sig os.Signal) error {
	select {
	case <-p.exited:
		return os.ErrProcessDone
	default:
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	select {
	case <-p.exited:
		return os.ErrProcessDone
	default:
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	<-p.exited
	return p.waitErr
}

// MockSpawner implements Spawner for testing. Every Spawn returns a fresh
// MockProcess unless Err is set.
type MockSpawner struct {
	mu sync.Mutex
	// Specs records every spawn request.
	Specs []SpawnSpec
	// Processes holds every process handed out, in order.
	Processes []*MockProcess
	// Err, when set, is returned from the next Spawn and then cleared.
	Err error
	// OnSpawn is called with each new process before it is returned.
	OnSpawn func(*MockProcess)
}

// NewMockSpawner creates a new MockSpawner.
func NewMockSpawner() *MockSpawner {
	return &MockSpawner{}
}

// Spawn records spec and returns a new MockProcess.
func (s *MockSpawner) Spawn(spec SpawnSpec) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Specs = append(s.Specs, spec)
	if s.Err != nil {
		err := s.Err
		s.Err = nil
		return nil, err
	}
	p := NewMockProcess(1000 + len(s.Processes))
	if s.OnSpawn != nil {
		s.OnSpawn(p)
	}
	s.Processes = append(s.Processes, p)
	return p, nil
}

// SpawnCount returns the number of successful spawns.
func (s *MockSpawner) SpawnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Processes)
}

// Last returns the most recently spawned process, or nil.
func (s *MockSpawner) Last() *MockProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Processes) == 0 {
		return nil
	}
	return s.Processes[len(s.Processes)-1]
}

// MockProcess implements Process for testing. Writes to Stdin are recorded
// as lines; output is fed with EmitLine.
type MockProcess struct {
	mu          sync.Mutex
	pid         int
	written     []string
	failWrites  int
	stdinClosed bool
	signals     []os.Signal
	killed      bool
	// IgnoreTerm makes the process survive SIGTERM so only Kill stops it.
	IgnoreTerm bool
	// IgnoreKill makes the process survive Kill as well.
	IgnoreKill bool

	outR     *io.PipeReader
	outW     *io.PipeWriter
	exited   chan struct{}
	exitOnce sync.Once
}

// NewMockProcess creates a running MockProcess.
func NewMockProcess(pid int) *MockProcess {
	r, w := io.Pipe()
	return &MockProcess{pid: pid, outR: r, outW: w, exited: make(chan struct{})}
}

func (p *MockProcess) Stdin() io.WriteCloser   { return mockStdin{p} }
func (p *MockProcess) Output() io.Reader       { return p.outR }
func (p *MockProcess) Pid() int                { return p.pid }
func (p *MockProcess) Exited() <-chan struct{} { return p.exited }
func (p *MockProcess) Close() error            { return p.outR.Close() }

// Signal records sig. SIGTERM ends the process unless IgnoreTerm is set.
func (p *MockProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.IgnoreTerm
	p.mu.Unlock()
	if sig == syscall.SIGTERM && !ignore {
		p.Exit()
	}
	return nil
}

// Kill ends the process unless IgnoreKill is set.
func (p *MockProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	ignore := p.IgnoreKill
	p.mu.Unlock()
	if !ignore {
		p.Exit()
	}
	return nil
}

// Wait blocks until the process exits.
func (p *MockProcess) Wait() error {
	<-p.exited
	return nil
}

// Exit simulates the process terminating on its own.
func (p *MockProcess) Exit() {
	p.exitOnce.Do(func() {
		close(p.exited)
		p.outW.Close()
	})
}

// EmitLine writes line to the output stream. It blocks until read.
func (p *MockProcess) EmitLine(line string) error {
	return p.Emit(line + "\n")
}

// Emit writes raw output, without adding a newline. It blocks until read.
func (p *MockProcess) Emit(out string) error {
	_, err := io.WriteString(p.outW, out)
	return err
}

// FailWrites makes the next n writes fail with EPIPE.
func (p *MockProcess) FailWrites(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWrites = n
}

// Written returns the command lines received, without newlines.
func (p *MockProcess) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.written))
	copy(out, p.written)
	return out
}

// Signals returns the signals received.
func (p *MockProcess) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// Killed reports whether Kill was called.
func (p *MockProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// StdinClosed reports whether the command channel was closed.
func (p *MockProcess) StdinClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdinClosed
}

type mockStdin struct{ p *MockProcess }

func (s mockStdin) Write(b []byte) (int, error) {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exited:
		return 0, syscall.EPIPE
	default:
	}
	if p.stdinClosed {
		return 0, os.ErrClosed
	}
	if p.failWrites > 0 {
		p.failWrites--
		return 0, syscall.EPIPE
	}
	line := string(b)
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	p.written = append(p.written, line)
	return len(b), nil
}

func (s mockStdin) Close() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.stdinClosed = true
	return nil
}
