package launcher

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/config"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/testutil/testlog"
)

type fakeProcess struct {
	pid      int
	obeyTerm bool

	exit       chan error
	finishOnce sync.Once

	mu     sync.Mutex
	killed bool
}

func newFakeProcess(pid int, obeyTerm bool) *fakeProcess {
	return &fakeProcess{pid: pid, obeyTerm: obeyTerm, exit: make(chan error, 1)}
}

func (p *fakeProcess) finish(err error) {
	p.finishOnce.Do(func() { p.exit <- err })
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Terminate() error {
	if p.obeyTerm {
		p.finish(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(errors.New("killed"))
	return nil
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) Wait() error { return <-p.exit }

type fakeRunner struct {
	mu       sync.Mutex
	obeyTerm bool
	lines    []string
	startErr error

	procs    []*fakeProcess
	lastCmd  string
	lastArgs []string
}

func (r *fakeRunner) Run(cmd string, args ...string) (string, error) { return "", nil }

func (r *fakeRunner) Start(cmd string, args []string, stdout, stderr io.Writer) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.lastCmd = cmd
	r.lastArgs = args
	p := newFakeProcess(4200+len(r.procs), r.obeyTerm)
	r.procs = append(r.procs, p)
	lines := r.lines
	go func() {
		for _, line := range lines {
			io.WriteString(stdout, line+"\n")
		}
	}()
	return p, nil
}

func (r *fakeRunner) proc(i int) *fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[i]
}

type captureSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *captureSink) IngestLine(node, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func testROS2Config() config.ROS2Config {
	return config.ROS2Config{
		Binary:      "ros2",
		Package:     "my_robot_controller",
		DefaultNode: "publisher_node",
		Nodes: []config.NodeConfig{
			{Name: "publisher_node", Description: "Publisher Node"},
			{Name: "subscriber_node", Description: "Subscriber Node"},
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestLaunchPrimaryScansStdoutAndRejectsSecond(t *testing.T) {
	testlog.Start(t)

	runner := &fakeRunner{
		obeyTerm: true,
		lines: []string{
			"[INFO] [100.001] [publisher_node]: hello 1",
			"[INFO] [100.002] [publisher_node]: hello 2",
		},
	}
	sink := &captureSink{}
	l := New(testROS2Config(), runner, sink)

	state, err := l.LaunchPrimary("publisher_node")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if state.Status != StatusRunning || state.LaunchID == "" {
		t.Fatalf("unexpected launch state: %+v", state)
	}
	if runner.lastCmd != "ros2" {
		t.Fatalf("unexpected command: %q", runner.lastCmd)
	}
	wantArgs := []string{"run", "my_robot_controller", "publisher_node"}
	for i, arg := range wantArgs {
		if runner.lastArgs[i] != arg {
			t.Fatalf("unexpected args: %v", runner.lastArgs)
		}
	}

	waitFor(t, "stdout lines", func() bool { return sink.count() == 2 })

	if _, err := l.LaunchPrimary("subscriber_node"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	final, err := l.StopPrimary()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final.Status != StatusKilled {
		t.Fatalf("expected killed status, got %+v", final)
	}
	if final.FinishedAt == nil || final.ExitCode == nil {
		t.Fatalf("expected finish bookkeeping, got %+v", final)
	}

	if _, err := l.StopPrimary(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestPrimaryExitOnItsOwnFreesSlot(t *testing.T) {
	testlog.Start(t)

	runner := &fakeRunner{obeyTerm: true}
	l := New(testROS2Config(), runner, &captureSink{})

	if _, err := l.LaunchPrimary("publisher_node"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	runner.proc(0).finish(errors.New("node crashed"))

	waitFor(t, "primary exit", func() bool {
		state, ok := l.PrimaryState()
		return ok && state.Status != StatusRunning
	})
	state, _ := l.PrimaryState()
	if state.Status != StatusFailed {
		t.Fatalf("expected failed status, got %+v", state)
	}

	// Slot is free again.
	if _, err := l.LaunchPrimary("publisher_node"); err != nil {
		t.Fatalf("relaunch after exit: %v", err)
	}
	if _, err := l.StopPrimary(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopEscalatesToKillAfterWait(t *testing.T) {
	testlog.Start(t)

	runner := &fakeRunner{obeyTerm: false}
	l := New(testROS2Config(), runner, &captureSink{})
	l.stopWait = 20 * time.Millisecond

	if _, err := l.LaunchPrimary("publisher_node"); err != nil {
		t.Fatalf("launch: %v", err)
	}

	final, err := l.StopPrimary()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final.Status != StatusKilled {
		t.Fatalf("expected killed status, got %+v", final)
	}
	if !runner.proc(0).wasKilled() {
		t.Fatalf("expected kill escalation after stop wait")
	}
}

func TestAuxiliaryNodeLifecycle(t *testing.T) {
	testlog.Start(t)

	runner := &fakeRunner{obeyTerm: true}
	l := New(testROS2Config(), runner, &captureSink{})
	l.stopWait = 20 * time.Millisecond

	if _, err := l.StartNode("missing_node"); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	if err := l.StopNode("missing_node"); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode on stop, got %v", err)
	}

	state, err := l.StartNode("subscriber_node")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Node != "subscriber_node" || state.Status != StatusRunning {
		t.Fatalf("unexpected state: %+v", state)
	}
	if _, err := l.StartNode("subscriber_node"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	snapshot := l.Snapshot()
	if len(snapshot.Nodes) != 2 {
		t.Fatalf("expected full catalog in snapshot, got %+v", snapshot.Nodes)
	}
	for _, ns := range snapshot.Nodes {
		if ns.Name == "subscriber_node" && !ns.Running {
			t.Fatalf("expected subscriber_node running in snapshot")
		}
		if ns.Name == "publisher_node" && ns.Running {
			t.Fatalf("expected publisher_node stopped in snapshot")
		}
	}

	if err := l.StopNode("subscriber_node"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := l.StopNode("subscriber_node"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStartAllSkipsRunningNodes(t *testing.T) {
	testlog.Start(t)

	runner := &fakeRunner{obeyTerm: true}
	l := New(testROS2Config(), runner, &captureSink{})
	l.stopWait = 20 * time.Millisecond

	if _, err := l.StartNode("publisher_node"); err != nil {
		t.Fatalf("start: %v", err)
	}

	results := l.StartAll()
	if len(results) != 2 {
		t.Fatalf("expected one outcome per catalog node, got %+v", results)
	}
	for _, result := range results {
		switch result.Node {
		case "publisher_node":
			if result.Started {
				t.Fatalf("expected publisher_node skipped: %+v", result)
			}
		case "subscriber_node":
			if !result.Started {
				t.Fatalf("expected subscriber_node started: %+v", result)
			}
		}
	}

	if stopped := l.StopAll(); stopped != 2 {
		t.Fatalf("expected 2 nodes stopped, got %d", stopped)
	}
	if stopped := l.StopAll(); stopped != 0 {
		t.Fatalf("expected idempotent stop-all, got %d", stopped)
	}
}

func TestLaunchStartErrorSurfaces(t *testing.T) {
	runner := &fakeRunner{startErr: errors.New("ros2 binary not found")}
	l := New(testROS2Config(), runner, &captureSink{})

	if _, err := l.LaunchPrimary("publisher_node"); err == nil {
		t.Fatalf("expected start error")
	}
	// A failed start must not occupy the primary slot.
	if _, ok := l.PrimaryState(); ok {
		t.Fatalf("expected empty primary state after failed start")
	}
}
