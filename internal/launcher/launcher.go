package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/config"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/observability"
)

var (
	ErrAlreadyRunning = errors.New("launcher: node already running")
	ErrNotRunning     = errors.New("launcher: node not running")
	ErrUnknownNode    = errors.New("launcher: unknown node")
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// LineSink receives every stdout line of the primary node.
type LineSink interface {
	IngestLine(node, line string)
}

// ProcessState is the externally visible state of one launch.
type ProcessState struct {
	LaunchID   string     `json:"launch_id"`
	Node       string     `json:"node"`
	PID        int        `json:"pid"`
	StartedAt  time.Time  `json:"started_at"`
	Status     Status     `json:"status"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NodeState reports one catalog node for status listings.
type NodeState struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Running     bool   `json:"running"`
	PID         int    `json:"pid,omitempty"`
}

// LaunchOutcome is one entry of a start-all sweep.
type LaunchOutcome struct {
	Node    string `json:"node"`
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// BridgeStatus is the full launcher snapshot.
type BridgeStatus struct {
	Primary     *ProcessState `json:"primary,omitempty"`
	LastPrimary *ProcessState `json:"last_primary,omitempty"`
	Nodes       []NodeState   `json:"nodes"`
}

type trackedProcess struct {
	state    ProcessState
	proc     Process
	done     chan struct{}
	stopping bool
}

// Launcher owns the zero-or-one primary node whose stdout is scanned
// into the log sink, plus auxiliary catalog nodes launched without
// capture.
type Launcher struct {
	mu sync.Mutex

	runner   Runner
	sink     LineSink
	binary   string
	pkg      string
	catalog  []config.NodeConfig
	stopWait time.Duration

	primary     *trackedProcess
	lastPrimary *ProcessState
	aux         map[string]*trackedProcess
}

func New(cfg config.ROS2Config, runner Runner, sink LineSink) *Launcher {
	return &Launcher{
		runner:   runner,
		sink:     sink,
		binary:   cfg.Binary,
		pkg:      cfg.Package,
		catalog:  cfg.Nodes,
		stopWait: 5 * time.Second,
		aux:      make(map[string]*trackedProcess),
	}
}

// LaunchPrimary starts the monitored node. At most one primary runs at
// a time; a second launch while one is running returns
// ErrAlreadyRunning.
func (l *Launcher) LaunchPrimary(node string) (ProcessState, error) {
	l.mu.Lock()
	if l.primary != nil {
		running := l.primary.state.Node
		l.mu.Unlock()
		observability.RecordLaunch(node, "rejected")
		return ProcessState{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, running)
	}
	l.mu.Unlock()

	pr, pw := io.Pipe()
	proc, err := l.runner.Start(l.binary, []string{"run", l.pkg, node}, pw, pw)
	if err != nil {
		pw.Close()
		observability.RecordLaunch(node, "error")
		return ProcessState{}, fmt.Errorf("launch %s: %w", node, err)
	}

	tp := &trackedProcess{
		state: ProcessState{
			LaunchID:  uuid.NewString(),
			Node:      node,
			PID:       proc.PID(),
			StartedAt: time.Now(),
			Status:    StatusRunning,
		},
		proc: proc,
		done: make(chan struct{}),
	}

	l.mu.Lock()
	if l.primary != nil {
		// Lost the race to another launch; back out.
		l.mu.Unlock()
		proc.Kill()
		pw.Close()
		go proc.Wait()
		observability.RecordLaunch(node, "rejected")
		return ProcessState{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, node)
	}
	l.primary = tp
	l.mu.Unlock()

	go l.scanLines(node, pr)
	go l.waitPrimary(tp, pw)

	observability.RecordLaunch(node, "ok")
	log.Info().
		Str("node", node).
		Int("pid", tp.state.PID).
		Str("launch_id", tp.state.LaunchID).
		Msg("primary node launched")
	return tp.state, nil
}

// StopPrimary terminates the primary node: SIGTERM, then SIGKILL after
// the stop wait elapses. Returns the final state.
func (l *Launcher) StopPrimary() (ProcessState, error) {
	l.mu.Lock()
	tp := l.primary
	if tp == nil {
		l.mu.Unlock()
		return ProcessState{}, ErrNotRunning
	}
	tp.stopping = true
	l.mu.Unlock()

	l.stopTracked(tp)

	l.mu.Lock()
	defer l.mu.Unlock()
	final := *l.lastPrimary
	return final, nil
}

// PrimaryState returns the running primary, or the most recently
// finished one.
func (l *Launcher) PrimaryState() (ProcessState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.primary != nil {
		return l.primary.state, true
	}
	if l.lastPrimary != nil {
		return *l.lastPrimary, true
	}
	return ProcessState{}, false
}

// StartNode launches one auxiliary catalog node without stdout capture.
func (l *Launcher) StartNode(name string) (ProcessState, error) {
	if !l.inCatalog(name) {
		return ProcessState{}, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}

	l.mu.Lock()
	if _, running := l.aux[name]; running {
		l.mu.Unlock()
		observability.RecordLaunch(name, "rejected")
		return ProcessState{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	l.mu.Unlock()

	proc, err := l.runner.Start(l.binary, []string{"run", l.pkg, name}, io.Discard, io.Discard)
	if err != nil {
		observability.RecordLaunch(name, "error")
		return ProcessState{}, fmt.Errorf("launch %s: %w", name, err)
	}

	tp := &trackedProcess{
		state: ProcessState{
			LaunchID:  uuid.NewString(),
			Node:      name,
			PID:       proc.PID(),
			StartedAt: time.Now(),
			Status:    StatusRunning,
		},
		proc: proc,
		done: make(chan struct{}),
	}

	l.mu.Lock()
	if _, running := l.aux[name]; running {
		l.mu.Unlock()
		proc.Kill()
		go proc.Wait()
		observability.RecordLaunch(name, "rejected")
		return ProcessState{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	l.aux[name] = tp
	l.mu.Unlock()

	go l.waitAux(name, tp)

	observability.RecordLaunch(name, "ok")
	log.Info().Str("node", name).Int("pid", tp.state.PID).Msg("node started")
	return tp.state, nil
}

// StopNode terminates one auxiliary node.
func (l *Launcher) StopNode(name string) error {
	if !l.inCatalog(name) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}

	l.mu.Lock()
	tp, running := l.aux[name]
	if !running {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	tp.stopping = true
	l.mu.Unlock()

	l.stopTracked(tp)
	log.Info().Str("node", name).Msg("node stopped")
	return nil
}

// StartAll sweeps the catalog, skipping nodes already running.
func (l *Launcher) StartAll() []LaunchOutcome {
	out := make([]LaunchOutcome, 0, len(l.catalog))
	for _, node := range l.catalog {
		_, err := l.StartNode(node.Name)
		switch {
		case err == nil:
			out = append(out, LaunchOutcome{Node: node.Name, Started: true})
		case errors.Is(err, ErrAlreadyRunning):
			out = append(out, LaunchOutcome{Node: node.Name, Reason: "already running"})
		default:
			out = append(out, LaunchOutcome{Node: node.Name, Reason: err.Error()})
		}
	}
	return out
}

// StopAll terminates every running auxiliary node and returns how many
// were stopped.
func (l *Launcher) StopAll() int {
	l.mu.Lock()
	running := make([]string, 0, len(l.aux))
	for name := range l.aux {
		running = append(running, name)
	}
	l.mu.Unlock()

	stopped := 0
	for _, name := range running {
		if err := l.StopNode(name); err == nil {
			stopped++
		}
	}
	return stopped
}

// Snapshot reports the primary and every catalog node.
func (l *Launcher) Snapshot() BridgeStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	var status BridgeStatus
	if l.primary != nil {
		state := l.primary.state
		status.Primary = &state
	}
	if l.lastPrimary != nil {
		last := *l.lastPrimary
		status.LastPrimary = &last
	}
	status.Nodes = make([]NodeState, 0, len(l.catalog))
	for _, node := range l.catalog {
		ns := NodeState{Name: node.Name, Description: node.Description}
		if tp, ok := l.aux[node.Name]; ok {
			ns.Running = true
			ns.PID = tp.state.PID
		}
		status.Nodes = append(status.Nodes, ns)
	}
	return status
}

func (l *Launcher) inCatalog(name string) bool {
	for _, node := range l.catalog {
		if node.Name == name {
			return true
		}
	}
	return false
}

func (l *Launcher) stopTracked(tp *trackedProcess) {
	if err := tp.proc.Terminate(); err != nil {
		log.Warn().Str("node", tp.state.Node).Err(err).Msg("terminate failed, killing")
		tp.proc.Kill()
	}
	select {
	case <-tp.done:
	case <-time.After(l.stopWait):
		log.Warn().Str("node", tp.state.Node).Dur("waited", l.stopWait).Msg("stop timeout, killing")
		tp.proc.Kill()
		<-tp.done
	}
}

func (l *Launcher) scanLines(node string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l.sink.IngestLine(node, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Str("node", node).Err(err).Msg("stdout scan ended")
	}
}

func (l *Launcher) waitPrimary(tp *trackedProcess, pw *io.PipeWriter) {
	err := tp.proc.Wait()
	pw.Close()

	l.mu.Lock()
	finishTracked(tp, err)
	final := tp.state
	l.lastPrimary = &final
	l.primary = nil
	l.mu.Unlock()
	close(tp.done)

	observability.RecordProcessExit(final.Node, string(final.Status))
	log.Info().
		Str("node", final.Node).
		Str("status", string(final.Status)).
		Msg("primary node exited")
}

func (l *Launcher) waitAux(name string, tp *trackedProcess) {
	err := tp.proc.Wait()

	l.mu.Lock()
	finishTracked(tp, err)
	final := tp.state
	delete(l.aux, name)
	l.mu.Unlock()
	close(tp.done)

	observability.RecordProcessExit(name, string(final.Status))
}

// finishTracked records the terminal status; caller holds the launcher
// lock.
func finishTracked(tp *trackedProcess, waitErr error) {
	now := time.Now()
	tp.state.FinishedAt = &now
	code := exitCode(waitErr)
	tp.state.ExitCode = &code
	switch {
	case tp.stopping:
		tp.state.Status = StatusKilled
	case waitErr == nil:
		tp.state.Status = StatusCompleted
	default:
		tp.state.Status = StatusFailed
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var execErr *exec.ExitError
	if errors.As(err, &execErr) {
		return execErr.ExitCode()
	}
	var sshErr *ssh.ExitError
	if errors.As(err, &sshErr) {
		return sshErr.ExitStatus()
	}
	return -1
}
