package udpbench

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
)

// Launcher starts the peer on a remote host with ssh.
type Launcher struct {
	Shell   string // ssh client binary
	Host    string // remote ssh destination
	Program string // udpbench binary on the remote host
	Stderr  io.Writer
}

// RemoteProcess is a running ssh child. Its stdout carries the peer's
// sockname line and then its report line.
type RemoteProcess struct {
	cmd    *exec.Cmd
	stream *bufio.Reader
	argv   []string
	reaped bool
}

func NewLauncher(host, program string) *Launcher {
	return &Launcher{
		Shell:   DEFAULT_SSH,
		Host:    host,
		Program: program,
		Stderr:  os.Stderr,
	}
}

// Args builds the ssh argument vector that runs the peer in dir. The
// launched receiver gets one more second than a launched sender so it is
// listening before the first packet and after the last.
func (l *Launcher) Args(dir Direction, hostname, service string, setting *benchSetting, timeout uint) []string {
	if dir == DIR_RECV {
		timeout += REMOTE_GRACE
	}

	argv := []string{
		l.Shell,
		l.Host,
		l.Program,
		"-b", strconv.Itoa(setting.bufferSize),
		"-l", strconv.FormatUint(uint64(setting.length), 10),
		"-p", service,
		"-t", strconv.FormatUint(uint64(timeout), 10),
	}
	if dir == DIR_SEND && setting.rate > 0 {
		argv = append(argv, "-r", strconv.FormatUint(uint64(setting.rate), 10))
	}
	argv = append(argv, dir.String())
	if hostname != "" {
		argv = append(argv, hostname)
	}

	return argv
}

// Start spawns argv with its stdout piped back to us.
func (l *Launcher) Start(ctx context.Context, argv []string) (*RemoteProcess, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = l.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "pipe")
	}

	Log.Debugf("Start remote: %v", argv)

	// Start closes our copy of the pipe's write end
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Err: err}
	}

	return &RemoteProcess{
		cmd:    cmd,
		stream: bufio.NewReader(stdout),
		argv:   argv,
	}, nil
}

func (rp *RemoteProcess) Pid() int {
	return rp.cmd.Process.Pid
}

func (rp *RemoteProcess) readLine(what string) (string, error) {
	line, err := rp.stream.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", errors.Errorf("ssh %s: unexpected end of stream", what)
		}
		if err != io.EOF {
			return "", errors.Wrapf(err, "read %s", what)
		}
	}
	return line, nil
}

// Peername reads the peer's sockname line.
func (rp *RemoteProcess) Peername() (Peer, error) {
	line, err := rp.readLine("sockname")
	if err != nil {
		return Peer{}, err
	}

	return parseSockname(line)
}

// Wait copies the peer's report line to out and reaps the child.
func (rp *RemoteProcess) Wait(out io.Writer) error {
	line, err := rp.readLine("status")
	if err != nil {
		// a peer that failed says more than the missing line
		if werr := rp.wait(); werr != nil {
			Log.Errorf("Remote status line missing: %v", err)
			return werr
		}
		return err
	}
	fmt.Fprint(out, line)

	if err := rp.wait(); err != nil {
		return err
	}

	Log.Debugf("Remote %d exited: %v", rp.Pid(), rp.argv)

	return nil
}

func (rp *RemoteProcess) wait() error {
	err := rp.cmd.Wait()
	rp.reaped = true
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &RemoteExitError{Status: exitErr.ExitCode()}
		}
		return errors.Wrap(err, "waitpid")
	}
	return nil
}

// Abort kills and reaps a child that is still running, e.g. after a
// protocol or transfer error.
func (rp *RemoteProcess) Abort() {
	if rp == nil || rp.reaped {
		return
	}
	if err := rp.cmd.Process.Kill(); err != nil {
		Log.Debugf("Kill remote %d: %v", rp.Pid(), err)
	}
	if err := rp.wait(); err != nil {
		Log.Debugf("Remote %d %v: %v", rp.Pid(), rp.argv, err)
	}
}
