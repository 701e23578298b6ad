// Package daemon holds the indexd process lifecycle (PID file, background
// spawn, ready marker), the shared state every handler works against, and
// the maintenance loop that keeps the index fresh.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	pidFileName   = "indexd.pid"
	logFileName   = "indexd.log"
	readyFileName = "indexd.ready"
)

// WritePIDFile writes the current process ID under stateDir. A non-blocking
// exclusive lock on a sidecar file serializes concurrent starts; the lock is
// held for the process lifetime and released by the OS on exit.
func WritePIDFile(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := filepath.Join(stateDir, pidFileName)
	lockPath := pidPath + ".lock"

	lockFh, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := lockFile(lockFh); err != nil {
		lockFh.Close()
		return fmt.Errorf("another indexd process is starting (lock held)")
	}

	// Write PID atomically via temp file + rename.
	content := fmt.Sprintf("%d\n", os.Getpid())
	tmpPath := pidPath + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		lockFh.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := os.Rename(tmpPath, pidPath); err != nil {
		os.Remove(tmpPath)
		lockFh.Close()
		return fmt.Errorf("failed to rename PID file: %w", err)
	}

	// lockFh stays open on purpose.
	return nil
}

// ReadPIDFile returns (0, nil) when no PID file exists. It does not check
// whether the process is alive; use GetRunningPID for that.
func ReadPIDFile(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

func RemovePIDFile(stateDir string) error {
	pidPath := filepath.Join(stateDir, pidFileName)
	_ = os.Remove(pidPath + ".lock")

	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// GetRunningPID returns the live daemon's PID or 0. Stale PID files are
// cleaned up along the way.
func GetRunningPID(stateDir string) (int, error) {
	pid, err := ReadPIDFile(stateDir)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		return 0, nil
	}
	if !IsProcessRunning(pid) {
		_ = RemovePIDFile(stateDir)
		return 0, nil
	}
	return pid, nil
}

// WriteReadyFile marks the daemon as initialized and accepting requests.
func WriteReadyFile(stateDir string) error {
	content := fmt.Sprintf("ready\n%d\n", os.Getpid())
	readyPath := filepath.Join(stateDir, readyFileName)
	if err := os.WriteFile(readyPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write ready file: %w", err)
	}
	return nil
}

func RemoveReadyFile(stateDir string) error {
	readyPath := filepath.Join(stateDir, readyFileName)
	if err := os.Remove(readyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ready file: %w", err)
	}
	return nil
}

func IsReady(stateDir string) bool {
	_, err := os.Stat(filepath.Join(stateDir, readyFileName))
	return err == nil
}

// LogPath returns the background daemon's log file under stateDir.
func LogPath(stateDir string) string {
	return filepath.Join(stateDir, logFileName)
}

// SpawnBackground re-executes the current binary detached, with output
// redirected to the daemon log. Returns the child PID and a channel closed
// when the child exits, so the caller can detect an early crash.
func SpawnBackground(stateDir string, args []string) (int, <-chan struct{}, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return 0, nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	logPath := filepath.Join(stateDir, logFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	liveness, err := newLivenessCheck()
	if err != nil {
		logFile.Close()
		return 0, nil, err
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), "INDEXD_BACKGROUND=1")
	cmd.SysProcAttr = sysProcAttr()
	liveness.configureCmd(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		liveness.cleanup()
		return 0, nil, fmt.Errorf("failed to start background process: %w", err)
	}

	logFile.Close()
	exitCh := liveness.start(cmd.Process.Pid)

	return cmd.Process.Pid, exitCh, nil
}
