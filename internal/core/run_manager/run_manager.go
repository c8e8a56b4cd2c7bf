// Package run_manager owns the node's run file: an ini document recording
// the live process so a second node cannot start on the same meta dir.
package run_manager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/ini.v1"
)

var ErrAlreadyRunning = errors.New("a node is already running from this directory")

const sectionRuntime = "runtime"

const timestampLayout = "2006-01-02/15:04:05 MST"

type RunInfo struct {
	PID     int
	Version string
	NodeID  string
	Address string
	Started time.Time
}

// Acquire writes info to path. It fails with ErrAlreadyRunning if the
// file names a process that is still alive.
func Acquire(path string, info RunInfo) error {
	prev, err := Read(path)
	switch {
	case err == nil:
		if prev.PID != os.Getpid() && alive(prev.PID) {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, prev.PID)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return Write(path, info)
}

func Write(path string, info RunInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file := ini.Empty()
	sec, err := file.NewSection(sectionRuntime)
	if err != nil {
		return err
	}
	sec.Key("pid").SetValue(strconv.Itoa(info.PID))
	sec.Key("version").SetValue(info.Version)
	sec.Key("uuid").SetValue(info.NodeID)
	sec.Key("address").SetValue(info.Address)
	sec.Key("timestamp").SetValue(info.Started.Format(timestampLayout))
	sec.Key("timestamp-unix").SetValue(strconv.FormatInt(info.Started.Unix(), 10))
	return file.SaveTo(path)
}

func Read(path string) (RunInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return RunInfo{}, err
	}
	file, err := ini.Load(path)
	if err != nil {
		return RunInfo{}, fmt.Errorf("parse run file: %w", err)
	}
	sec := file.Section(sectionRuntime)
	pid, err := sec.Key("pid").Int()
	if err != nil {
		return RunInfo{}, fmt.Errorf("run file pid: %w", err)
	}
	return RunInfo{
		PID:     pid,
		Version: sec.Key("version").String(),
		NodeID:  sec.Key("uuid").String(),
		Address: sec.Key("address").String(),
		Started: time.Unix(sec.Key("timestamp-unix").MustInt64(0), 0),
	}, nil
}

// Release removes the run file if it still belongs to this process.
func Release(path string) error {
	info, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil && info.PID != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
