package launcher

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
)

// InstanceFinder looks up a running assistant process.
type InstanceFinder interface {
	FindRunning(path string) (pid int, found bool, err error)
}

var _ InstanceFinder = ProcessTable{}

// ProcessTable finds processes within the OS process table using gopsutil.
type ProcessTable struct{}

// FindRunning returns the first process that either is the given executable
// or has it as command line argument, e.g. when run by an interpreter.
func (ProcessTable) FindRunning(path string) (int, bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false, err
	}

	self := int32(os.Getpid())
	path = filepath.Clean(path)

	for _, p := range procs {
		if p.Pid == self {
			continue
		}

		if exe, err := p.Exe(); err == nil && filepath.Clean(exe) == path {
			return int(p.Pid), true, nil
		}

		args, err := p.CmdlineSlice()
		if err != nil {
			continue // Process may have exited
		}

		for _, arg := range args {
			if arg == path {
				return int(p.Pid), true, nil
			}
		}
	}

	return 0, false, nil
}
