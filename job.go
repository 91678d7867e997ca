package ftpsession

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Op names a remote command.
type Op string

const (
	OpUpload    Op = "put"
	OpDownload  Op = "get"
	OpDelete    Op = "delete"
	OpChangeDir Op = "cd"
	OpMakeDir   Op = "mkdir"
)

var opAliases = map[string]Op{
	"put":      OpUpload,
	"upload":   OpUpload,
	"get":      OpDownload,
	"download": OpDownload,
	"delete":   OpDelete,
	"rm":       OpDelete,
	"cd":       OpChangeDir,
	"chdir":    OpChangeDir,
	"mkdir":    OpMakeDir,
	"mkd":      OpMakeDir,
}

// ParseOp maps a command name, case-insensitively, to its Op.
func ParseOp(name string) (Op, error) {
	if op, ok := opAliases[strings.ToLower(name)]; ok {
		return op, nil
	}
	return "", fmt.Errorf("unknown command %q", name)
}

// Job is one remote command.
//
// For OpUpload, Path is the local file and Target the remote name. For
// OpDownload, Path is the remote file and Target the local name. An empty
// Target means the base name of Path. The other ops use Path only.
type Job struct {
	Op     Op
	Path   string
	Target string
}

func (j Job) String() string {
	if j.Target == "" {
		return fmt.Sprintf("%s %s", j.Op, j.Path)
	}
	return fmt.Sprintf("%s %s %s", j.Op, j.Path, j.Target)
}

// NewJob builds a job from a command name and its arguments, taken as
// given: an argument may contain spaces.
func NewJob(name string, args []string) (Job, error) {
	op, err := ParseOp(name)
	if err != nil {
		return Job{}, err
	}

	maxArgs := 1
	if op == OpUpload || op == OpDownload {
		maxArgs = 2
	}
	if len(args) < 1 || len(args) > maxArgs {
		return Job{}, fmt.Errorf("%s: want 1 to %d arguments, got %d", op, maxArgs, len(args))
	}
	if args[0] == "" {
		return Job{}, fmt.Errorf("%s: empty path", op)
	}

	j := Job{Op: op, Path: args[0]}
	if len(args) == 2 {
		j.Target = args[1]
	}
	return j, nil
}

// ParseJob reads a job from a script line of the form "op path [target]".
// Fields are split on whitespace, so paths cannot contain spaces here; use
// NewJob for arguments that are already split.
func ParseJob(line string) (Job, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Job{}, fmt.Errorf("empty command")
	}
	j, err := NewJob(fields[0], fields[1:])
	if err != nil {
		return Job{}, fmt.Errorf("%w in %q", err, line)
	}
	return j, nil
}

// Run executes j on the session.
func (s *Session) Run(ctx context.Context, j Job) error {
	if j.Path == "" {
		return fmt.Errorf("%s: empty path", j.Op)
	}
	switch j.Op {
	case OpUpload:
		target := j.Target
		if target == "" {
			target = filepath.Base(j.Path)
		}
		return s.Upload(ctx, j.Path, target)
	case OpDownload:
		target := j.Target
		if target == "" {
			target = path.Base(j.Path)
		}
		return s.Download(ctx, j.Path, target)
	case OpDelete:
		return s.Delete(ctx, j.Path)
	case OpChangeDir:
		return s.ChangeDir(ctx, j.Path)
	case OpMakeDir:
		return s.MakeDir(ctx, j.Path)
	}
	return fmt.Errorf("unknown command %q", j.Op)
}
