package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/eapache/queue"

	"github.com/gonzalop/ftpsession"
)

// scriptLine is one parsed command of a batch or parallel file.
type scriptLine struct {
	num int
	job ftpsession.Job
}

// readScript parses a command file: one "op path [target]" per line, blank
// lines and lines starting with # are skipped. Every line is checked before
// any command runs.
func readScript(path string) ([]scriptLine, error) {
	// #nosec G304 -- path is from CLI args
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []scriptLine
	sc := bufio.NewScanner(f)
	for num := 1; sc.Scan(); num++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		job, err := ftpsession.ParseJob(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, num, err)
		}
		lines = append(lines, scriptLine{num: num, job: job})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

// runBatch runs a command file in order over a single login and stops at
// the first failure.
func runBatch(ctx context.Context, path string, newSession func() (*ftpsession.Session, error)) error {
	lines, err := readScript(path)
	if err != nil {
		return err
	}

	pending := queue.New()
	for _, l := range lines {
		pending.Add(l)
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	s.SetAutoDisconnect(false)

	for pending.Length() > 0 {
		l := pending.Remove().(scriptLine)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Run(ctx, l.job); err != nil {
			return fmt.Errorf("%s:%d: %s: %w (%d commands not run)", path, l.num, l.job, err, pending.Length())
		}
	}
	return nil
}

// runParallel runs every command of the file on its own session, at most
// jobs at a time.
func runParallel(ctx context.Context, path string, jobs int, newSession func() (*ftpsession.Session, error)) error {
	lines, err := readScript(path)
	if err != nil {
		return err
	}

	all := make([]ftpsession.Job, 0, len(lines))
	for _, l := range lines {
		all = append(all, l.job)
	}
	return ftpsession.Parallel(ctx, jobs, newSession, all...)
}
