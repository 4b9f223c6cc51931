package internal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nxadm/tail"
)

// FileLogSource follows container logs straight from the node, the way the
// kubelet lays them out:
// /var/log/pods/NAMESPACE_PODNAME_UID/CONTAINER/N.log
type FileLogSource struct {
	dir       string
	namespace string
	poll      bool
}

func NewFileLogSource(dir, namespace string) *FileLogSource {
	return &FileLogSource{dir: dir, namespace: namespace}
}

func (s *FileLogSource) Open(ctx context.Context, key TaskKey) (io.ReadCloser, error) {
	path, err := s.latest(key)
	if err != nil {
		return nil, err
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    false,
		MustExist: true,
		Poll:      s.poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tail.TailFile(%s) failed: %w", path, err)
	}

	r, w := io.Pipe()
	go func() {
		defer t.Cleanup()
		for {
			select {
			case line, ok := <-t.Lines:
				if !ok {
					w.CloseWithError(t.Err())
					return
				}
				if line.Err != nil {
					w.CloseWithError(line.Err)
					return
				}
				if _, err := io.WriteString(w, stripCRI(line.Text)+"\n"); err != nil {
					t.Stop()
					return
				}
			case <-ctx.Done():
				t.Stop()
				w.CloseWithError(ctx.Err())
				return
			}
		}
	}()
	return r, nil
}

// latest picks the newest rotation of the container log, 0.log being the
// first run and each restart adding one.
func (s *FileLogSource) latest(key TaskKey) (string, error) {
	pattern := filepath.Join(s.dir, s.namespace+"_"+key.Pod+"_*", key.Container, "*.log")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("filepath.Glob(%s) failed: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, pattern)
	}
	sort.Slice(matches, func(i, j int) bool {
		return restartCount(matches[i]) < restartCount(matches[j])
	})
	return matches[len(matches)-1], nil
}

func restartCount(path string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(path), ".log"))
	if err != nil {
		return -1
	}
	return n
}

// stripCRI drops the "<ts> <stream> <flag> " prefix of CRI log lines.
func stripCRI(line string) string {
	parts := strings.SplitN(line, " ", 4)
	if len(parts) == 4 {
		return parts[3]
	}
	return line
}
