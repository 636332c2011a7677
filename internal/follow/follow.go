// Package follow tails a growing session log, in the manner of tail -f.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval bounds how long the reader waits without a file event
// before checking the file again. Some filesystems never deliver events.
const DefaultPollInterval = 500 * time.Millisecond

// Reader reads a file and, at end of file, waits for more data instead of
// returning io.EOF. It returns io.EOF once its context is done.
type Reader struct {
	ctx     context.Context
	path    string
	file    *os.File
	watcher *fsnotify.Watcher
	offset  int64
	poll    time.Duration

	closeOnce sync.Once
}

// Option configures a Reader.
type Option func(*Reader)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.poll = d
		}
	}
}

// NewReader opens path for following. The file must exist.
func NewReader(ctx context.Context, path string, opts ...Option) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the directory so that rotation (remove + create) is seen too.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	r := &Reader{
		ctx:     ctx,
		path:    path,
		file:    file,
		watcher: watcher,
		poll:    DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		n, err := r.file.Read(p)
		r.offset += int64(n)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read %s: %w", r.path, err)
		}

		// Whatever was written before cancellation has been drained.
		if r.ctx.Err() != nil {
			return 0, io.EOF
		}

		if err := r.checkTruncated(); err != nil {
			return 0, err
		}
		if err := r.wait(); err != nil {
			return 0, err
		}
	}
}

// checkTruncated rewinds when the file shrank below the current offset, and
// reopens it when it was replaced.
func (r *Reader) checkTruncated() error {
	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", r.path, err)
	}

	cur, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", r.path, err)
	}

	if !os.SameFile(info, cur) {
		file, err := os.Open(r.path)
		if err != nil {
			return fmt.Errorf("reopen %s: %w", r.path, err)
		}
		r.file.Close()
		r.file = file
		r.offset = 0
		return nil
	}

	if info.Size() < r.offset {
		if _, err := r.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind %s: %w", r.path, err)
		}
		r.offset = 0
	}
	return nil
}

// wait blocks until the watched file changes, the poll interval elapses, or
// the context is done.
func (r *Reader) wait() error {
	timer := time.NewTimer(r.poll)
	defer timer.Stop()

	target := filepath.Clean(r.path)
	for {
		select {
		case <-r.ctx.Done():
			return nil
		case <-timer.C:
			return nil
		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return nil
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", r.path, err)
		}
	}
}

// Close stops watching and closes the file.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = errors.Join(r.watcher.Close(), r.file.Close())
	})
	return err
}
