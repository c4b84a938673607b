package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotateOptions controls when a log file is rotated and how many rotated
// files are kept.
type RotateOptions struct {
	Path string

	// MaxSize is the size in megabytes at which the file is rotated.
	MaxSize int64

	// MaxAge is the number of days rotated files are kept.
	MaxAge int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// Rotator is an io.Writer appending to a file that is rotated daily and
// whenever it grows past MaxSize.
type Rotator struct {
	opts   RotateOptions
	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
	now    func() time.Time
}

// NewRotator opens the log file, creating its directory if needed.
func NewRotator(opts RotateOptions) (*Rotator, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}

	r := &Rotator{opts: opts, now: time.Now}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) openFile() error {
	file, err := os.OpenFile(r.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.due(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// due reports whether writing n more bytes needs a rotation first.
func (r *Rotator) due(n int64) bool {
	if r.opts.MaxSize > 0 && r.size > 0 && r.size+n > r.opts.MaxSize*1024*1024 {
		return true
	}
	y1, m1, d1 := r.opened.Date()
	y2, m2, d2 := r.now().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func (r *Rotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	dir, name, ext := r.parts()
	rotated := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, r.now().Format("20060102-150405.000"), ext))
	if err := os.Rename(r.opts.Path, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.openFile(); err != nil {
		return err
	}

	go func() {
		if r.opts.Compress {
			compress(rotated)
		}
		r.prune()
	}()
	return nil
}

func (r *Rotator) parts() (dir, name, ext string) {
	base := filepath.Base(r.opts.Path)
	ext = filepath.Ext(base)
	return filepath.Dir(r.opts.Path), strings.TrimSuffix(base, ext), ext
}

// compress replaces path with a gzipped copy.
func compress(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	defer output.Close()

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, input); err != nil {
		gz.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// prune removes rotated files past MaxBackups or MaxAge.
func (r *Rotator) prune() {
	files, err := r.Rotated()
	if err != nil {
		return
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		entries = append(entries, entry{f, info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.After(entries[j].modTime)
	})

	cutoff := r.now().AddDate(0, 0, -r.opts.MaxAge)
	for i, e := range entries {
		if (r.opts.MaxBackups > 0 && i >= r.opts.MaxBackups) || (r.opts.MaxAge > 0 && e.modTime.Before(cutoff)) {
			os.Remove(e.path)
		}
	}
}

// Rotated lists rotated log files, compressed or not.
func (r *Rotator) Rotated() ([]string, error) {
	dir, name, ext := r.parts()
	return filepath.Glob(filepath.Join(dir, name+"-*"+ext+"*"))
}

// Close closes the current file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
