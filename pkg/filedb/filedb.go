// Package filedb is an append-only JSON-lines file used as the order formation journal.
package filedb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nxadm/tail"
)

type Filedb struct {
	mu       sync.Mutex
	File     *os.File
	FilePath string
}

func New(filePath string) (fdb *Filedb, err error) {
	fdb = &Filedb{
		FilePath: filePath,
	}
	err = fdb.Open()

	return
}

func (f *Filedb) Open() (err error) {
	err = os.MkdirAll(filepath.Dir(f.FilePath), 0755)
	if err != nil {
		return
	}

	f.File, err = os.OpenFile(f.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	return
}

func (f *Filedb) Close() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return
	}
	err = f.File.Close()
	f.File = nil
	return
}

// WriteLine appends s, which must end with a newline.
func (f *Filedb) WriteLine(s string) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err = f.File.WriteString(s)
	return
}

// Append writes v as one JSON line.
func (f *Filedb) Append(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.WriteLine(string(b) + "\n")
}

// ReadLastLine reads the last non-empty line of the file
func (f *Filedb) ReadLastLine() (s string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stat, err := f.File.Stat()
	if err != nil {
		return
	}

	// the last line is unknown in length, read the tail in growing windows until it holds a newline
	size := stat.Size()
	window := int64(1024)
	for {
		off := size - window
		if off < 0 {
			off = 0
		}
		b := make([]byte, size-off)
		_, err = f.File.ReadAt(b, off)
		if err != nil {
			return
		}

		txt := strings.Trim(string(b), " \n")
		idx := strings.LastIndex(txt, "\n")
		if idx >= 0 || off == 0 {
			return txt[idx+1:], nil
		}
		window *= 2
	}
}

// Tailf follows the file from the start and sends every complete line to ch until ctx is done.
func (f *Filedb) Tailf(ctx context.Context, ch chan<- string) (err error) {
	ta, err := tail.TailFile(f.FilePath, tail.Config{
		Follow:        true,
		ReOpen:        true,
		CompleteLines: true,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return
	}
	defer ta.Cleanup()
	defer ta.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-ta.Lines:
			if !ok {
				return ta.Err()
			}
			if line.Err != nil {
				// do not skip a broken line, the journal would be read out of order
				return line.Err
			}
			select {
			case ch <- line.Text:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
