// Package feedfile reads broker transaction exports stored as json lines,
// one transaction per line, and follows files that are still being written.
package feedfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nxadm/tail"
)

type Feedfile struct {
	File     *os.File
	FilePath string

	// ToStoreHandler receives batches of raw json lines and loads them
	ToStoreHandler func([]string) error
}

func New(filePath string) (f *Feedfile, err error) {
	f = &Feedfile{
		FilePath: filePath,
	}
	err = f.Open()

	return
}

func (f *Feedfile) Open() (err error) {
	err = os.MkdirAll(filepath.Dir(f.FilePath), 0755)
	if err != nil {
		return
	}

	f.File, err = os.OpenFile(f.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	return
}

func (f *Feedfile) Close() (err error) {
	if f.File == nil {
		return
	}

	err = f.File.Close()
	if err != nil {
		return
	}

	f.File = nil

	return
}

func (f *Feedfile) WriteLine(s string) (err error) {
	_, err = f.File.WriteString(s)
	return
}

// ReadLastLine reads the last non-empty line of the file
func (f *Feedfile) ReadLastLine() (s string, err error) {
	stat, err := f.File.Stat()
	if err != nil {
		return
	}

	// the last line length is unknown, read the final 1024 bytes and split on \n
	var b []byte
	var off int64
	size := stat.Size()
	if size < 1024 {
		b = make([]byte, size)
	} else {
		b = make([]byte, 1024)
		off = size - 1024
	}

	_, err = f.File.ReadAt(b, off)
	if err != nil {
		return
	}

	txt := strings.Trim(string(b), " \n")
	txts := strings.Split(txt, "\n")

	if len(txts) == 0 {
		return
	}

	s = txts[len(txts)-1]

	return
}

// ReadFirstLine reads the first non-empty line of the file
func (f *Feedfile) ReadFirstLine() (s string, err error) {
	_, err = f.File.Seek(0, 0)
	if err != nil {
		return
	}

	reader := bufio.NewReader(f.File)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		line = strings.TrimSpace(line)
		if line != "" {
			s = line
			return s, nil
		}
	}

	return "", io.EOF
}

// Tailf continuously follows new lines appended to the export and passes
// them on via ch
func (f *Feedfile) Tailf(ch chan<- string) (err error) {
	ta, err := tail.TailFile(f.FilePath, tail.Config{
		Follow:        true,
		ReOpen:        true,
		CompleteLines: true,
	})
	if err != nil {
		return
	}

	for line := range ta.Lines {
		if line.Err != nil {
			// a bad line means the follower lost its place, bail instead of
			// silently skipping and reordering the feed
			err = line.Err
			return
		}

		ch <- line.Text
	}

	return
}

// ToStore reads lines from ch and loads them in batches. This is just the
// control logic, the actual loading is done in f.ToStoreHandler.
func (f *Feedfile) ToStore(ch <-chan string) (err error) {
	ss := make([]string, 100)

	for {
		size := 1
		if len(ch) > 1 {
			if len(ch) < len(ss) {
				size = len(ch)
			} else {
				size = len(ss)
			}
		}

		var ok bool
		for i := 0; i < size; i++ {
			ss[i], ok = <-ch
			if !ok {
				return
			}
		}

		err = f.ToStoreHandler(ss[:size])
		if err != nil {
			return
		}
	}
}
