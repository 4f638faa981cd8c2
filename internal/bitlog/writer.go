package bitlog

import (
	"bufio"

	"github.com/bitlogdb/bitlog/pkg/fs"
)

// logWriter owns the append-mode handle on the log file and tracks the
// stream position so every append reports the (offset, length) the caller
// needs to update the Index.
type logWriter struct {
	fsys   fs.FS
	path   string
	file   fs.File
	buf    *bufio.Writer
	offset int64 // position of the next byte this writer will write
}

// openLogWriter opens path for append, creating it if missing, and
// positions the writer at the current end of file.
func openLogWriter(fsys fs.FS, path string) (*logWriter, error) {
	f, err := fsys.OpenFile(path, osAppendCreateFlags, 0o644)
	if err != nil {
		return nil, ioErr(err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioErr(err)
	}

	return &logWriter{
		fsys:   fsys,
		path:   path,
		file:   f,
		buf:    bufio.NewWriter(f),
		offset: info.Size(),
	}, nil
}

// append writes cmd as a single record and flushes the buffer so the bytes
// are visible to any freshly opened reader before this call returns. It
// returns the (offset, length) of the record just written.
func (w *logWriter) append(cmd Command) (offset, length int64, err error) {
	b, err := encodeRecord(cmd)
	if err != nil {
		return 0, 0, err
	}

	offset = w.offset
	length = int64(len(b))

	if _, err := w.buf.Write(b); err != nil {
		return 0, 0, ioErr(err)
	}
	if err := w.buf.Flush(); err != nil {
		return 0, 0, ioErr(err)
	}

	w.offset += length
	return offset, length, nil
}

func (w *logWriter) close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return ioErr(err)
	}
	if err := w.file.Close(); err != nil {
		return ioErr(err)
	}
	return nil
}
