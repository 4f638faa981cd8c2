package bitlog

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bitlogdb/bitlog/pkg/fs"
)

// osAppendCreateFlags opens the log for append, creating it if missing. No
// O_TRUNC: the whole point is to keep existing records.
const osAppendCreateFlags = os.O_APPEND | os.O_CREATE | os.O_RDWR

// defaultCompactionThreshold is the uncompacted-byte threshold (§4.4.6)
// applied when Open isn't given [WithCompactionThreshold].
const defaultCompactionThreshold = 1 << 20 // 1 MiB

const (
	logFileName     = "store.log"
	compactFileName = "store.log.compact"
	lockFileName    = "store.log.lock"
)

// Stats is a read-only snapshot of the Index & Accounting component,
// exposed so callers (the CLI's `stats` subcommand, the REPL, tests of P4)
// can observe engine-internal bookkeeping without reaching into it.
type Stats struct {
	TotalBytes  int64
	LiveBytes   int64
	Uncompacted int64
	Keys        int
}

// Engine is the façade described in §4.4: on Open it replays the log to
// rebuild the Index and Accounting; Set/Get/Remove route through the
// codec, the log writer, and the index; Compact rewrites only live records
// and atomically swaps them into place.
//
// An Engine is not safe for concurrent use by multiple goroutines; per §5
// the scheduling model is a single owner performing all operations in
// sequence.
type Engine struct {
	fsys   fs.FS
	dir    string
	logger *slog.Logger

	writer *logWriter
	ix     *index

	threshold int64

	lock   *fs.Lock
	locker *fs.Locker
}

// Option configures [Open].
type Option func(*Engine)

// WithCompactionThreshold overrides the default 1 MiB uncompacted-byte
// threshold (§4.4.6).
func WithCompactionThreshold(bytes int64) Option {
	return func(e *Engine) { e.threshold = bytes }
}

// WithLogger sets the logger used for compaction diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// withFS overrides the filesystem implementation. Unexported: production
// callers always get [fs.Real]; tests reach for [fs.Fault] via this hook
// through the internal test files in this package.
func withFS(fsys fs.FS) Option {
	return func(e *Engine) { e.fsys = fsys }
}

// Open opens (creating if necessary) the store rooted at dir, per §4.4.1:
// it creates the directory if missing, opens store.log for append, removes
// any stale store.log.compact left by an interrupted compaction, and
// replays store.log to rebuild the Index and Accounting.
//
// Open takes an exclusive advisory lock on a sibling store.log.lock file
// for the lifetime of the returned Engine; a second Open on the same
// directory from this or another process fails fast instead of silently
// corrupting state, per §5/§9's single-writer hardening note.
func Open(dir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		fsys:      fs.NewReal(),
		dir:       dir,
		logger:    slog.Default(),
		threshold: defaultCompactionThreshold,
		ix:        newIndex(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr(err)
	}

	locker := fs.NewLocker(e.fsys)
	lock, err := locker.TryLock(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, ioErr(err)
	}
	e.locker = locker
	e.lock = lock

	if err := e.removeStaleCompactFile(); err != nil {
		_ = lock.Close()
		return nil, err
	}

	logPath := filepath.Join(dir, logFileName)

	if err := e.replay(logPath); err != nil {
		_ = lock.Close()
		return nil, err
	}

	w, err := openLogWriter(e.fsys, logPath)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}
	e.writer = w

	return e, nil
}

// removeStaleCompactFile implements the open-time recovery case (b) of §7 /
// the lazy-cleanup note in §4.4.5: a store.log.compact left over from a crash before rename
// is garbage and must not influence replay.
func (e *Engine) removeStaleCompactFile() error {
	path := filepath.Join(e.dir, compactFileName)

	exists, err := e.fsys.Exists(path)
	if err != nil {
		return ioErr(err)
	}
	if !exists {
		return nil
	}

	if err := e.fsys.Remove(path); err != nil {
		return ioErr(err)
	}

	e.logger.Debug("removed stale compaction file", "path", path)
	return nil
}

// replay implements §4.4.1 steps 1-4: scan store.log from the start,
// rebuilding the Index and Accounting, tolerating and truncating a trailing
// incomplete final line.
func (e *Engine) replay(logPath string) error {
	exists, err := e.fsys.Exists(logPath)
	if err != nil {
		return ioErr(err)
	}
	if !exists {
		return nil
	}

	f, err := e.fsys.Open(logPath)
	if err != nil {
		return ioErr(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ioErr(err)
	}

	var offset int64
	validEnd := int64(0)

	for offset < int64(len(data)) {
		nl := bytes.IndexByte(data[offset:], '\n')
		if nl < 0 {
			// Trailing incomplete line; tolerate per §4.2/§4.4.1 step 3.
			break
		}

		lineLen := int64(nl) + 1
		line := data[offset : offset+lineLen-1]

		if len(bytes.TrimSpace(line)) == 0 {
			// Blank line: skip, uncounted, per §9's empty-line tolerance note.
			offset += lineLen
			validEnd = offset
			continue
		}

		cmd, err := decodeRecord(line, offset)
		if err != nil {
			// A non-trailing record that fails to decode is irrecoverable
			// corruption, not tolerated truncation.
			return err
		}

		switch {
		case cmd.Set != nil:
			e.ix.applySet(cmd.Set.Key, offset, lineLen)
		case cmd.Remove != nil:
			e.ix.applyRemove(cmd.Remove.Key, lineLen)
		}

		offset += lineLen
		validEnd = offset
	}

	if validEnd != int64(len(data)) {
		if err := e.fsys.Truncate(logPath, validEnd); err != nil {
			return ioErr(err)
		}
	}

	return nil
}

// Close releases the engine's resources: the log writer handle and the
// advisory lock. It does not flush anything beyond what each append
// already flushed.
func (e *Engine) Close() error {
	var err error
	if e.writer != nil {
		err = e.writer.close()
	}
	if e.lock != nil {
		if uerr := e.lock.Close(); uerr != nil && err == nil {
			err = ioErr(uerr)
		}
	}
	return err
}

// Set implements §4.4.2.
func (e *Engine) Set(key, value string) error {
	if key == "" {
		return invalidKeyErr(key, "key must be non-empty")
	}

	offset, length, err := e.writer.append(setCommand(key, value))
	if err != nil {
		return err
	}

	e.ix.applySet(key, offset, length)

	return e.maybeCompact()
}

// Get implements §4.4.3. A miss returns ("", false, nil).
func (e *Engine) Get(key string) (string, bool, error) {
	loc, ok := e.ix.get(key)
	if !ok {
		return "", false, nil
	}

	logPath := filepath.Join(e.dir, logFileName)

	f, err := e.fsys.Open(logPath)
	if err != nil {
		return "", false, ioErr(err)
	}
	defer f.Close()

	if _, err := f.Seek(loc.offset, io.SeekStart); err != nil {
		return "", false, ioErr(err)
	}

	buf := make([]byte, loc.length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", false, ioErr(err)
	}

	line := bytes.TrimRight(buf, "\n")

	cmd, err := decodeRecord(line, loc.offset)
	if err != nil {
		return "", false, err
	}

	if cmd.Set == nil {
		return "", false, logCorruptionErr(loc.offset, errNotASet)
	}
	if cmd.Set.Key != key {
		return "", false, logCorruptionErr(loc.offset, errWrongKey)
	}

	return cmd.Set.Value, true, nil
}

// Remove implements §4.4.4.
func (e *Engine) Remove(key string) error {
	if key == "" {
		return invalidKeyErr(key, "key must be non-empty")
	}

	if _, ok := e.ix.get(key); !ok {
		return keyNotFoundErr(key)
	}

	_, length, err := e.writer.append(removeCommand(key))
	if err != nil {
		return err
	}

	e.ix.applyRemove(key, length)

	return e.maybeCompact()
}

// SetCompactionThreshold implements §4.4.6.
func (e *Engine) SetCompactionThreshold(thresholdBytes int64) {
	e.threshold = thresholdBytes
}

// Stats returns a snapshot of the Index & Accounting component.
func (e *Engine) Stats() Stats {
	return Stats{
		TotalBytes:  e.ix.totalBytes,
		LiveBytes:   e.ix.liveBytes,
		Uncompacted: e.ix.uncompacted(),
		Keys:        e.ix.len(),
	}
}

func (e *Engine) maybeCompact() error {
	if e.ix.uncompacted() < e.threshold {
		return nil
	}
	return e.Compact(context.Background())
}

// Compact runs the seven-step protocol of §4.4.5 unconditionally. It is
// exposed directly (beyond the automatic post-write trigger) for the CLI's
// `compact` subcommand and for deterministic tests of crash safety.
func (e *Engine) Compact(ctx context.Context) error {
	logPath := filepath.Join(e.dir, logFileName)
	compactPath := filepath.Join(e.dir, compactFileName)

	// Step 2: truncate any pre-existing compaction file (crash during a
	// prior attempt).
	cf, err := e.fsys.OpenFile(compactPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return compactionFailedErr("open compaction file", err)
	}

	newIx := newIndex()
	bw := bufio.NewWriter(cf)

	// Step 3: copy each live record's bytes into the compaction file.
	rf, err := e.fsys.Open(logPath)
	if err != nil {
		_ = cf.Close()
		return compactionFailedErr("open source log", err)
	}

	var newOffset int64
	for key, loc := range e.ix.entries {
		if err := ctx.Err(); err != nil {
			_ = rf.Close()
			_ = cf.Close()
			return compactionFailedErr("context canceled", err)
		}

		if _, err := rf.Seek(loc.offset, io.SeekStart); err != nil {
			_ = rf.Close()
			_ = cf.Close()
			return compactionFailedErr("seek source log", err)
		}

		buf := make([]byte, loc.length)
		if _, err := io.ReadFull(rf, buf); err != nil {
			_ = rf.Close()
			_ = cf.Close()
			return compactionFailedErr("read live record", err)
		}

		if _, err := bw.Write(buf); err != nil {
			_ = rf.Close()
			_ = cf.Close()
			return compactionFailedErr("write compaction file", err)
		}

		newIx.entries[key] = location{offset: newOffset, length: loc.length}
		newIx.liveBytes += loc.length
		newOffset += loc.length
	}
	_ = rf.Close()

	newIx.totalBytes = newIx.liveBytes

	// Step 4: flush and close the compaction file.
	if err := bw.Flush(); err != nil {
		_ = cf.Close()
		return compactionFailedErr("flush compaction file", err)
	}
	if err := cf.Close(); err != nil {
		return compactionFailedErr("close compaction file", err)
	}

	// Step 5: close the current append handle.
	if err := e.writer.close(); err != nil {
		// logPath itself is untouched by a failed close; reopen so the
		// engine stays operable for a future retry.
		if w, reopenErr := openLogWriter(e.fsys, logPath); reopenErr == nil {
			e.writer = w
		}
		return compactionFailedErr("close log writer", err)
	}

	// Step 6: atomic rename, the sole commit point.
	if err := e.fsys.Rename(compactPath, logPath); err != nil {
		// Original log untouched; reopen the writer so the engine stays
		// operable for a future retry.
		w, reopenErr := openLogWriter(e.fsys, logPath)
		if reopenErr == nil {
			e.writer = w
		}
		return compactionFailedErr("rename compaction file over log", err)
	}

	// Step 7: swap in the new Index (it describes the file now at logPath),
	// reset Accounting, and reopen the writer.
	e.ix = newIx
	w, err := openLogWriter(e.fsys, logPath)
	if err != nil {
		return compactionFailedErr("reopen log writer after rename", err)
	}
	e.writer = w

	e.logger.Info("compaction complete",
		"keys", newIx.len(),
		"live_bytes", newIx.liveBytes,
	)

	return nil
}
