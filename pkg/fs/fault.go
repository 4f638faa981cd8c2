package fs

import (
	"os"
	"sync"
)

// FaultOp identifies an [FS] method that [Fault] can be configured to fail.
type FaultOp string

// Valid FaultOp values for [NewFault].
const (
	FaultOpOpen     FaultOp = "open"
	FaultOpCreate   FaultOp = "create"
	FaultOpOpenFile FaultOp = "openfile"
	FaultOpRename   FaultOp = "rename"
	FaultOpRemove   FaultOp = "remove"
	FaultOpMkdirAll FaultOp = "mkdirall"
	FaultOpTruncate FaultOp = "truncate"
)

// Fault wraps an [FS] and deterministically fails the Nth call to a chosen
// operation, simulating a process crash at that exact point without
// actually terminating the test process.
//
// Unlike the teacher's randomized chaos/crash injection, Fault targets one
// call so compaction crash-safety tests (P6) can assert exactly which step
// failed and what state that leaves on disk.
type Fault struct {
	inner FS
	mu    sync.Mutex
	op    FaultOp
	after int // fail on the Nth eligible call (1-indexed); 0 disables
	seen  int
	err   error
}

// NewFault wraps fsys so that the `after`-th call to op returns err instead
// of delegating to fsys. After firing once, Fault reverts to delegating
// normally (a second compaction attempt should succeed).
func NewFault(fsys FS, op FaultOp, after int, err error) *Fault {
	return &Fault{inner: fsys, op: op, after: after, err: err}
}

func (f *Fault) trip(op FaultOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.op != op || f.after <= 0 {
		return nil
	}

	f.seen++
	if f.seen != f.after {
		return nil
	}

	// Disable after firing so a retried operation can succeed.
	f.after = 0

	return f.err
}

func (f *Fault) Open(path string) (File, error) {
	if err := f.trip(FaultOpOpen); err != nil {
		return nil, err
	}

	return f.inner.Open(path)
}

func (f *Fault) Create(path string) (File, error) {
	if err := f.trip(FaultOpCreate); err != nil {
		return nil, err
	}

	return f.inner.Create(path)
}

func (f *Fault) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.trip(FaultOpOpenFile); err != nil {
		return nil, err
	}

	return f.inner.OpenFile(path, flag, perm)
}

func (f *Fault) ReadFile(path string) ([]byte, error) {
	return f.inner.ReadFile(path)
}

func (f *Fault) WriteFile(path string, data []byte, perm os.FileMode) error {
	return f.inner.WriteFile(path, data, perm)
}

func (f *Fault) ReadDir(path string) ([]os.DirEntry, error) {
	return f.inner.ReadDir(path)
}

func (f *Fault) MkdirAll(path string, perm os.FileMode) error {
	if err := f.trip(FaultOpMkdirAll); err != nil {
		return err
	}

	return f.inner.MkdirAll(path, perm)
}

func (f *Fault) Stat(path string) (os.FileInfo, error) {
	return f.inner.Stat(path)
}

func (f *Fault) Exists(path string) (bool, error) {
	return f.inner.Exists(path)
}

func (f *Fault) Remove(path string) error {
	if err := f.trip(FaultOpRemove); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *Fault) RemoveAll(path string) error {
	return f.inner.RemoveAll(path)
}

func (f *Fault) Rename(oldpath, newpath string) error {
	if err := f.trip(FaultOpRename); err != nil {
		return err
	}

	return f.inner.Rename(oldpath, newpath)
}

func (f *Fault) Truncate(path string, size int64) error {
	if err := f.trip(FaultOpTruncate); err != nil {
		return err
	}

	return f.inner.Truncate(path, size)
}

var _ FS = (*Fault)(nil)
