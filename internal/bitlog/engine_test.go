package bitlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitlogdb/bitlog/pkg/fs"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T, opts ...Option) (*Engine, string) {
	t.Helper()

	dir := t.TempDir()
	e, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return e, dir
}

// Scenario 1: Set/Get/Update.
func TestEngine_SetGetUpdate(t *testing.T) {
	e, _ := openTestEngine(t)

	require.NoError(t, e.Set("user", "Alice"))
	require.NoError(t, e.Set("email", "a@x"))
	require.NoError(t, e.Set("user", "Bob"))

	v, ok, err := e.Get("user")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bob", v)

	v, ok, err = e.Get("email")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@x", v)

	_, ok, err = e.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

// Scenario 2: Remove then Get.
func TestEngine_RemoveThenGet(t *testing.T) {
	e, _ := openTestEngine(t)

	require.NoError(t, e.Set("k", "v"))
	require.NoError(t, e.Remove("k"))

	_, ok, err := e.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	err = e.Remove("k")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

// Scenario 3 / P1 / P3: reopen durability.
func TestEngine_ReopenDurability(t *testing.T) {
	e, dir := openTestEngine(t)

	require.NoError(t, e.Set("user", "Alice"))
	require.NoError(t, e.Set("email", "a@x"))
	require.NoError(t, e.Set("user", "Bob"))
	require.NoError(t, e.Close())

	e2, err := Open(dir)
	require.NoError(t, err)
	defer e2.Close()

	v, ok, err := e2.Get("user")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bob", v)

	v, ok, err = e2.Get("email")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@x", v)

	_, ok, err = e2.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

// Scenario 4 / P4: compaction trigger and accounting.
func TestEngine_CompactionTrigger(t *testing.T) {
	e, dir := openTestEngine(t, WithCompactionThreshold(200))

	value := strings.Repeat("0", 50)
	for range 20 {
		require.NoError(t, e.Set("x", value))
	}

	v, ok, err := e.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value, v)

	// Each record is 81 bytes. Compaction fires whenever stale bytes reach
	// 243 (sets 4, 7, ..., 19), so set 20 leaves one stale record behind.
	stats := e.Stats()
	require.Equal(t, int64(81), stats.Uncompacted)

	info, err := os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	require.Less(t, info.Size(), int64(200))
}

// P5: compaction preserves the index.
func TestEngine_CompactionPreservesIndex(t *testing.T) {
	e, dir := openTestEngine(t)

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Set("a", "3"))
	require.NoError(t, e.Remove("b"))
	require.NoError(t, e.Set("c", "4"))

	before := map[string]string{}
	for _, k := range []string{"a", "c"} {
		v, ok, err := e.Get(k)
		require.NoError(t, err)
		require.True(t, ok)
		before[k] = v
	}

	require.NoError(t, e.Compact(context.Background()))
	require.Equal(t, int64(0), e.Stats().Uncompacted)

	require.NoError(t, e.Close())

	e2, err := Open(dir)
	require.NoError(t, err)
	defer e2.Close()

	for k, want := range before {
		got, ok, err := e2.Get(k)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok, err := e2.Get("b")
	require.NoError(t, err)
	require.False(t, ok)

	if diff := cmp.Diff(e.Stats(), e2.Stats()); diff != "" {
		t.Errorf("stats mismatch after reopen (-before +after):\n%s", diff)
	}
}

// P6: crash safety of compaction - failure before rename leaves the
// pre-compaction state intact.
func TestEngine_CompactionCrashSafety_BeforeRename(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()

	e, err := Open(dir, withFS(real))
	require.NoError(t, err)

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))

	preStats := e.Stats()
	preA, _, _ := e.Get("a")
	preB, _, _ := e.Get("b")
	require.NoError(t, e.Close())

	injected := errors.New("simulated crash before rename")
	faulty := fs.NewFault(real, fs.FaultOpRename, 1, injected)

	e2, err := Open(dir, withFS(faulty))
	require.NoError(t, err)

	err = e2.Compact(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCompactionFailed)

	require.NoError(t, e2.Close())

	// store.log.compact is left behind; store.log is untouched.
	_, err = os.Stat(filepath.Join(dir, compactFileName))
	require.NoError(t, err)

	e3, err := Open(dir, withFS(real))
	require.NoError(t, err)
	defer e3.Close()

	// The stale compaction file was cleaned up on this open.
	_, err = os.Stat(filepath.Join(dir, compactFileName))
	require.True(t, os.IsNotExist(err))

	require.Equal(t, preStats, e3.Stats())

	a, ok, err := e3.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, preA, a)

	b, ok, err := e3.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, preB, b)

	// A fresh compaction attempt now succeeds.
	require.NoError(t, e3.Compact(context.Background()))
	require.Equal(t, int64(0), e3.Stats().Uncompacted)
}

// P6: a crash after a successful rename leaves the post-compaction state as
// canonical; reopening replays it normally.
func TestEngine_CompactionCrashSafety_AfterRename(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Compact(context.Background()))
	postStats := e.Stats()
	require.NoError(t, e.Close())

	e2, err := Open(dir)
	require.NoError(t, err)
	defer e2.Close()

	require.Equal(t, postStats, e2.Stats())

	a, ok, err := e2.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", a)
}

// P7: remove on an absent key appends nothing.
func TestEngine_RemoveAbsentKey_NoSpuriousBytes(t *testing.T) {
	e, dir := openTestEngine(t)

	require.NoError(t, e.Set("k", "v"))

	before, err := os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)

	err = e.Remove("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)

	after, err := os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)

	require.Equal(t, before.Size(), after.Size())
}

// P8: empty key rejection.
func TestEngine_EmptyKeyRejected(t *testing.T) {
	e, dir := openTestEngine(t)

	err := e.Set("", "v")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, ok, err := e.Get("")
	require.NoError(t, err)
	require.False(t, ok)

	err = e.Remove("")
	require.ErrorIs(t, err, ErrInvalidKey)

	info, err := os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size())
}

// P9: trailing truncation tolerance.
func TestEngine_TrailingTruncationTolerance(t *testing.T) {
	e, dir := openTestEngine(t)

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Close())

	logPath := filepath.Join(dir, logFileName)

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte(`{"Set":{"key":"c","value":"garbage-no-newli`))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	e2, err := Open(dir)
	require.NoError(t, err)
	defer e2.Close()

	a, ok, err := e2.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", a)

	b, ok, err := e2.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", b)

	_, ok, err = e2.Get("c")
	require.NoError(t, err)
	require.False(t, ok)
}

// Scenario 6: invalid key rejection leaves the log untouched.
func TestEngine_InvalidKeyScenario(t *testing.T) {
	e, dir := openTestEngine(t)

	err := e.Set("", "v")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, ok, err := e.Get("")
	require.NoError(t, err)
	require.False(t, ok)

	info, err := os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size())
}

func TestEngine_SetCompactionThreshold(t *testing.T) {
	e, _ := openTestEngine(t, WithCompactionThreshold(1<<20))
	e.SetCompactionThreshold(10)

	require.NoError(t, e.Set("k", strings.Repeat("x", 20)))
	require.NoError(t, e.Set("k", strings.Repeat("y", 20)))

	require.Equal(t, int64(0), e.Stats().Uncompacted)
}

func TestOpen_ConcurrentOpenFailsFast(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(dir)
	require.NoError(t, err)
	defer e1.Close()

	_, err = Open(dir)
	require.Error(t, err)
}
