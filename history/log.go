package history

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nielsenko/realm-core/internal/cache"
)

const defaultSegmentSize = 4 * 1024 * 1024

// FileLog is a History persisted as a directory of append-only segment
// files. Records are CRC-framed; a torn tail write is detected on open
// and the log resumes from the last intact record. Old segments are
// dropped whole by TrimBefore, never rewritten.
type FileLog struct {
	mu sync.Mutex

	dir          string
	maxSegmentSz int64

	base uint64 // newest trimmed version; changesets exist above it
	last uint64

	active     *os.File
	activeNum  uint64
	activeSize int64

	index  map[uint64]recordLoc
	segMax map[uint64]uint64 // segment -> newest version it holds
	cache  cache.Cache
}

type recordLoc struct {
	segment uint64
	offset  int64
	length  int
}

// OpenFileLog opens or creates a changeset log in dir. base names the
// initial snapshot version and is only used when the directory holds
// no records yet. cacheBytes bounds the in-memory changeset cache.
func OpenFileLog(dir string, base uint64, maxSegmentSize int64, cacheBytes int) (*FileLog, error) {
	if maxSegmentSize <= 0 {
		maxSegmentSize = defaultSegmentSize
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	l := &FileLog{
		dir:          dir,
		maxSegmentSz: maxSegmentSize,
		base:         base,
		last:         base,
		index:        make(map[uint64]recordLoc),
		segMax:       make(map[uint64]uint64),
		cache:        cache.NewLRUCache(cacheBytes),
	}

	if err := l.loadExistingSegments(); err != nil {
		return nil, err
	}
	if l.active == nil {
		if err := l.createSegment(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *FileLog) LastVersion() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// BaseVersion returns the newest trimmed version. Changesets exist
// strictly above it, up to LastVersion.
func (l *FileLog) BaseVersion() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base
}

func (l *FileLog) Append(version uint64, changeset []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if version != l.last+1 {
		return ErrBadVersion
	}
	record := encodeRecord(version, changeset)

	if l.activeSize > 0 && l.activeSize+int64(len(record)) > l.maxSegmentSz {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	offset := l.activeSize
	if _, err := l.active.Write(record); err != nil {
		return err
	}
	if err := l.active.Sync(); err != nil {
		return err
	}
	l.activeSize += int64(len(record))

	l.index[version] = recordLoc{segment: l.activeNum, offset: offset, length: len(record)}
	l.segMax[l.activeNum] = version
	l.last = version
	l.cache.Put(version, changeset)
	return nil
}

func (l *FileLog) Changesets(from, to uint64) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from < l.base {
		return nil, ErrStale
	}
	if to > l.last {
		return nil, ErrFutureVersion
	}
	out := make([][]byte, 0, to-from)
	for v := from + 1; v <= to; v++ {
		if hit := l.cache.Get(v); hit != nil {
			out = append(out, hit)
			continue
		}
		payload, err := l.readRecord(v)
		if err != nil {
			return nil, err
		}
		l.cache.Put(v, payload)
		out = append(out, payload)
	}
	return out, nil
}

// TrimBefore removes whole segments whose newest version is at or
// below version. The active segment is always retained.
func (l *FileLog) TrimBefore(version uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var nums []uint64
	for n := range l.segMax {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, n := range nums {
		if n == l.activeNum {
			break
		}
		newest := l.segMax[n]
		if newest > version {
			break // prefix rule: later segments hold later versions
		}
		if err := os.Remove(l.segmentPath(n)); err != nil {
			return err
		}
		for v := range l.index {
			if l.index[v].segment == n {
				delete(l.index, v)
			}
		}
		delete(l.segMax, n)
		if newest > l.base {
			l.base = newest
		}
	}
	return l.syncDir()
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == nil {
		return nil
	}
	if err := l.active.Sync(); err != nil {
		return err
	}
	err := l.active.Close()
	l.active = nil
	return err
}

var _ History = (*FileLog)(nil)

func (l *FileLog) readRecord(v uint64) ([]byte, error) {
	loc, ok := l.index[v]
	if !ok {
		return nil, ErrStale
	}
	f, err := os.Open(l.segmentPath(loc.segment))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, loc.length)
	if _, err := f.ReadAt(buf, loc.offset); err != nil {
		return nil, err
	}
	got, payload, _, err := decodeRecord(buf)
	if err != nil {
		return nil, err
	}
	if got != v {
		return nil, errInvalidRecord
	}
	return payload, nil
}

func (l *FileLog) loadExistingSegments() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}

	var nums []uint64
	for _, e := range entries {
		var n uint64
		if _, err := fmt.Sscanf(e.Name(), "changes_%06d.log", &n); err == nil {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	first := true
	for _, n := range nums {
		data, err := os.ReadFile(l.segmentPath(n))
		if err != nil {
			return err
		}
		offset := 0
		for offset < len(data) {
			version, _, size, err := decodeRecord(data[offset:])
			if err != nil {
				break // torn tail write, resume before it
			}
			if first {
				l.base = version - 1
				l.last = version - 1
				first = false
			}
			l.index[version] = recordLoc{segment: n, offset: int64(offset), length: size}
			l.segMax[n] = version
			if version > l.last {
				l.last = version
			}
			offset += size
		}
		if n == nums[len(nums)-1] {
			// Reopen the newest segment for appending, truncating any
			// torn record off the end.
			f, err := os.OpenFile(l.segmentPath(n), os.O_RDWR, 0644)
			if err != nil {
				return err
			}
			if err := f.Truncate(int64(offset)); err != nil {
				f.Close()
				return err
			}
			if _, err := f.Seek(0, io.SeekEnd); err != nil {
				f.Close()
				return err
			}
			l.active = f
			l.activeNum = n
			l.activeSize = int64(offset)
		}
	}
	return nil
}

func (l *FileLog) rotate() error {
	if err := l.active.Sync(); err != nil {
		return err
	}
	if err := l.active.Close(); err != nil {
		return err
	}
	return l.createSegment()
}

func (l *FileLog) createSegment() error {
	l.activeNum++
	f, err := os.OpenFile(l.segmentPath(l.activeNum), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.active = f
	l.activeSize = 0
	return l.syncDir()
}

func (l *FileLog) segmentPath(n uint64) string {
	return filepath.Join(l.dir, fmt.Sprintf("changes_%06d.log", n))
}

func (l *FileLog) syncDir() error {
	dir, err := os.Open(l.dir)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}

// IsLogFile reports whether name looks like a changeset segment.
func IsLogFile(name string) bool {
	return strings.HasPrefix(name, "changes_") && strings.HasSuffix(name, ".log")
}
