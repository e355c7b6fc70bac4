package wire

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-retry"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/container"
)

// The *File variants are the producer-side entry points: they lay the
// container out, write header plus body to path and fsync, creating the
// parent directory on demand. A file written here is exactly what the
// segment/shared packages size and load a region from.

func dumpToFile(path string, write func(f *os.File) error) error {
	create := func() (*os.File, error) {
		f, err := os.Create(path)
		if err == nil {
			return f, nil
		}
		if derr := os.MkdirAll(filepath.Dir(path), 0o755); derr != nil {
			return nil, err
		}
		return os.Create(path)
	}
	return sop.Retry(context.Background(), func(context.Context) error {
		f, err := create()
		if err != nil {
			if sop.ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if err := write(f); err != nil {
			f.Close()
			// A half-written file must not be loadable. Layout errors
			// (bad element type) are permanent; do not spin on them.
			os.Remove(path)
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Debug(fmt.Sprintf("dump succ. file=%s", path))
		return nil
	}, nil)
}

// DumpVectorFile writes data as a Vector[T,S] container file at path.
func DumpVectorFile[T any, S sizeType](path string, data []T) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpVector[T, S](f, data, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpNestedVectorFile writes rows as a NestedVector[T,S] container file
// at path.
func DumpNestedVectorFile[T any, S sizeType](path string, rows [][]T) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpNestedVector[T, S](f, rows, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpSortedMapFile writes entries as a SortedMap[K,V] container file at
// path.
func DumpSortedMapFile[K any, V any](path string, entries []container.Pair[K, V], less func(a, b K) bool) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpSortedMap(f, entries, less, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpSortedSetFile writes keys as a SortedSet[K] container file at path.
func DumpSortedSetFile[K any](path string, keys []K, less func(a, b K) bool) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpSortedSet(f, keys, less, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpNestedMapFile writes rows as a NestedMap[K,V,S] container file at
// path.
func DumpNestedMapFile[K any, V any, S sizeType](path string, rows [][]container.Pair[K, V], less func(a, b K) bool) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpNestedMap[K, V, S](f, rows, less, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpHashMapFile writes entries as a HashMap[K,V] container file at path.
func DumpHashMapFile[K comparable, V any](path string, entries map[K]V, hashFn func(K) uint64, less func(a, b K) bool) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpHashMap(f, entries, hashFn, less, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpHashSetFile writes keys as a HashSet[K] container file at path.
func DumpHashSetFile[K any](path string, keys []K, hashFn func(K) uint64, equal func(a, b K) bool) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpHashSet(f, keys, hashFn, equal, sop.MakeFlags(sop.SCVersion))
	})
}

// DumpNestedHashMapFile writes entries as a NestedHashMap[K,V] container
// file at path.
func DumpNestedHashMapFile[K comparable, V any](path string, entries map[K][]V, hashFn func(K) uint64, less func(a, b K) bool) error {
	return dumpToFile(path, func(f *os.File) error {
		return DumpNestedHashMap(f, entries, hashFn, less, sop.MakeFlags(sop.SCVersion))
	})
}
