// Package mlog is a maybe-log: a small wrapper of standard log which prints only when the caller's file
// matches the pattern provided by MLOG environment variable, -mlog flag or SetPattern. Disabled logging costs
// one atomic load. Call stack depth is turned into indentation to make traces of recursive code readable.
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	stateUninitialized int32 = iota
	stateInitializing
	stateDisabled
	stateEnabled
)

const maxDepth = 100

var (
	status atomic.Int32

	// Everything below is guarded by mutex.
	mutex         sync.Mutex
	logger        = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
	flagPattern   *string
	pattern       string
	patternRegexp *regexp.Regexp
	file2Debug    map[string]bool
	minDepth      int
	callers       []uintptr
)

func init() {
	flagPattern = flag.String("mlog", "", "Enable logging based on the given file regular expression")
	reset()
}

func reset() {
	mutex.Lock()
	defer mutex.Unlock()

	status.Store(stateUninitialized)
	minDepth = maxDepth
	callers = make([]uintptr, maxDepth)
}

// IsEnabled can be used to check if mlog is in use at all before doing something expensive.
func IsEnabled() bool {
	return status.Load() != stateDisabled
}

// SetLogger overrides the logger used as output. The returned function restores the previous one.
func SetLogger(l *log.Logger) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()

	oldLogger := logger
	logger = l
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = oldLogger
	}
}

// SetPattern sets the pattern by hand, overriding environment and flag. The returned function restores
// the previous pattern.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()

	oldPattern := pattern
	initializeWithPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		initializeWithPattern(oldPattern)
	}
}

func initializeWithPattern(p string) {
	pattern = p
	if p == "" {
		status.Store(stateDisabled)
		return
	}
	patternRegexp = regexp.MustCompile(p)
	file2Debug = map[string]bool{}
	minDepth = maxDepth
	status.Store(stateEnabled)
}

func initialize() {
	if !status.CompareAndSwap(stateUninitialized, stateInitializing) {
		return
	}
	p := os.Getenv("MLOG")
	if *flagPattern != "" {
		p = *flagPattern
	}
	initializeWithPattern(p)
}

// Printf is drop-in replacement of log.Printf. It calls runtime.Caller when enabled, so Printf2 is preferred
// on paths executed often.
func Printf(format string, args ...any) {
	if status.Load() == stateDisabled {
		return
	}
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	Printf2(file, format, args...)
}

// Printf2 logs the message if the provided file name matches the pattern.
func Printf2(file string, format string, args ...any) {
	st := status.Load()
	if st == stateDisabled {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()

	if st < stateDisabled {
		initialize()
		if status.Load() != stateEnabled {
			return
		}
	}

	debug, ok := file2Debug[file]
	if !ok {
		debug = patternRegexp.MatchString(file)
		file2Debug[file] = debug
	}
	if !debug {
		return
	}

	depth := runtime.Callers(1, callers)
	if depth < minDepth {
		minDepth = depth
	}
	depth -= minDepth
	if depth > 0 {
		format = fmt.Sprint(strings.Repeat(".", depth), format)
	}

	logger.Printf(format, args...)
}
