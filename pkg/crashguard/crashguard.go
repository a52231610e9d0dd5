// Package crashguard implements component J: a persistent crash
// counter that stops the engine from repeatedly reloading a pedalboard
// that crashes the process before it has produced a single block of
// audio.
package crashguard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/basswood-audio/pedalengine/pkg/diag"
)

// MaxCount is the crash count above which the engine refuses to load
// the user's current pedalboard and falls back to the empty one.
const MaxCount = 4

// powerOffResetWindow and staleWindow bound the startup heuristic in
// §4.J: a crash timestamp younger than powerOffResetWindow looks like
// someone pulled the plug mid-session (not a crash loop), and one
// older than staleWindow is irrelevant history.
const (
	powerOffResetWindow = 3 * time.Second
	staleWindow         = 10 * time.Minute
)

// Guard is the loaded, mutable crash counter for one pedalboard-load
// cycle. It is not safe for concurrent use; the engine owns exactly
// one Guard at a time.
type Guard struct {
	path           string
	count          int
	lastCrashMs    int64
	log            *diag.Logger
	bracketDepth   int
}

// Load reads path (creating a zeroed counter file if absent) and
// applies the startup reset heuristic.
func Load(path string) (*Guard, error) {
	g := &Guard{path: path, log: diag.Root().With("crashguard")}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, g.flush()
	}
	if err != nil {
		return nil, fmt.Errorf("crashguard: reading %s: %w", path, err)
	}

	count, lastCrashMs, err := parse(string(data))
	if err != nil {
		g.log.Warn("crashguard file corrupt, resetting", "error", err)
		return g, g.flush()
	}
	g.count = count
	g.lastCrashMs = lastCrashMs

	nowMs := time.Now().UnixMilli()
	age := time.Duration(nowMs-lastCrashMs) * time.Millisecond
	switch {
	case age < powerOffResetWindow:
		g.log.Info("crash within power-off-reset window, clearing", "age", age)
		g.count = 0
	case age > staleWindow:
		g.count = 0
	}
	return g, nil
}

func parse(data string) (count int, lastCrashMs int64, err error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) != 2 {
		return 0, 0, fmt.Errorf("expected 2 lines, got %d", len(lines))
	}
	count, err = strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, 0, err
	}
	lastCrashMs, err = strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return count, lastCrashMs, nil
}

func (g *Guard) flush() error {
	body := fmt.Sprintf("%d\n%d\n", g.count, g.lastCrashMs)
	return os.WriteFile(g.path, []byte(body), 0o644)
}

// ShouldLoadEmpty reports whether the current pedalboard should be
// refused in favor of the empty one, per §4.J / §7's RepeatedCrash.
func (g *Guard) ShouldLoadEmpty() bool { return g.count > MaxCount }

// Count returns the current, possibly-reset crash count.
func (g *Guard) Count() int { return g.count }

// Scope brackets the first live realtime block of a cycle: entering it
// increments and flushes the persistent count; a clean Close clears it.
// Nesting is reference-counted so a crash inside a bracket-within-a-
// bracket doesn't double-count.
type Scope struct {
	guard *Guard
}

// Enter increments the crash count and flushes to disk, matching the
// construction-time write the spec requires before any realtime audio
// that cycle could crash the process. Reentrant calls only increment
// once per cycle.
func (g *Guard) Enter() (*Scope, error) {
	g.bracketDepth++
	if g.bracketDepth == 1 {
		g.count++
		g.lastCrashMs = time.Now().UnixMilli()
		if err := g.flush(); err != nil {
			return nil, err
		}
	}
	return &Scope{guard: g}, nil
}

// Close marks this cycle as clean. Only the outermost Close actually
// clears the persisted count.
func (s *Scope) Close() error {
	s.guard.bracketDepth--
	if s.guard.bracketDepth > 0 {
		return nil
	}
	s.guard.count = 0
	return s.guard.flush()
}
