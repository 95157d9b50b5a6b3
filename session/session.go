// Package session wires a configuration to a live process: it selects and
// opens the target, scans its main module for the pattern table, resolves
// every root to an address and drives the refresh cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"memview/config"
	"memview/inspect"
	"memview/pod"
	"memview/process"
	"memview/process/memory_map"
	"memview/process_blob"
	"memview/scanner"
	"memview/stl"
	"memview/view"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sync/errgroup"
)

// Platform finds and opens processes.
type Platform struct {
	Finder process.ProcessFinder
	Open   func(pid process.ProcessID) (process.Process, error)
}

// Root is one configured top-level view and the guard serializing its refreshes.
type Root struct {
	Config config.Root
	View   inspect.View

	guard view.Guard
}

// Skipped returns how many refreshes of the root were dropped because the
// previous one was still running.
func (r *Root) Skipped() uint64 {
	return r.guard.Skipped()
}

// Session is an attached process with its resolved roots.
type Session struct {
	cfg    *config.Config
	proc   process.Process
	module memory_map.Module
	reader *pod.Reader
	env    *inspect.Env
	table  *scanner.OffsetTable
	roots  []*Root
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open selects the configured target, opens it and attaches to it. A name
// matching several processes fails with process.ErrAmbiguousProcess.
func Open(ctx context.Context, cfg *config.Config, platform Platform) (*Session, error) {
	pid := process.ProcessID(cfg.Target.PID)
	if pid == 0 {
		info, err := process.FindOne(platform.Finder, cfg.Target.Process)
		if err != nil {
			return nil, err
		}
		pid = info.PID
	}

	proc, err := platform.Open(pid)
	if err != nil {
		return nil, fmt.Errorf("cannot open process %d: %w", pid, err)
	}

	s, err := Attach(ctx, cfg, proc)
	if err != nil {
		proc.Close()
		return nil, err
	}
	return s, nil
}

// OpenDump attaches to a dump saved by memview_dump instead of a live process.
func OpenDump(ctx context.Context, cfg *config.Config, dir string) (*Session, error) {
	dump := process_blob.NewProcessDump()
	if err := dump.Load(dir); err != nil {
		return nil, err
	}
	return Attach(ctx, cfg, dump)
}

// Attach scans an already opened process and builds the configured roots.
// Pattern table failures are fatal; roots whose pointer path cannot be
// walked yet start unbound and are retried on every refresh.
func Attach(ctx context.Context, cfg *config.Config, proc process.Process) (*Session, error) {
	s := &Session{
		cfg:    cfg,
		proc:   proc,
		reader: pod.NewReader(proc, cfg.ReaderLimits()),
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("session-%d", proc.GetPID()))),
	}

	module, err := findModule(proc, cfg.Target.Module)
	if err != nil {
		return nil, err
	}
	s.module = module
	s.log.Infoln("Module", module.Name, "at", process.ProcessMemoryAddress(module.Address).String(), "size", process.ProcessMemorySize(module.Size).ToString())

	patterns, err := cfg.CompilePatterns()
	if err != nil {
		return nil, err
	}
	s.table, err = cfg.NewScanner().Scan(ctx, s.reader, process.ProcessMemoryAddress(module.Address), process.ProcessMemorySize(module.Size), patterns)
	if err != nil {
		return nil, err
	}

	s.env = inspect.NewEnv(stl.NewDecoder(s.reader, cfg.DecoderLimits()), cfg.Layouts, cfg.Refresh.Parallel)
	for _, rc := range cfg.Roots {
		v, err := inspect.New(s.env, rc)
		if err != nil {
			return nil, err
		}
		s.roots = append(s.roots, &Root{Config: rc, View: v})
	}

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("Initial refresh: ", err)
	}
	return s, nil
}

// findModule locates the named image in the memory map, falling back to the
// process's main module when the map carries no file names.
func findModule(proc process.Process, name string) (memory_map.Module, error) {
	if name != "" {
		mm, err := proc.GetMemoryMap()
		if err != nil {
			return memory_map.Module{}, err
		}
		if mod, ok := memory_map.ModuleRegion(mm, name); ok {
			return mod, nil
		}
	}
	mod, err := proc.MainModule()
	if err != nil {
		return memory_map.Module{}, fmt.Errorf("module %q: %w", name, err)
	}
	return mod, nil
}

// Resolve derives the address of a root: the pattern's match, optionally
// through a rip-relative operand, then along the root's pointer path. A null
// pointer on the path resolves to zero.
func (s *Session) Resolve(rc config.Root) (process.ProcessMemoryAddress, error) {
	addr, err := s.table.Address(rc.Pattern)
	if err != nil {
		return 0, err
	}
	if rc.Resolve == config.ResolveRIP32 {
		addr, err = scanner.ResolveRIP32(s.reader, addr)
		if err != nil {
			return 0, err
		}
	}

	addr, err = s.reader.ResolvePath(addr, rc.Offsets()...)
	if errors.Is(err, process.ErrNullPointer) {
		return 0, nil
	}
	return addr, err
}

// Refresh runs one cycle: every root is re-resolved and re-addressed, which
// decodes it when its address changed or it always refreshes. Roots run
// concurrently; a root still refreshing from an earlier cycle is skipped.
// The returned error joins the failures of individual roots, which keep
// their last good state.
func (s *Session) Refresh(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Refresh.Parallel, 1))
	for _, root := range s.roots {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, err := root.guard.Do(func() error {
				return s.refreshRoot(root)
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", root.Config.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (s *Session) refreshRoot(root *Root) error {
	addr, err := s.Resolve(root.Config)
	if err != nil {
		// path not walkable this cycle; keep the last good state
		return err
	}
	if addr != root.View.Address() {
		s.log.Debugln("Root", root.Config.Name, "moved to", addr.String())
	}
	return root.View.SetAddress(addr)
}

// Run refreshes every interval until ctx is done. each, when set, is called
// after every cycle with the cycle's error.
func (s *Session) Run(ctx context.Context, interval time.Duration, each func(error)) error {
	if interval <= 0 {
		interval = s.cfg.Refresh.Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := s.Refresh(ctx)
			if err != nil {
				s.log.Debugln("Refresh:", err)
			}
			if each != nil {
				each(err)
			}
		}
	}
}

// Invalidate drops cached identity data such as resolved names, for use when
// the target reloads its world.
func (s *Session) Invalidate() {
	s.log.Infoln("Invalidating", s.env.Names.Len(), "cached names")
	s.env.Names.Clear()
}

// Snapshot returns the state of every root keyed by root name.
func (s *Session) Snapshot() map[string]any {
	out := make(map[string]any, len(s.roots))
	for _, root := range s.roots {
		out[root.Config.Name] = root.View.Snapshot()
	}
	return out
}

func (s *Session) Roots() []*Root {
	return s.roots
}

// Root returns the root named name.
func (s *Session) Root(name string) (*Root, bool) {
	for _, root := range s.roots {
		if root.Config.Name == name {
			return root, true
		}
	}
	return nil, false
}

func (s *Session) OffsetTable() *scanner.OffsetTable {
	return s.table
}

func (s *Session) Module() memory_map.Module {
	return s.module
}

func (s *Session) Process() process.Process {
	return s.proc
}

// Reader returns the session's reader, for ad-hoc reads outside the roots.
func (s *Session) Reader() *pod.Reader {
	return s.reader
}

// Stats returns the read accounting of the session's reader.
func (s *Session) Stats() pod.Stats {
	return s.reader.Stats()
}

// Close releases the process handle.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.proc.Close()
		s.log.Infoln("Session closed")
	})
	return s.closeErr
}
