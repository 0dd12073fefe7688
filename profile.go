package main

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// The profiler follows the one of github.com/zeromicro/go-zero.

const (
	// memProfileRate is the memory profiling rate while a profile runs.
	memProfileRate = 4096

	timeFormat = "20060102_150405"
	debugLevel = 2
)

// Profiler represents an active profiling session, toggled by SIGUSR2.
type Profiler struct {
	dataDir string

	// closers run in reverse order when the session stops.
	closers []func()

	stopped uint32
}

// StartProfiler starts cpu, heap, mutex, block, threadcreate profiles and an execution trace.
func StartProfiler(dataDir string) *Profiler {
	p := &Profiler{dataDir: dataDir}

	p.start("cpu", func(f *os.File) (func(), error) {
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, err
		}
		return pprof.StopCPUProfile, nil
	})

	old := runtime.MemProfileRate
	runtime.MemProfileRate = memProfileRate
	p.lookup("heap", func() { runtime.MemProfileRate = old })

	runtime.SetMutexProfileFraction(1)
	p.lookup("mutex", func() { runtime.SetMutexProfileFraction(0) })

	runtime.SetBlockProfileRate(1)
	p.lookup("block", func() { runtime.SetBlockProfileRate(0) })

	p.lookup("threadcreate", nil)

	p.start("trace", func(f *os.File) (func(), error) {
		if err := trace.Start(f); err != nil {
			return nil, err
		}
		return trace.Stop, nil
	})
	return p
}

// start creates the dump file of kind and runs begin on it. The returned
// function is called at stop, before the file is closed.
func (p *Profiler) start(kind string, begin func(f *os.File) (func(), error)) {
	fn := dumpFile(p.dataDir, kind, "pprof")
	f, err := os.Create(fn)
	if err != nil {
		glog.Errorf("pprof: could not create %s profile %q: %v", kind, fn, err)
		return
	}
	end, err := begin(f)
	if err != nil {
		f.Close()
		glog.Errorf("pprof: could not start %s profile: %v", kind, err)
		return
	}
	glog.Infof("pprof: %s profiling enabled, %s", kind, fn)
	p.closers = append(p.closers, func() {
		end()
		f.Close()
		glog.Infof("pprof: %s profiling disabled, %s", kind, fn)
	})
}

// lookup writes the named runtime profile at stop, then calls reset.
func (p *Profiler) lookup(name string, reset func()) {
	p.start(name, func(f *os.File) (func(), error) {
		return func() {
			if prof := pprof.Lookup(name); prof != nil {
				if err := prof.WriteTo(f, 0); err != nil {
					glog.Errorf("pprof: write %s profile error: %v", name, err)
				}
			}
			if reset != nil {
				reset()
			}
		}, nil
	})
}

// Stop stops the profile and flushes any unwritten data.
func (p *Profiler) Stop() {
	if !atomic.CompareAndSwapUint32(&p.stopped, 0, 1) {
		return
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func dumpFile(dir, kind, ext string) string {
	return path.Join(dir, fmt.Sprintf("%s-%s.%s", kind, time.Now().Format(timeFormat), ext))
}

func dumpGoroutines(dir string) {
	fn := dumpFile(dir, "goroutines", "dump")
	glog.Infof("Got dump goroutine signal, dumping goroutine profile to %s", fn)
	f, err := os.Create(fn)
	if err != nil {
		glog.Errorf("Failed to dump goroutine profile, error: %v", err)
		return
	}
	defer f.Close()
	if err := pprof.Lookup("goroutine").WriteTo(f, debugLevel); err != nil {
		glog.Errorf("Failed to write goroutine profile to %s, error: %v", fn, err)
	}
}
