// Package profiling adds pprof flags to a cobra command tree.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// CobraProfiler holds the profile paths set by flags and the open CPU
// profile between PreRun and PostRun.
type CobraProfiler struct {
	cpuProfileFile *os.File
	cpuProfilePath string
	memProfilePath string
}

// NewCobraProfiler creates a profiler with no profiles enabled.
func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// Attach adds --cpu-profile and --mem-profile to cmd and installs the
// persistent hooks that honor them. Existing persistent hooks still run.
func (p *CobraProfiler) Attach(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&p.cpuProfilePath, "cpu-profile", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&p.memProfilePath, "mem-profile", "", "Write a heap profile to file on exit")

	pre, post := cmd.PersistentPreRunE, cmd.PersistentPostRunE
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := p.PreRun(c, args); err != nil {
			return err
		}
		if pre != nil {
			return pre(c, args)
		}
		return nil
	}
	cmd.PersistentPostRunE = func(c *cobra.Command, args []string) error {
		var err error
		if post != nil {
			err = post(c, args)
		}
		if perr := p.PostRun(c, args); err == nil {
			err = perr
		}
		return err
	}
}

// PreRun starts the CPU profile when one was requested.
func (p *CobraProfiler) PreRun(cmd *cobra.Command, args []string) error {
	if p.cpuProfilePath == "" {
		return nil
	}
	f, err := os.Create(p.cpuProfilePath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuProfileFile = f
	return nil
}

// PostRun stops the CPU profile and writes the heap profile.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, args []string) error {
	if p.cpuProfileFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuProfileFile.Close(); err != nil {
			return fmt.Errorf("could not close CPU profile: %w", err)
		}
		p.cpuProfileFile = nil
		fmt.Fprintf(cmd.ErrOrStderr(), "CPU profile written to %s\n", p.cpuProfilePath)
	}

	if p.memProfilePath != "" {
		f, err := os.Create(p.memProfilePath)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("could not write memory profile: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Memory profile written to %s\n", p.memProfilePath)
	}
	return nil
}
