package vm

import (
	"fmt"
	"io"
	"sort"
)

// InstructionProfile holds the execution count of one instruction.
type InstructionProfile struct {
	PC    int
	Op    Opcode
	Count uint64
	IsHot bool // True if threshold exceeded
}

// Profiler counts instruction executions per code address and per opcode.
// Attach one to an Interpreter to find the hot loops of a program.
type Profiler struct {
	profiles map[int]*InstructionProfile
	opCounts [256]uint64
	total    uint64

	// HotThreshold is the execution count at which an instruction is
	// reported hot. Default: 1000
	HotThreshold uint64

	// Callback when an instruction becomes hot
	OnHot func(p *InstructionProfile)

	hotCount int
}

// NewProfiler creates a new profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{
		profiles:     make(map[int]*InstructionProfile),
		HotThreshold: 1000,
	}
}

// Record counts one execution of op at pc. Returns true if this execution
// caused the instruction to become hot.
func (p *Profiler) Record(pc int, op Opcode) bool {
	p.total++
	p.opCounts[op]++

	profile, ok := p.profiles[pc]
	if !ok {
		profile = &InstructionProfile{PC: pc, Op: op}
		p.profiles[pc] = profile
	}
	profile.Count++

	if !profile.IsHot && p.HotThreshold > 0 && profile.Count >= p.HotThreshold {
		profile.IsHot = true
		p.hotCount++
		if p.OnHot != nil {
			p.OnHot(profile)
		}
		return true
	}
	return false
}

// Total returns the number of recorded executions.
func (p *Profiler) Total() uint64 {
	return p.total
}

// OpcodeCount returns how often op was executed.
func (p *Profiler) OpcodeCount(op Opcode) uint64 {
	return p.opCounts[op]
}

// Profile returns the profile for the instruction at pc, or nil.
func (p *Profiler) Profile(pc int) *InstructionProfile {
	return p.profiles[pc]
}

// HotCount returns the number of hot instructions.
func (p *Profiler) HotCount() int {
	return p.hotCount
}

// Top returns up to n instruction profiles, most executed first. Ties are
// ordered by address. n <= 0 returns all of them.
func (p *Profiler) Top(n int) []InstructionProfile {
	all := make([]InstructionProfile, 0, len(p.profiles))
	for _, profile := range p.profiles {
		all = append(all, *profile)
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].Count != all[b].Count {
			return all[a].Count > all[b].Count
		}
		return all[a].PC < all[b].PC
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.profiles = make(map[int]*InstructionProfile)
	p.opCounts = [256]uint64{}
	p.total = 0
	p.hotCount = 0
}

// WriteReport writes an opcode histogram followed by the n most executed
// instructions.
func (p *Profiler) WriteReport(w io.Writer, n int) error {
	if _, err := fmt.Fprintf(w, "; %d instructions executed\n", p.total); err != nil {
		return err
	}
	for _, op := range AllOpcodes() {
		if c := p.opCounts[op]; c > 0 {
			if _, err := fmt.Fprintf(w, ";   %-8s %d\n", op, c); err != nil {
				return err
			}
		}
	}
	for _, ip := range p.Top(n) {
		mark := ""
		if ip.IsHot {
			mark = " hot"
		}
		if _, err := fmt.Fprintf(w, "%04x  %-8s %d%s\n", ip.PC, ip.Op, ip.Count, mark); err != nil {
			return err
		}
	}
	return nil
}
