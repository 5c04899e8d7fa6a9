package proc

import (
	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/vm"
)

// GlobalMappings is the kernel-global region set installed into every
// process page table (spec.md §3: "every process page table contains
// the full set of kernel-global mappings"; §8's testable property that
// this set is bit-equal across parent and child). The boot sequence
// populates this once, before the first process is created; proc has
// no opinion on what the regions actually are, only that every address
// space it builds carries them.
var GlobalMappings []vm.Region

// installGlobalMappings installs the current GlobalMappings into pt. A
// nil/empty set is a no-op, which lets proc's own tests build page
// tables without a boot sequence in the loop.
func installGlobalMappings(pt *vm.PageTable) claudeerr.Errno {
	if len(GlobalMappings) == 0 {
		return 0
	}
	return vm.BuildKernelGlobalMappings(pt, GlobalMappings)
}

// ParentHandle reports p's parent, if it has one (getppid's backing
// accessor; parent/hasParent stay unexported so nothing outside this
// package can forge a Handle).
func (p *PCB) ParentHandle() (Handle, bool) {
	return p.parent, p.hasParent
}
