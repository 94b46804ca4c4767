package distance

import "golang.org/x/sys/cpu"

// Capability reports the widest SIMD feature set available on this CPU.
// It is informational only and feeds the index parameter dumps.
func Capability() string {
	switch {
	case cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW:
		return "avx512"
	case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
		return "avx2"
	case cpu.ARM64.HasASIMD:
		return "neon"
	default:
		return "generic"
	}
}
