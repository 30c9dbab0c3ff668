package parallel

import (
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// SIMDLevel is the widest vector extension the CPU reports. The float64
// kernels are plain Go, so the level only informs the calibration profile
// and the execution header: a profile measured on one level is not reused
// on another.
type SIMDLevel int

const (
	// SIMDNone means no wide vector extension was detected.
	SIMDNone SIMDLevel = iota
	// SIMDNEON is the arm64 Advanced SIMD extension.
	SIMDNEON
	// SIMDAVX2 is the x86 256-bit extension.
	SIMDAVX2
	// SIMDAVX512 is the x86 512-bit extension (foundation + DQ).
	SIMDAVX512
)

func (l SIMDLevel) String() string {
	switch l {
	case SIMDAVX512:
		return "AVX-512"
	case SIMDAVX2:
		return "AVX2"
	case SIMDNEON:
		return "NEON"
	default:
		return "None"
	}
}

// CPUInfo summarises the host for reports and calibration profiles.
type CPUInfo struct {
	NumCPU   int       `json:"num_cpu"`
	Arch     string    `json:"arch"`
	SIMD     SIMDLevel `json:"-"`
	SIMDName string    `json:"simd"`
	Features []string  `json:"features"`
}

var (
	cpuInfo     CPUInfo
	cpuInfoOnce sync.Once
)

// DetectCPU returns the host description, computed once per process.
func DetectCPU() CPUInfo {
	cpuInfoOnce.Do(func() {
		cpuInfo = detectCPU()
	})
	return cpuInfo
}

func detectCPU() CPUInfo {
	info := CPUInfo{NumCPU: runtime.NumCPU(), Arch: runtime.GOARCH}
	switch runtime.GOARCH {
	case "amd64", "386":
		flags := []struct {
			name string
			on   bool
		}{
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
			{"avx512dq", cpu.X86.HasAVX512DQ},
		}
		for _, f := range flags {
			if f.on {
				info.Features = append(info.Features, f.name)
			}
		}
		switch {
		case cpu.X86.HasAVX512F && cpu.X86.HasAVX512DQ:
			info.SIMD = SIMDAVX512
		case cpu.X86.HasAVX2:
			info.SIMD = SIMDAVX2
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			info.Features = append(info.Features, "asimd")
			info.SIMD = SIMDNEON
		}
		if cpu.ARM64.HasFPHP {
			info.Features = append(info.Features, "fphp")
		}
	}
	info.SIMDName = info.SIMD.String()
	return info
}

// FeatureString joins the detected features, or "none".
func (c CPUInfo) FeatureString() string {
	if len(c.Features) == 0 {
		return "none"
	}
	return strings.Join(c.Features, ",")
}
