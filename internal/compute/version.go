package compute

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"golang.org/x/sys/cpu"
)

const Version = "0.4.0"

// VersionString describes the build: the gonum release, which optional
// libraries are compiled in, and the SIMD extensions gonum's kernels can use
// on this machine.
func VersionString() string {
	var b strings.Builder
	b.WriteString(Version)
	fmt.Fprintf(&b, "-gonum-(%s)", moduleVersion("gonum.org/v1/gonum"))

	if compiled.lapack != nil {
		b.WriteString("-lapack")
	} else {
		b.WriteString("-no_lapack")
	}

	if compiled.device != nil {
		fmt.Fprintf(&b, "-cuda-(%d)", cudaRuntimeVersion)
	} else {
		b.WriteString("-no_cuda")
	}

	if feats := simdFeatures(); len(feats) > 0 {
		fmt.Fprintf(&b, "-simd-(%s)", strings.Join(feats, ","))
	}
	return b.String()
}

func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return "unknown"
}

func simdFeatures() []string {
	var feats []string
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX {
			feats = append(feats, "avx")
		}
		if cpu.X86.HasAVX2 {
			feats = append(feats, "avx2")
		}
		if cpu.X86.HasFMA {
			feats = append(feats, "fma")
		}
		if cpu.X86.HasAVX512F {
			feats = append(feats, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			feats = append(feats, "neon")
		}
		if cpu.ARM64.HasSVE {
			feats = append(feats, "sve")
		}
	}
	return feats
}
