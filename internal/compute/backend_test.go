package compute

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type spyBackend struct {
	factorizeStatus LinearSolverTerminationType
	solves          int
}

func (s *spyBackend) Name() string { return "spy" }
func (s *spyBackend) Cleanup()     {}

func (s *spyBackend) Factorize(int, []float64) (LinearSolverTerminationType, string) {
	return s.factorizeStatus, "factorize"
}

func (s *spyBackend) Solve([]float64, []float64) (LinearSolverTerminationType, string) {
	s.solves++
	return LinearSolverSuccess, "solve"
}

var _ = Describe("Create", func() {
	var fatals *[]string

	BeforeEach(func() {
		fatals = recordFatals()
	})

	It("always provides gonum", func() {
		d, msg := backendSources{}.create(Options{DenseLinearAlgebraLibraryType: Gonum})
		Expect(d).NotTo(BeNil())
		Expect(d.Name()).To(Equal("gonum"))
		Expect(msg).To(Equal(successMessage))
	})

	It("builds the LAPACK backend when it is compiled in", func() {
		sources := backendSources{lapack: func() fortranLAPACK { return &fakeLAPACK{} }}
		d, _ := sources.create(Options{DenseLinearAlgebraLibraryType: LAPACK})
		Expect(d.Name()).To(Equal("lapack"))
		Expect(*fatals).To(BeEmpty())
	})

	DescribeTable("terminates on a library missing from the build",
		func(t DenseLinearAlgebraLibraryType, want string) {
			d, msg := backendSources{}.create(Options{DenseLinearAlgebraLibraryType: t})
			Expect(d).To(BeNil())
			Expect(msg).To(Equal(want))
			Expect(*fatals).To(ConsistOf(want))
		},
		Entry("lapack", LAPACK, "densesolve was compiled without support for LAPACK."),
		Entry("cuda", CUDA, "densesolve was compiled without support for CUDA."),
		Entry("unknown", DenseLinearAlgebraLibraryType(7), "Unknown dense linear algebra library type : UNKNOWN(7)"),
	)

	DescribeTable("picks the cuSOLVER generation",
		func(rt func(*fakeDevice) deviceRuntime, api CUDASolverAPI, want string) {
			dev := newFakeDevice()
			sources := backendSources{device: func() deviceRuntime { return rt(dev) }}

			d, msg := sources.create(Options{DenseLinearAlgebraLibraryType: CUDA, CUDASolverAPI: api})
			Expect(msg).To(Equal(successMessage))
			Expect(d.Name()).To(Equal(want))
			d.Cleanup()
		},
		Entry("auto on a current runtime", func(d *fakeDevice) deviceRuntime { return d }, CUDASolverAuto, "cuda-current"),
		Entry("auto on an older runtime", func(d *fakeDevice) deviceRuntime { return legacyDevice{d} }, CUDASolverAuto, "cuda-legacy"),
		Entry("legacy on a current runtime", func(d *fakeDevice) deviceRuntime { return d }, CUDASolverLegacy, "cuda-legacy"),
		Entry("current on a current runtime", func(d *fakeDevice) deviceRuntime { return d }, CUDASolverCurrent, "cuda-current"),
	)

	It("returns nil without terminating when the device cannot be initialized", func() {
		dev := newFakeDevice()
		dev.failOn["CreateHandle"] = errInjected
		sources := backendSources{device: func() deviceRuntime { return dev }}

		d, msg := sources.create(Options{DenseLinearAlgebraLibraryType: CUDA})
		Expect(d).To(BeNil())
		Expect(msg).To(HavePrefix("cuSolverDN::cusolverDnCreate failed"))
		Expect(*fatals).To(BeEmpty())
	})

	It("returns nil when the 64-bit API is requested from an older runtime", func() {
		dev := newFakeDevice()
		sources := backendSources{device: func() deviceRuntime { return legacyDevice{dev} }}

		d, msg := sources.create(Options{DenseLinearAlgebraLibraryType: CUDA, CUDASolverAPI: CUDASolverCurrent})
		Expect(d).To(BeNil())
		Expect(msg).To(Equal(cuda64NotBuiltMessage))
		Expect(*fatals).To(BeEmpty())
	})

	DescribeTable("offers the 64-bit API only when the toolkit provides it",
		func(available bool, api CUDASolverAPI, want string) {
			dev := newFakeDevice()
			rt := runtimeFor(legacyDevice{dev}, dev, available)
			sources := backendSources{device: func() deviceRuntime { return rt }}

			d, msg := sources.create(Options{DenseLinearAlgebraLibraryType: CUDA, CUDASolverAPI: api})
			if want == "" {
				Expect(d).To(BeNil())
				Expect(msg).To(Equal(cuda64NotBuiltMessage))
				Expect(*fatals).To(BeEmpty())
				return
			}
			Expect(d.Name()).To(Equal(want))
			defer d.Cleanup()

			x := make([]float64, 2)
			status, msg := FactorAndSolve(d, 2, []float64{4, 2, 2, 3}, []float64{1, 1}, x)
			Expect(status).To(Equal(LinearSolverSuccess), msg)
			Expect(x[0]).To(BeNumerically("~", 0.125, 1e-12))
			Expect(x[1]).To(BeNumerically("~", 0.25, 1e-12))
		},
		Entry("auto with CUDA 11.1 or newer", true, CUDASolverAuto, "cuda-current"),
		Entry("auto with an older toolkit", false, CUDASolverAuto, "cuda-legacy"),
		Entry("64-bit with an older toolkit", false, CUDASolverCurrent, ""),
	)

	It("keeps the runtime as is without a 64-bit implementation", func() {
		dev := newFakeDevice()
		rt := runtimeFor(legacyDevice{dev}, nil, true)
		_, ok := rt.(genericSolver)
		Expect(ok).To(BeFalse())
	})

	It("lists what the build provides", func() {
		Expect(backendSources{}.libraries()).To(Equal([]DenseLinearAlgebraLibraryType{Gonum}))

		full := backendSources{
			lapack: func() fortranLAPACK { return &fakeLAPACK{} },
			device: func() deviceRuntime { return newFakeDevice() },
		}
		Expect(full.libraries()).To(Equal([]DenseLinearAlgebraLibraryType{Gonum, LAPACK, CUDA}))
		Expect(CompiledLibraries()).To(ContainElement(Gonum))
	})

	It("checks libraries without terminating", func() {
		Expect(CheckCompiled(Gonum)).To(Succeed())
		Expect(CheckCompiled(DenseLinearAlgebraLibraryType(9))).To(MatchError(ErrUnknownLibrary))
		if compiled.lapack == nil {
			Expect(CheckCompiled(LAPACK)).To(MatchError(ErrLibraryNotCompiled))
		} else {
			Expect(CheckCompiled(LAPACK)).To(Succeed())
		}
		Expect(*fatals).To(BeEmpty())
	})
})

var _ = Describe("FactorAndSolve", func() {
	It("skips Solve when Factorize fails", func() {
		spy := &spyBackend{factorizeStatus: LinearSolverFailure}
		status, msg := FactorAndSolve(spy, 1, []float64{1}, []float64{1}, []float64{0})
		Expect(status).To(Equal(LinearSolverFailure))
		Expect(msg).To(Equal("factorize"))
		Expect(spy.solves).To(BeZero())
	})

	It("returns the Solve outcome after a successful Factorize", func() {
		spy := &spyBackend{factorizeStatus: LinearSolverSuccess}
		status, msg := FactorAndSolve(spy, 1, []float64{1}, []float64{1}, []float64{0})
		Expect(status).To(Equal(LinearSolverSuccess))
		Expect(msg).To(Equal("solve"))
		Expect(spy.solves).To(Equal(1))
	})
})

var _ = Describe("names", func() {
	DescribeTable("ParseLibraryType",
		func(in string, want DenseLinearAlgebraLibraryType) {
			got, err := ParseLibraryType(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
			Expect(strings.EqualFold(got.String(), strings.TrimSpace(in))).To(BeTrue())
		},
		Entry("gonum", "gonum", Gonum),
		Entry("upper case", "LAPACK", LAPACK),
		Entry("padded", " cuda ", CUDA),
	)

	It("rejects unknown libraries", func() {
		_, err := ParseLibraryType("eigen")
		Expect(err).To(MatchError(ErrUnknownLibrary))
	})

	DescribeTable("ParseCUDASolverAPI",
		func(in string, want CUDASolverAPI) {
			got, err := ParseCUDASolverAPI(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("empty", "", CUDASolverAuto),
		Entry("auto", "auto", CUDASolverAuto),
		Entry("legacy", "legacy", CUDASolverLegacy),
		Entry("32bit", "32bit", CUDASolverLegacy),
		Entry("current", "Current", CUDASolverCurrent),
		Entry("64bit", "64bit", CUDASolverCurrent),
	)

	It("rejects unknown solver generations", func() {
		_, err := ParseCUDASolverAPI("cusparse")
		Expect(err).To(MatchError(ErrUnknownSolverAPI))
	})

	It("prints termination types", func() {
		Expect(LinearSolverNotFactorized.String()).To(Equal("NOT_FACTORIZED"))
		Expect(LinearSolverSuccess.String()).To(Equal("SUCCESS"))
		Expect(LinearSolverFailure.String()).To(Equal("FAILURE"))
		Expect(LinearSolverFatalError.String()).To(Equal("FATAL_ERROR"))
	})
})

var _ = Describe("VersionString", func() {
	It("describes the build", func() {
		v := VersionString()
		Expect(v).To(HavePrefix(Version + "-gonum-("))
		if compiled.lapack == nil {
			Expect(v).To(ContainSubstring("-no_lapack"))
		} else {
			Expect(v).To(ContainSubstring("-lapack"))
		}
		if compiled.device == nil {
			Expect(v).To(ContainSubstring("-no_cuda"))
		} else {
			Expect(v).To(MatchRegexp(`-cuda-\(\d+\)`))
		}
	})
})
