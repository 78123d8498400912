package compute

import (
	"errors"
	"unsafe"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// referencePotrf factors the lower triangle of the column-major matrix a and
// returns the LAPACK info code.
func referencePotrf(n int, a []float64, lda int) int {
	if n == 0 {
		return 0
	}
	orig := append([]float64(nil), a...)
	if _, ok := lapack64.Potrf(upperView(n, a, lda)); ok {
		return 0
	}
	for k := 1; k <= n; k++ {
		scratch := append([]float64(nil), orig...)
		if _, ok := lapack64.Potrf(upperView(k, scratch, lda)); !ok {
			copy(a, scratch)
			return k
		}
	}
	return n
}

func referencePotrs(n int, a []float64, lda int, b []float64) {
	if n == 0 {
		return
	}
	t := blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: n, Stride: lda, Data: a}
	lapack64.Potrs(t, blas64.General{Rows: n, Cols: 1, Stride: 1, Data: b[:n]})
}

// upperView reads a column-major lower triangle as a row-major upper one.
func upperView(n int, a []float64, lda int) blas64.Symmetric {
	return blas64.Symmetric{Uplo: blas.Upper, N: n, Stride: lda, Data: a}
}

type fakeLAPACK struct {
	forceInfo *int
	potrfs    int
	potrss    int
}

func (f *fakeLAPACK) Dpotrf(uplo byte, n int, a []float64, lda int) int {
	f.potrfs++
	if uplo != 'L' {
		return -1
	}
	if f.forceInfo != nil {
		return *f.forceInfo
	}
	return referencePotrf(n, a, lda)
}

func (f *fakeLAPACK) Dpotrs(uplo byte, n, nrhs int, a []float64, lda int, b []float64, ldb int) int {
	f.potrss++
	if uplo != 'L' {
		return -1
	}
	if nrhs != 1 {
		return -3
	}
	referencePotrs(n, a, lda, b)
	return 0
}

var errInjected = errors.New("injected device failure")

// fakeDevice is an in-memory CUDA runtime. Device pointers point at Go
// memory it keeps alive; every call is recorded and any call can be made to
// fail.
type fakeDevice struct {
	calls  []string
	failOn map[string]error
	// forceInfo replaces the info code written by Dpotrf/Xpotrf.
	forceInfo *int32

	allocs  map[unsafe.Pointer][]float64
	hosts   map[unsafe.Pointer][]float64
	handles map[unsafe.Pointer]bool
	streams map[unsafe.Pointer]bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		failOn:  map[string]error{},
		allocs:  map[unsafe.Pointer][]float64{},
		hosts:   map[unsafe.Pointer][]float64{},
		handles: map[unsafe.Pointer]bool{},
		streams: map[unsafe.Pointer]bool{},
	}
}

func (d *fakeDevice) call(name string) error {
	d.calls = append(d.calls, name)
	return d.failOn[name]
}

func (d *fakeDevice) liveBytes() int {
	total := 0
	for _, buf := range d.allocs {
		total += 8 * len(buf)
	}
	return total
}

func (d *fakeDevice) CreateHandle() (unsafe.Pointer, error) {
	if err := d.call("CreateHandle"); err != nil {
		return nil, err
	}
	h := unsafe.Pointer(new(int))
	d.handles[h] = true
	return h, nil
}

func (d *fakeDevice) DestroyHandle(handle unsafe.Pointer) error {
	if err := d.call("DestroyHandle"); err != nil {
		return err
	}
	delete(d.handles, handle)
	return nil
}

func (d *fakeDevice) CreateStream() (unsafe.Pointer, error) {
	if err := d.call("CreateStream"); err != nil {
		return nil, err
	}
	s := unsafe.Pointer(new(int))
	d.streams[s] = true
	return s, nil
}

func (d *fakeDevice) DestroyStream(stream unsafe.Pointer) error {
	if err := d.call("DestroyStream"); err != nil {
		return err
	}
	delete(d.streams, stream)
	return nil
}

func (d *fakeDevice) SetStream(handle, stream unsafe.Pointer) error {
	return d.call("SetStream")
}

func (d *fakeDevice) Malloc(bytes int) (unsafe.Pointer, error) {
	if err := d.call("Malloc"); err != nil {
		return nil, err
	}
	buf := make([]float64, (bytes+7)/8)
	p := unsafe.Pointer(unsafe.SliceData(buf))
	d.allocs[p] = buf
	return p, nil
}

func (d *fakeDevice) Free(ptr unsafe.Pointer) error {
	if err := d.call("Free"); err != nil {
		return err
	}
	delete(d.allocs, ptr)
	return nil
}

func (d *fakeDevice) CopyToDevice(dst, src unsafe.Pointer, bytes int) error {
	if err := d.call("CopyToDevice"); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(dst), bytes), unsafe.Slice((*byte)(src), bytes))
	return nil
}

func (d *fakeDevice) CopyToHost(dst, src unsafe.Pointer, bytes int) error {
	if err := d.call("CopyToHost"); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(dst), bytes), unsafe.Slice((*byte)(src), bytes))
	return nil
}

func (d *fakeDevice) DeviceSynchronize() error { return d.call("DeviceSynchronize") }

func (d *fakeDevice) StreamSynchronize(stream unsafe.Pointer) error {
	return d.call("StreamSynchronize")
}

func (d *fakeDevice) DpotrfBufferSize(handle unsafe.Pointer, n int, a unsafe.Pointer, lda int) (int, error) {
	if err := d.call("DpotrfBufferSize"); err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (d *fakeDevice) Dpotrf(handle unsafe.Pointer, n int, a unsafe.Pointer, lda int, work unsafe.Pointer, lwork int, info unsafe.Pointer) error {
	if err := d.call("Dpotrf"); err != nil {
		return err
	}
	code := int32(0)
	if lwork < n+1 {
		code = -7
	} else {
		code = int32(referencePotrf(n, d.matrix(a, n, lda), lda))
	}
	d.writeInfo(info, code)
	return nil
}

func (d *fakeDevice) Dpotrs(handle unsafe.Pointer, n, nrhs int, a unsafe.Pointer, lda int, b unsafe.Pointer, ldb int, info unsafe.Pointer) error {
	if err := d.call("Dpotrs"); err != nil {
		return err
	}
	referencePotrs(n, d.matrix(a, n, lda), lda, d.vector(b, n))
	*(*int32)(info) = 0
	return nil
}

func (d *fakeDevice) XpotrfBufferSize(handle unsafe.Pointer, n int64, a unsafe.Pointer, lda int64) (int, int, error) {
	if err := d.call("XpotrfBufferSize"); err != nil {
		return 0, 0, err
	}
	return int(8 * n), 16, nil
}

func (d *fakeDevice) Xpotrf(handle unsafe.Pointer, n int64, a unsafe.Pointer, lda int64,
	deviceWork unsafe.Pointer, deviceBytes int, hostWork unsafe.Pointer, hostBytes int, info unsafe.Pointer) error {
	if err := d.call("Xpotrf"); err != nil {
		return err
	}
	code := int32(0)
	switch {
	case deviceBytes < int(8*n):
		code = -10
	case hostBytes < 16 || d.hosts[hostWork] == nil:
		code = -12
	default:
		code = int32(referencePotrf(int(n), d.matrix(a, int(n), int(lda)), int(lda)))
	}
	d.writeInfo(info, code)
	return nil
}

func (d *fakeDevice) Xpotrs(handle unsafe.Pointer, n, nrhs int64, a unsafe.Pointer, lda int64, b unsafe.Pointer, ldb int64, info unsafe.Pointer) error {
	if err := d.call("Xpotrs"); err != nil {
		return err
	}
	referencePotrs(int(n), d.matrix(a, int(n), int(lda)), int(lda), d.vector(b, int(n)))
	*(*int32)(info) = 0
	return nil
}

func (d *fakeDevice) HostAlloc(bytes int) (unsafe.Pointer, error) {
	if err := d.call("HostAlloc"); err != nil {
		return nil, err
	}
	buf := make([]float64, (bytes+7)/8)
	p := unsafe.Pointer(unsafe.SliceData(buf))
	d.hosts[p] = buf
	return p, nil
}

func (d *fakeDevice) HostFree(ptr unsafe.Pointer) error {
	if err := d.call("HostFree"); err != nil {
		return err
	}
	delete(d.hosts, ptr)
	return nil
}

func (d *fakeDevice) writeInfo(info unsafe.Pointer, code int32) {
	if d.forceInfo != nil {
		code = *d.forceInfo
	}
	*(*int32)(info) = code
}

func (d *fakeDevice) matrix(a unsafe.Pointer, n, lda int) []float64 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(a), n*lda)
}

func (d *fakeDevice) vector(b unsafe.Pointer, n int) []float64 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(b), n)
}

// legacyDevice hides the 64-bit API, like a runtime built against CUDA < 11.1.
type legacyDevice struct {
	deviceRuntime
}
