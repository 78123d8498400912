//go:build lapack && cgo

package compute

/*
#cgo LDFLAGS: -llapack -lblas

extern void dpotrf_(const char* uplo, const int* n, double* a, const int* lda, int* info);
extern void dpotrs_(const char* uplo, const int* n, const int* nrhs,
                    const double* a, const int* lda, double* b, const int* ldb,
                    int* info);
*/
import "C"

import (
	"unsafe"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// The same system BLAS backs gonum's level 3 kernels in this build, so the
// GONUM backend speeds up too.
func init() {
	blas64.Use(netlib.Implementation{})
	log.Debug().Msg("system BLAS registered with gonum (netlib)")
}

var systemLAPACK = func() fortranLAPACK { return netlibLAPACK{} }

// netlibLAPACK calls the reference Fortran symbols. Every scalar goes by
// address.
type netlibLAPACK struct{}

func (netlibLAPACK) Dpotrf(uplo byte, n int, a []float64, lda int) int {
	cUplo := C.char(uplo)
	cN := C.int(n)
	cLda := C.int(lda)
	var info C.int
	C.dpotrf_(&cUplo, &cN, doublePtr(a), &cLda, &info)
	return int(info)
}

func (netlibLAPACK) Dpotrs(uplo byte, n, nrhs int, a []float64, lda int, b []float64, ldb int) int {
	cUplo := C.char(uplo)
	cN := C.int(n)
	cNrhs := C.int(nrhs)
	cLda := C.int(lda)
	cLdb := C.int(ldb)
	var info C.int
	C.dpotrs_(&cUplo, &cN, &cNrhs, doublePtr(a), &cLda, doublePtr(b), &cLdb, &info)
	return int(info)
}

func doublePtr(s []float64) *C.double {
	if len(s) == 0 {
		return nil
	}
	return (*C.double)(unsafe.Pointer(&s[0]))
}
