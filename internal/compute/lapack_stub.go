//go:build !lapack || !cgo

package compute

// systemLAPACK is nil: LAPACK was not compiled in.
var systemLAPACK func() fortranLAPACK
