// Package compute provides the dense Cholesky backends used to solve the
// symmetric positive definite normal equations of the optimizer.
//
// Three libraries can back a solver:
//
//   - GONUM: pure Go, always available
//   - LAPACK: system dpotrf_/dpotrs_ through cgo
//   - CUDA: cuSOLVER dense Cholesky on the GPU
//
// # Usage
//
//	chol, msg := compute.Create(compute.Options{DenseLinearAlgebraLibraryType: compute.Gonum})
//	status, msg := compute.FactorAndSolve(chol, n, lhs, rhs, x)
//
// Matrices are n*n column-major buffers owned by the caller; only the lower
// triangle is read. Factorize may overwrite it.
//
// # Build tags
//
// LAPACK and CUDA are compiled in on request:
//
//	go build -tags lapack ./...
//	go build -tags cuda ./...
//
// The 64-bit cuSOLVER API is used when the CUDA headers found at build time
// are 11.1 or newer (CUDART_VERSION >= 11010). Against an older toolkit the
// cuda build still compiles, auto selection falls back to the legacy API, and
// an explicit request for the 64-bit backend fails in Init.
//
// Asking Create for a library that was not compiled in terminates the
// process. A missing or broken GPU does not: Create returns nil and the
// reason.
//
// # Thread Safety
//
// A DenseCholesky is not safe for concurrent use. Give each goroutine its own
// instance.
package compute
