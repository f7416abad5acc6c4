// Package capi is the foreign-callable surface for building request/response
// server ports.
//
// The API mirrors a C ABI: objects live in caller-provided or
// package-allocated storage structs, callers hold opaque handles, options
// are integer enums and fallible calls return an integer status where OK
// is zero and error codes start right above it.
//
// # Ownership
//
// An owning handle (PortFactoryServerBuilderHandle, ServerHandle) is
// consumed by the function it is passed to. A handle ref
// (PortFactoryServerBuilderHandleRef, ServerHandleRef) borrows the object
// for the duration of the call. Using a consumed handle is a contract
// violation and panics; it is never reported as an error code.
//
// # Storage
//
// Every storage struct holds a locality tag, a single-value cell and a
// deleter. Reading the object always moves it out of the cell; setters put
// the transformed value back under the same tag. When the caller passes a
// nil storage pointer the package allocates the struct and installs a
// deleter that releases it; caller storage gets a no-op deleter and can be
// reused once its object has been consumed.
//
// # Concurrency
//
// Handles are not synchronized. Distinct handles may be used from
// different goroutines; one handle must not be used concurrently.
package capi
