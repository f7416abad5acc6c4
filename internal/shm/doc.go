// Package shm provides the data segments backing server ports.
//
// An inter-process server publishes its response loans in a file-backed
// segment mapped MAP_SHARED, so clients in other processes can map the same
// file and read responses without copying. Intra-process servers use a plain
// heap segment with the same interface.
//
// Every creation failure wraps domain.ErrUnableToCreateDataSegment so the
// port layer can report it with a stable code.
package shm
