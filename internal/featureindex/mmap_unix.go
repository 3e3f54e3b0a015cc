//go:build unix

package featureindex

import "golang.org/x/sys/unix"

// mmapFileRW maps a file read-write, shared with the backing file (writes
// are visible to other mappings of the same file and eventually flushed
// to disk by the kernel or an explicit Sync). Uses x/sys/unix rather than
// the frozen syscall package, which documents itself as superseded by it.
func mmapFileRW(fd uintptr, size int) ([]byte, error) {
	return unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// munmapFile releases a memory mapping created by mmapFileRW.
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
