//go:build !unix

package featureindex

import "fmt"

// mmapFileRW is not supported on non-Unix platforms.
func mmapFileRW(fd uintptr, size int) ([]byte, error) {
	return nil, fmt.Errorf("featureindex: memory mapping is not supported on this platform")
}

// munmapFile is a no-op on non-Unix platforms.
func munmapFile(data []byte) error {
	return nil
}
