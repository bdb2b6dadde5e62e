package config

import "github.com/burl-dev/burl/internal/atomicfs"

func writeFile(path string, data []byte) error {
	return atomicfs.WriteFile(path, data, 0644)
}
