package sandbox

import (
	"fmt"
	"os"
)

// LoadFile reads a control program from the node-local file store. The
// engine is agnostic to how the bytes arrived; this is the one helper
// for the common case.
func LoadFile(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read module %s: %w", path, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty module file %s", ErrLoad, path)
	}
	return buf, nil
}
