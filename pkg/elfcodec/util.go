package elfcodec

import (
	"fmt"
	"os"
)

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("elfcodec: writing %s: %w", path, err)
	}
	return nil
}
