package locpak

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"lukechampine.com/blake3"
)

// check if b3sum is installed on system
func hasB3sum() bool {
	_, err := exec.LookPath("b3sum")
	return err == nil
}

// ComputeChecksum hashes a file with BLAKE3, using system b3sum if available.
func ComputeChecksum(path string) (string, error) {
	// Try system b3sum first
	if hasB3sum() {
		cmd := exec.Command("b3sum", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = io.Discard
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0], nil
			}
		}
		// fall through to the internal implementation
	}

	// Fallback: internal Go BLAKE3 (32-byte output, no key)
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
