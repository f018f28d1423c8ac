package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrIntegrity is returned when a bundle's contents do not match its
// declared checksums. A bundle that fails this check never becomes active.
var ErrIntegrity = errors.New("bundle integrity check failed")

// Verify validates every file listed in the manifest against its declared
// size and SHA-256. Returns the manifest and the bundle checksum (SHA-256 of
// the manifest bytes) on success.
func Verify(dir string) (*Manifest, string, error) {
	m, raw, err := ReadManifest(dir)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	for _, f := range m.Files {
		local, err := resolvePath(dir, filepath.FromSlash(f.Path))
		if err != nil {
			return nil, "", fmt.Errorf("%w: resolve %s: %v", ErrIntegrity, f.Path, err)
		}
		info, err := os.Stat(local)
		if err != nil {
			return nil, "", fmt.Errorf("%w: stat %s: %v", ErrIntegrity, f.Path, err)
		}
		if f.Size > 0 && info.Size() != f.Size {
			return nil, "", fmt.Errorf("%w: size mismatch for %s: expected %d got %d", ErrIntegrity, f.Path, f.Size, info.Size())
		}
		sum, _, err := hashFile(local)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		if f.SHA256 != "" && !strings.EqualFold(sum, f.SHA256) {
			return nil, "", fmt.Errorf("%w: sha256 mismatch for %s: expected %s got %s", ErrIntegrity, f.Path, f.SHA256, sum)
		}
	}

	manifestSum := sha256.Sum256(raw)
	return m, hex.EncodeToString(manifestSum[:]), nil
}

// resolvePath joins rel under dir and rejects escapes outside the bundle.
func resolvePath(dir, rel string) (string, error) {
	joined := filepath.Join(dir, rel)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != absDir && !strings.HasPrefix(absJoined, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes bundle dir", rel)
	}
	return joined, nil
}
