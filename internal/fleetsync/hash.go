package fleetsync

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// configHash hashes the concatenation of the master and detail config file
// bytes, matching get_config_hash exactly (missing files simply contribute
// no bytes).
func configHash(masterPath, detailPath string) (string, error) {
	h := sha256.New()
	for _, path := range []string{masterPath, detailPath} {
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hasConfigChanged reports whether the roster files differ from the hash
// recorded at hashPath, matching has_config_changed (a missing hash file
// always counts as changed).
func hasConfigChanged(hashPath, masterPath, detailPath string) (bool, error) {
	oldHash, err := os.ReadFile(hashPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	current, err := configHash(masterPath, detailPath)
	if err != nil {
		return false, err
	}
	return string(oldHash) != current, nil
}

// saveConfigHash persists the current roster hash, matching save_config_hash.
func saveConfigHash(hashPath, masterPath, detailPath string) error {
	current, err := configHash(masterPath, detailPath)
	if err != nil {
		return err
	}
	return os.WriteFile(hashPath, []byte(current), 0o644)
}
