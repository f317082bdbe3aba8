package quizforge

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// hashFile computes the hex-encoded MD5 of a file's contents, streaming
// so memory use stays bounded regardless of file size.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashString computes the hex-encoded MD5 of s.
func hashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
