// Package assets embeds the demo bank and scripts the dosound command falls
// back to when no bank directory is configured.
package assets

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed bank scripts
var assetsFS embed.FS

// BankFS returns the embedded demo bank rooted at its manifest.
func BankFS() fs.FS {
	sub, err := fs.Sub(assetsFS, "bank")
	if err != nil {
		panic(err)
	}
	return sub
}

// LoadFile reads an embedded asset by assets-relative path.
func LoadFile(p string) ([]byte, error) {
	return assetsFS.ReadFile(cleanAssetPath(p))
}

// LoadScript reads a script from disk when the path exists there and from
// the embedded scripts otherwise.
func LoadScript(p string) ([]byte, error) {
	if b, err := os.ReadFile(p); err == nil {
		return b, nil
	}
	clean := cleanAssetPath(p)
	if !strings.HasPrefix(clean, "scripts/") {
		clean = path.Join("scripts", clean)
	}
	return assetsFS.ReadFile(clean)
}

func cleanAssetPath(p string) string {
	if p == "" {
		return ""
	}
	s := filepath.ToSlash(p)
	s = strings.TrimPrefix(path.Clean("/"+s), "/")
	s = strings.TrimPrefix(s, "assets/")
	return s
}
