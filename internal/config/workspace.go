package config

import "path/filepath"

// DeriveWorkspace implements the `run` command's workspace derivation: given
// <anypath>/<series>/<stem>.<ext>, the workspace is
// <anypath>/<series>/dub/<stem>/.
func DeriveWorkspace(videoPath string) string {
	dir := filepath.Dir(videoPath)
	stem := filepath.Base(videoPath)
	ext := filepath.Ext(stem)
	stem = stem[:len(stem)-len(ext)]
	return filepath.Join(dir, "dub", stem)
}
