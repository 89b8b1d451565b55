package compile

import (
	"os"
	"path/filepath"
)

// LocateArtifact implements spec §6's persisted-artifact search order:
// (a) assemblyName as given, if it is already absolute, (b) under the
// process base directory, (c) under "<base>/Bin/". Because this
// implementation's artifacts are Go plugins, the host extension is ".so".
func LocateArtifact(assemblyName string) (string, bool) {
	if assemblyName == "" {
		return "", false
	}

	fileName := assemblyName
	if filepath.Ext(fileName) == "" {
		fileName += ".so"
	}

	if filepath.IsAbs(fileName) {
		if fileExists(fileName) {
			return fileName, true
		}
		return "", false
	}

	base, err := baseDir()
	if err != nil {
		return "", false
	}

	candidates := []string{
		filepath.Join(base, fileName),
		filepath.Join(base, "Bin", fileName),
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, true
		}
	}
	return "", false
}

func baseDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
