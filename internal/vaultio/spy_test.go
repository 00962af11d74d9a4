package vaultio

import "os"

// spyFileSystem wraps the real OS filesystem but can simulate failures for
// testing, delegating everything except the configured failure.
type spyFileSystem struct {
	real FileSystem

	failRenameOnce bool
	renameCalls    int
}

func newSpyFileSystem() *spyFileSystem {
	return &spyFileSystem{real: NewOSFileSystem()}
}

func (s *spyFileSystem) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return s.real.OpenFile(name, flag, perm)
}

func (s *spyFileSystem) ReadFile(name string) ([]byte, error) { return s.real.ReadFile(name) }

func (s *spyFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return s.real.WriteFile(name, data, perm)
}

func (s *spyFileSystem) Remove(name string) error { return s.real.Remove(name) }

func (s *spyFileSystem) Rename(oldpath, newpath string) error {
	s.renameCalls++
	if s.failRenameOnce {
		s.failRenameOnce = false
		return os.ErrPermission
	}
	return s.real.Rename(oldpath, newpath)
}

func (s *spyFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return s.real.MkdirAll(path, perm)
}

func (s *spyFileSystem) Stat(name string) (os.FileInfo, error) { return s.real.Stat(name) }

func (s *spyFileSystem) Glob(pattern string) ([]string, error) { return s.real.Glob(pattern) }
