package report

import (
	"os"
	"strings"
)

// StateFile stores the last published report identifier as a single
// plain-text file so a restarted process can keep editing the same report.
type StateFile struct {
	path string
}

// NewStateFile returns a StateFile at path. The file is created on first Save.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load reads the persisted report id. A missing or empty file yields "".
func (s *StateFile) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save overwrites the persisted report id.
func (s *StateFile) Save(id string) error {
	return os.WriteFile(s.path, []byte(id+"\n"), 0o644)
}
