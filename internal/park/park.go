// Package park persists the roof's last known park state across driver
// sessions. When the limit switches cannot be read at connect time, the
// stored state seeds the assumed roof position.
package park

import (
	"encoding/json"
	"os"
	"time"
)

// State is the remembered roof position.
type State int

const (
	Unknown State = iota
	Parked         // roof was at the closed limit
	Unparked       // roof was at the opened limit
)

func (s State) String() string {
	switch s {
	case Parked:
		return "PARKED"
	case Unparked:
		return "UNPARKED"
	default:
		return "UNKNOWN"
	}
}

type fileData struct {
	Parked  bool   `json:"parked"`
	SavedAt string `json:"saved_at"`
}

// Store reads and writes the park state file.
type Store struct {
	path string
}

// NewStore creates a Store over the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored state. A missing or unreadable file is
// Unknown, never an error — the driver falls back to the switches.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Unknown
	}
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return Unknown
	}
	if fd.Parked {
		return Parked
	}
	return Unparked
}

// Save records whether the roof is parked (at the closed limit).
func (s *Store) Save(parked bool) error {
	fd := fileData{
		Parked:  parked,
		SavedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0644)
}

// Clear forgets the stored state; position is unknown after an abort
// that strands the roof between limits.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
