package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/weatherbird/provisioning/internal/logging"
	"go.uber.org/zap"
)

// Default file names inside the storage directory.
const (
	DefaultPrimaryFile      = "wm_config.dat"
	DefaultBackupFile       = "wm_config.bak"
	DefaultPortalFile       = "wm_cp.dat"
	DefaultPortalBackupFile = "wm_cp.bak"

	// forcedPortalMagic marks the forced configuration portal flag as set
	forcedPortalMagic uint32 = 0xDEADBEEF
)

// Source tells where a loaded record came from.
type Source int

const (
	// SourcePrimary means the primary file was valid
	SourcePrimary Source = iota
	// SourceBackup means the primary was absent or corrupt and the backup was valid
	SourceBackup
	// SourceDefaults means neither file existed
	SourceDefaults
	// SourceReinitialized means files existed but none was valid; defaults were re-persisted
	SourceReinitialized
	// SourceUnavailable means the storage directory could not be used at all
	SourceUnavailable
)

// String returns a human-readable source name
func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceBackup:
		return "backup"
	case SourceDefaults:
		return "defaults"
	case SourceReinitialized:
		return "reinitialized"
	case SourceUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// StoreConfig locates the redundant record files.
type StoreConfig struct {
	Dir         string
	PrimaryFile string
	BackupFile  string
	Slots       int
}

// Store reads and writes the configuration record to two redundant files.
// It is best-effort durable: a failed write of one file never undoes the other.
type Store struct {
	mu        sync.Mutex
	primary   string
	backup    string
	portal    string
	portalBak string
	slots     int
	available bool
}

// NewStore creates a store, creating the storage directory if needed. A
// directory that cannot be created leaves the store unavailable; Load then
// returns sentinel defaults and Save reports an error.
func NewStore(cfg StoreConfig) *Store {
	if cfg.PrimaryFile == "" {
		cfg.PrimaryFile = DefaultPrimaryFile
	}
	if cfg.BackupFile == "" {
		cfg.BackupFile = DefaultBackupFile
	}
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultSlots
	}

	s := &Store{
		primary:   filepath.Join(cfg.Dir, cfg.PrimaryFile),
		backup:    filepath.Join(cfg.Dir, cfg.BackupFile),
		portal:    filepath.Join(cfg.Dir, DefaultPortalFile),
		portalBak: filepath.Join(cfg.Dir, DefaultPortalBackupFile),
		slots:     cfg.Slots,
		available: true,
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		logging.Error("Storage unavailable, running on in-memory defaults",
			zap.String("dir", cfg.Dir),
			zap.Error(err),
		)
		s.available = false
	}
	return s
}

// Slots returns the configured slot count.
func (s *Store) Slots() int {
	return s.slots
}

// Paths returns the primary and backup file paths.
func (s *Store) Paths() (string, string) {
	return s.primary, s.backup
}

// Load returns the persisted record, falling back from primary to backup to
// sentinel defaults. A corrupt record is never partially trusted.
func (s *Store) Load() (*Record, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available {
		return Default(s.slots), SourceUnavailable
	}

	found := false
	for i, path := range []string{s.primary, s.backup} {
		rec, exists, err := s.readFile(path)
		if !exists {
			continue
		}
		found = true
		if err != nil {
			logging.Warn("Config file rejected",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		logging.Info("Config loaded", zap.String("path", path))
		if i == 0 {
			return rec, SourcePrimary
		}
		return rec, SourceBackup
	}

	rec := Default(s.slots)
	if !found {
		logging.Info("No stored config, using defaults")
		return rec, SourceDefaults
	}

	logging.Warn("Stored config invalid, re-initializing",
		zap.Int("size", Size(s.slots)),
	)
	if err := s.save(rec); err != nil {
		logging.Error("Failed to persist re-initialized config", zap.Error(err))
	}
	return rec, SourceReinitialized
}

func (s *Store) readFile(path string) (*Record, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %s: %w", path, err)
	}
	logging.LogRecordBytes("Config file contents", data)

	rec, err := Unmarshal(data, s.slots)
	if err != nil {
		return nil, true, err
	}
	return rec, true, nil
}

// Save stamps the checksum and writes the primary file, then the backup.
// Errors from both writes are joined; the in-memory record is left as is.
func (s *Store) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(rec)
}

func (s *Store) save(rec *Record) error {
	if !s.available {
		return errors.New("storage unavailable")
	}

	data := rec.Marshal()
	logging.Debug("Saving config", zap.String("checksum", fmt.Sprintf("0x%08x", rec.Checksum)))

	var errs []error
	for _, path := range []string{s.primary, s.backup} {
		if err := writeAtomic(path, data); err != nil {
			logging.Warn("Config write failed", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logging.Debug("Config written", zap.String("path", path))
	}
	return errors.Join(errs...)
}

// ForcedPortal reports whether the forced configuration portal flag is set.
func (s *Store) ForcedPortal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available {
		return false
	}
	for _, path := range []string{s.portal, s.portalBak} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(data) != 4 {
			return false
		}
		return binary.LittleEndian.Uint32(data) == forcedPortalMagic
	}
	return false
}

// SetForcedPortal writes the forced configuration portal flag to both files.
func (s *Store) SetForcedPortal(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available {
		return errors.New("storage unavailable")
	}
	data := make([]byte, 4)
	if on {
		binary.LittleEndian.PutUint32(data, forcedPortalMagic)
	}

	var errs []error
	for _, path := range []string{s.portal, s.portalBak} {
		if err := writeAtomic(path, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeAtomic writes to a temporary file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
