package record

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(StoreConfig{Dir: dir, Slots: DefaultSlots}), dir
}

func TestStore_LoadWithoutFiles(t *testing.T) {
	s, dir := newTestStore(t)

	rec, src := s.Load()
	if src != SourceDefaults {
		t.Errorf("source = %v, want defaults", src)
	}
	if rec.HasCredentials() {
		t.Error("defaults should have no credentials")
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultPrimaryFile)); !os.IsNotExist(err) {
		t.Error("loading defaults should not create files")
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	s, _ := newTestStore(t)
	want := sampleRecord()

	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, src := s.Load()
	if src != SourcePrimary {
		t.Errorf("source = %v, want primary", src)
	}
	if !got.Equal(want) {
		t.Errorf("loaded %+v, want %+v", got, want)
	}
}

func TestStore_FallsBackToBackup(t *testing.T) {
	s, dir := newTestStore(t)
	want := sampleRecord()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := os.Remove(filepath.Join(dir, DefaultPrimaryFile)); err != nil {
		t.Fatal(err)
	}

	got, src := s.Load()
	if src != SourceBackup {
		t.Errorf("source = %v, want backup", src)
	}
	if !got.Equal(want) {
		t.Errorf("backup content mismatch")
	}
}

func TestStore_CorruptPrimaryUsesBackup(t *testing.T) {
	s, dir := newTestStore(t)
	want := sampleRecord()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	primary := filepath.Join(dir, DefaultPrimaryFile)
	data, _ := os.ReadFile(primary)
	data[10] ^= 0xFF
	if err := os.WriteFile(primary, data, 0600); err != nil {
		t.Fatal(err)
	}

	got, src := s.Load()
	if src != SourceBackup {
		t.Errorf("source = %v, want backup", src)
	}
	if !got.Equal(want) {
		t.Error("should load the intact backup")
	}
}

func TestStore_BothCorruptReinitializes(t *testing.T) {
	s, dir := newTestStore(t)
	if err := s.Save(sampleRecord()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for _, name := range []string{DefaultPrimaryFile, DefaultBackupFile} {
		path := filepath.Join(dir, name)
		data, _ := os.ReadFile(path)
		data[0]++
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}
	}

	got, src := s.Load()
	if src != SourceReinitialized {
		t.Errorf("source = %v, want reinitialized", src)
	}
	if !got.Equal(Default(DefaultSlots)) {
		t.Errorf("corrupt record should yield defaults, got %+v", got)
	}

	// Defaults were re-persisted and are now valid.
	again, src := s.Load()
	if src != SourcePrimary || !again.Equal(Default(DefaultSlots)) {
		t.Errorf("re-persisted defaults not loaded: src=%v rec=%+v", src, again)
	}
}

func TestStore_TruncatedFileTreatedAsAbsent(t *testing.T) {
	s, dir := newTestStore(t)
	if err := os.WriteFile(filepath.Join(dir, DefaultPrimaryFile), []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}
	rec, src := s.Load()
	if src != SourceReinitialized {
		t.Errorf("source = %v, want reinitialized", src)
	}
	if rec.HasCredentials() {
		t.Error("truncated file must not yield credentials")
	}
}

func TestStore_BackupWriteFailureKeepsPrimary(t *testing.T) {
	s, dir := newTestStore(t)

	// A directory in place of the backup file makes the rename fail.
	if err := os.Mkdir(filepath.Join(dir, DefaultBackupFile), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultBackupFile, "x"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	want := sampleRecord()
	if err := s.Save(want); err == nil {
		t.Error("Save() should report the failed backup write")
	}

	got, src := s.Load()
	if src != SourcePrimary || !got.Equal(want) {
		t.Errorf("primary should still be written: src=%v", src)
	}
}

func TestStore_Unavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(StoreConfig{Dir: filepath.Join(blocker, "sub")})
	rec, src := s.Load()
	if src != SourceUnavailable {
		t.Errorf("source = %v, want unavailable", src)
	}
	if rec.HasCredentials() {
		t.Error("unavailable storage should yield defaults")
	}
	if err := s.Save(rec); err == nil {
		t.Error("Save() on unavailable storage should fail")
	}
}

func TestStore_ForcedPortal(t *testing.T) {
	s, _ := newTestStore(t)

	if s.ForcedPortal() {
		t.Error("flag should be clear without files")
	}
	if err := s.SetForcedPortal(true); err != nil {
		t.Fatalf("SetForcedPortal(true) error = %v", err)
	}
	if !s.ForcedPortal() {
		t.Error("flag should be set")
	}
	if err := s.SetForcedPortal(false); err != nil {
		t.Fatalf("SetForcedPortal(false) error = %v", err)
	}
	if s.ForcedPortal() {
		t.Error("flag should be cleared")
	}
}

func TestSourceString(t *testing.T) {
	if SourceBackup.String() != "backup" {
		t.Errorf("SourceBackup.String() = %q", SourceBackup.String())
	}
	if Source(42).String() != "Source(42)" {
		t.Errorf("unknown source string = %q", Source(42).String())
	}
}
