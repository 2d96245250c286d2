package record

import (
	"errors"
	"strings"
	"testing"
)

func sampleRecord() *Record {
	r := Default(DefaultSlots)
	_ = r.SetSlot(0, "HomeNet", "correct horse")
	_ = r.SetSlot(1, "Garage", "")
	r.MarkClaimed("AbcDefGhiJkl", "user123")
	return r
}

func TestSize(t *testing.T) {
	if got := Size(2); got != 301 {
		t.Errorf("Size(2) = %d, want 301", got)
	}
	if got := len(Default(2).Marshal()); got != Size(2) {
		t.Errorf("Marshal() length = %d, want %d", got, Size(2))
	}
}

func TestDefault(t *testing.T) {
	r := Default(0)
	if r.Slots() != DefaultSlots {
		t.Errorf("Slots() = %d, want %d", r.Slots(), DefaultSlots)
	}
	if r.HasCredentials() {
		t.Error("default record should have no credentials")
	}
	if r.CloudInitialized {
		t.Error("default record should not be initialized")
	}
	if r.OwnerID != NoConfig || r.CloudPassword != NoConfig {
		t.Errorf("default strings should be %q", NoConfig)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
	}{
		{"defaults", Default(2)},
		{"claimed with two slots", sampleRecord()},
		{"four slots", func() *Record {
			r := Default(4)
			_ = r.SetSlot(3, "Attic", "p")
			return r
		}()},
		{"max length fields", func() *Record {
			r := Default(2)
			_ = r.SetSlot(0, strings.Repeat("s", SSIDFieldLen-1), strings.Repeat("p", PasswordFieldLen-1))
			r.MarkClaimed(strings.Repeat("c", PasswordFieldLen-1), strings.Repeat("o", OwnerFieldLen-1))
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.rec.Marshal()
			got, err := Unmarshal(data, tt.rec.Slots())
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !got.Equal(tt.rec) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tt.rec)
			}
			if got.Checksum != tt.rec.Checksum {
				t.Errorf("Checksum = 0x%x, want 0x%x", got.Checksum, tt.rec.Checksum)
			}
		})
	}
}

func TestUnmarshal_EveryByteCorruptionRejected(t *testing.T) {
	data := sampleRecord().Marshal()

	for i := range data {
		corrupt := append([]byte(nil), data...)
		corrupt[i] ^= 0x01
		if _, err := Unmarshal(corrupt, DefaultSlots); err == nil {
			t.Fatalf("flipping byte %d was accepted", i)
		} else if !errors.Is(err, ErrChecksum) {
			t.Fatalf("byte %d: error = %v, want ErrChecksum", i, err)
		}
	}
}

func TestUnmarshal_SizeMismatch(t *testing.T) {
	data := Default(2).Marshal()
	if _, err := Unmarshal(data[:len(data)-1], 2); !errors.Is(err, ErrSize) {
		t.Errorf("truncated data error = %v, want ErrSize", err)
	}
	if _, err := Unmarshal(data, 3); !errors.Is(err, ErrSize) {
		t.Errorf("wrong slot count error = %v, want ErrSize", err)
	}
}

func TestChecksumExcludesItself(t *testing.T) {
	r := sampleRecord()
	data := r.Marshal()
	body := data[:len(data)-checksumLen]
	if Checksum(body) != r.Checksum {
		t.Errorf("checksum should cover only the preceding bytes")
	}
}

func TestCredentialIsEmpty(t *testing.T) {
	tests := []struct {
		cred Credential
		want bool
	}{
		{Credential{SSID: NoConfig}, true},
		{Credential{SSID: ""}, true},
		{Credential{SSID: "HomeNet"}, false},
	}
	for _, tt := range tests {
		if got := tt.cred.IsEmpty(); got != tt.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", tt.cred.SSID, got, tt.want)
		}
	}
}

func TestSetSlot(t *testing.T) {
	r := Default(2)

	if err := r.SetSlot(2, "x", ""); err == nil {
		t.Error("SetSlot(2) on a two-slot record should fail")
	}
	if err := r.SetSlot(-1, "x", ""); err == nil {
		t.Error("SetSlot(-1) should fail")
	}

	long := strings.Repeat("n", 50)
	if err := r.SetSlot(0, long, ""); err != nil {
		t.Fatalf("SetSlot() error = %v", err)
	}
	if got := len(r.Credentials[0].SSID); got != SSIDFieldLen-1 {
		t.Errorf("SSID length = %d, want truncation to %d", got, SSIDFieldLen-1)
	}

	if err := r.SetSlot(0, "", ""); err != nil {
		t.Fatalf("clearing slot error = %v", err)
	}
	if !r.Credentials[0].IsEmpty() {
		t.Error("slot should be cleared")
	}
}

func TestUsable(t *testing.T) {
	r := Default(3)
	_ = r.SetSlot(1, "Second", "pw")
	got := r.Usable()
	if len(got) != 1 || got[0].SSID != "Second" {
		t.Errorf("Usable() = %+v, want only slot 1", got)
	}
}

func TestClone(t *testing.T) {
	r := sampleRecord()
	c := r.Clone()
	c.Credentials[0].SSID = "Other"
	if r.Credentials[0].SSID != "HomeNet" {
		t.Error("Clone should not share credential storage")
	}
}
