package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Field sizes of the persisted layout. Strings are NUL terminated, so the
// usable length of each field is one byte less.
const (
	SSIDFieldLen     = 32
	PasswordFieldLen = 64
	OwnerFieldLen    = 40

	slotLen     = SSIDFieldLen + PasswordFieldLen
	checksumLen = 4
	flagLen     = 1

	// DefaultSlots is the number of credential slots on a stock station
	DefaultSlots = 2

	// NoConfig marks an unset string field
	NoConfig = "blank"
)

var (
	// ErrSize is returned when the data length does not match the layout
	ErrSize = errors.New("record size mismatch")

	// ErrChecksum is returned when the stored checksum does not match the content
	ErrChecksum = errors.New("record checksum mismatch")
)

// Credential is one network name / secret pair.
type Credential struct {
	SSID     string `json:"ssid"`
	Password string `json:"-"`
}

// IsEmpty reports whether the slot holds no usable credential. Both the
// "blank" sentinel and a zero-length name count as empty.
func (c Credential) IsEmpty() bool {
	return c.SSID == "" || c.SSID == NoConfig
}

// Record is the configuration persisted across reboots.
type Record struct {
	Credentials      []Credential
	CloudPassword    string
	OwnerID          string
	CloudInitialized bool
	Checksum         uint32
}

// Default returns a record with every string field set to the sentinel.
func Default(slots int) *Record {
	if slots <= 0 {
		slots = DefaultSlots
	}
	r := &Record{
		Credentials:   make([]Credential, slots),
		CloudPassword: NoConfig,
		OwnerID:       NoConfig,
	}
	for i := range r.Credentials {
		r.Credentials[i] = Credential{SSID: NoConfig, Password: NoConfig}
	}
	return r
}

// Size returns the encoded length of a record with the given slot count.
func Size(slots int) int {
	return slots*slotLen + PasswordFieldLen + OwnerFieldLen + flagLen + checksumLen
}

// Slots returns the number of credential slots.
func (r *Record) Slots() int {
	return len(r.Credentials)
}

// HasCredentials reports whether at least one slot is usable.
func (r *Record) HasCredentials() bool {
	for _, c := range r.Credentials {
		if !c.IsEmpty() {
			return true
		}
	}
	return false
}

// Usable returns the non-empty credentials in slot order.
func (r *Record) Usable() []Credential {
	out := make([]Credential, 0, len(r.Credentials))
	for _, c := range r.Credentials {
		if !c.IsEmpty() {
			out = append(out, c)
		}
	}
	return out
}

// SetSlot replaces a credential slot. An empty name or the sentinel clears it.
func (r *Record) SetSlot(slot int, ssid, password string) error {
	if slot < 0 || slot >= len(r.Credentials) {
		return fmt.Errorf("slot %d out of range [0,%d)", slot, len(r.Credentials))
	}
	if ssid == "" || ssid == NoConfig {
		r.Credentials[slot] = Credential{SSID: NoConfig, Password: NoConfig}
		return nil
	}
	r.Credentials[slot] = Credential{
		SSID:     truncate(ssid, SSIDFieldLen),
		Password: truncate(password, PasswordFieldLen),
	}
	return nil
}

// MarkClaimed records a successful cloud identity claim.
func (r *Record) MarkClaimed(password, owner string) {
	r.CloudPassword = truncate(password, PasswordFieldLen)
	r.OwnerID = truncate(owner, OwnerFieldLen)
	r.CloudInitialized = true
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Credentials = append([]Credential(nil), r.Credentials...)
	return &c
}

// Equal compares content, ignoring the checksum field.
func (r *Record) Equal(o *Record) bool {
	if o == nil || len(r.Credentials) != len(o.Credentials) {
		return false
	}
	for i := range r.Credentials {
		if r.Credentials[i] != o.Credentials[i] {
			return false
		}
	}
	return r.CloudPassword == o.CloudPassword &&
		r.OwnerID == o.OwnerID &&
		r.CloudInitialized == o.CloudInitialized
}

// Marshal encodes the record and stamps its checksum.
func (r *Record) Marshal() []byte {
	buf := make([]byte, Size(len(r.Credentials)))
	off := 0
	for _, c := range r.Credentials {
		putString(buf[off:off+SSIDFieldLen], c.SSID)
		off += SSIDFieldLen
		putString(buf[off:off+PasswordFieldLen], c.Password)
		off += PasswordFieldLen
	}
	putString(buf[off:off+PasswordFieldLen], r.CloudPassword)
	off += PasswordFieldLen
	putString(buf[off:off+OwnerFieldLen], r.OwnerID)
	off += OwnerFieldLen
	if r.CloudInitialized {
		buf[off] = 1
	}
	off += flagLen

	r.Checksum = Checksum(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], r.Checksum)
	return buf
}

// Unmarshal decodes data for a record with the given slot count. The record
// is rejected whole on any size or checksum mismatch.
func Unmarshal(data []byte, slots int) (*Record, error) {
	if len(data) != Size(slots) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSize, len(data), Size(slots))
	}

	body := len(data) - checksumLen
	stored := binary.LittleEndian.Uint32(data[body:])
	if computed := Checksum(data[:body]); computed != stored {
		return nil, fmt.Errorf("%w: stored 0x%08x, computed 0x%08x", ErrChecksum, stored, computed)
	}

	r := &Record{Credentials: make([]Credential, slots), Checksum: stored}
	off := 0
	for i := range r.Credentials {
		r.Credentials[i].SSID = getString(data[off : off+SSIDFieldLen])
		off += SSIDFieldLen
		r.Credentials[i].Password = getString(data[off : off+PasswordFieldLen])
		off += PasswordFieldLen
	}
	r.CloudPassword = getString(data[off : off+PasswordFieldLen])
	off += PasswordFieldLen
	r.OwnerID = getString(data[off : off+OwnerFieldLen])
	off += OwnerFieldLen
	r.CloudInitialized = data[off] != 0
	return r, nil
}

// Checksum is the sum of all bytes modulo 2^32.
func Checksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

func putString(dst []byte, s string) {
	copy(dst[:len(dst)-1], s)
}

func getString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

func truncate(s string, field int) string {
	if len(s) > field-1 {
		return s[:field-1]
	}
	return s
}
