// Package record implements the durable configuration store of a station.
//
// The configuration record is a fixed-size binary structure holding the
// network credential slots, the cloud identity secret, the owner identifier
// and the cloud-identity-initialized flag, followed by a checksum. Layout for
// N slots (all multi-byte integers little-endian, no padding):
//
//	offset       size  field
//	96*i         32    slot i network name (NUL terminated)
//	96*i+32      64    slot i secret (NUL terminated)
//	96*N         64    cloud secret
//	96*N+64      40    owner id
//	96*N+104     1     initialized flag
//	96*N+105     4     checksum = sum of all preceding bytes mod 2^32
//
// # Redundancy
//
// Every Save writes the primary file and then the backup file, each through a
// temporary file and rename. Load tries primary, then backup, then falls back
// to sentinel defaults. A size or checksum mismatch is treated exactly like a
// missing file.
//
//	store := record.NewStore(record.StoreConfig{Dir: "/var/lib/weatherbird"})
//	rec, src := store.Load()
//	_ = rec.SetSlot(0, "HomeNet", "secret")
//	if err := store.Save(rec); err != nil {
//	    // logged by the store; in-memory record stays authoritative
//	}
//	_ = src
package record
