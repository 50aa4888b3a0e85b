// Package handoff moves a device's pending queue to another device as a
// passphrase-encrypted age file.
package handoff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"fieldsync/internal/model"
)

// FormatVersion is written into every bundle. Import rejects other versions.
const FormatVersion = 1

// DefaultWorkFactor is the scrypt log2 work factor used for new bundles.
const DefaultWorkFactor = 18

// ErrWrongPassphrase is returned by Import when the passphrase does not open the bundle.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// Bundle is the plaintext content of a handoff file.
type Bundle struct {
	Version    int                      `json:"version"`
	DeviceID   string                   `json:"deviceId"`
	ExportedAt model.EpochMillis        `json:"exportedAt"`
	Records    []model.InspectionRecord `json:"records"`
}

// NewBundle wraps records queued on deviceID.
func NewBundle(deviceID string, now time.Time, records []model.InspectionRecord) Bundle {
	out := make([]model.InspectionRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return Bundle{
		Version:    FormatVersion,
		DeviceID:   deviceID,
		ExportedAt: model.MillisFrom(now),
		Records:    out,
	}
}

// Codec seals and opens bundles with age scrypt passphrase encryption.
type Codec struct {
	// WorkFactor is the scrypt log2 work factor for Export and the maximum
	// accepted by Import. Zero means DefaultWorkFactor.
	WorkFactor int
}

func (c Codec) workFactor() int {
	if c.WorkFactor <= 0 {
		return DefaultWorkFactor
	}
	return c.WorkFactor
}

// Export encrypts b with passphrase and writes it to w.
func (c Codec) Export(w io.Writer, passphrase string, b Bundle) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase is empty")
	}
	if b.Version == 0 {
		b.Version = FormatVersion
	}

	plain, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(c.workFactor())

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := encWriter.Write(plain); err != nil {
		return fmt.Errorf("encrypting bundle: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Import reads and decrypts a bundle written by Export. Records without an
// id are dropped.
func (c Codec) Import(r io.Reader, passphrase string) (Bundle, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return Bundle{}, fmt.Errorf("creating scrypt identity: %w", err)
	}
	identity.SetMaxWorkFactor(c.workFactor())

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return Bundle{}, ErrWrongPassphrase
		}
		return Bundle{}, fmt.Errorf("opening bundle: %w", err)
	}

	plain, err := io.ReadAll(decReader)
	if err != nil {
		return Bundle{}, fmt.Errorf("decrypting bundle: %w", err)
	}

	var raw struct {
		Version    int               `json:"version"`
		DeviceID   string            `json:"deviceId"`
		ExportedAt model.EpochMillis `json:"exportedAt"`
		Records    json.RawMessage   `json:"records"`
	}
	if err := json.Unmarshal(plain, &raw); err != nil {
		return Bundle{}, fmt.Errorf("decoding bundle: %w", err)
	}
	if raw.Version != FormatVersion {
		return Bundle{}, fmt.Errorf("unsupported bundle version %d", raw.Version)
	}

	return Bundle{
		Version:    raw.Version,
		DeviceID:   raw.DeviceID,
		ExportedAt: raw.ExportedAt,
		Records:    model.DecodeRecords(bytes.TrimSpace(raw.Records)),
	}, nil
}
