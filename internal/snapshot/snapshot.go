// Package snapshot captures the base ledger as compressed, hash-chained
// records so that any tampering or loss in the history can be detected.
package snapshot

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/shared/database"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"
)

const FormatVersion = 1

// GenesisHash is the previous hash of the first snapshot in a chain.
var GenesisHash = strings.Repeat("0", 64)

type Header struct {
	Version   int   `json:"version"`
	TickCount int64 `json:"tick_count"`
	TakenAt   int64 `json:"taken_at"`
}

type Payload struct {
	Header Header      `json:"header"`
	Bases  []base.Base `json:"bases"`
}

type Snapshot struct {
	ID        string          `db:"id" json:"id"`
	TickCount int64           `db:"tick_count" json:"tick_count"`
	TakenAt   database.Millis `db:"taken_at" json:"taken_at"`
	BaseCount int             `db:"base_count" json:"base_count"`
	Hash      string          `db:"hash" json:"hash"`
	PrevHash  string          `db:"prev_hash" json:"prev_hash"`
	StateBlob []byte          `db:"state_blob" json:"-"`
}

// Encode serialises the payload as JSON and compresses it with zstd.
func Encode(tick int64, at time.Time, bases []base.Base) ([]byte, error) {
	payload := Payload{
		Header: Header{Version: FormatVersion, TickCount: tick, TakenAt: at.UnixMilli()},
		Bases:  bases,
	}
	if payload.Bases == nil {
		payload.Bases = []base.Base{}
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(enc).Encode(payload); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(blob []byte) (*Payload, error) {
	dec, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if payload.Header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", payload.Header.Version)
	}
	return &payload, nil
}

// ChainHash links a compressed blob to the hash before it.
func ChainHash(blob []byte, prevHash string) string {
	h := blake3.New(32, nil)
	h.Write(blob)
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}
