package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// CodecVersion tags every encoded cache entry. Bump it whenever the layout
// of Table, Column or Database changes.
const CodecVersion = 1

// ErrCodecVersion is returned when a cache entry was written with another layout.
var ErrCodecVersion = errors.New("schema: cache entry version mismatch")

type entry struct {
	Version int                `msgpack:"v"`
	Payload msgpack.RawMessage `msgpack:"p"`
}

var (
	encOnce  sync.Once
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	codecErr error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	encOnce.Do(func() {
		enc, codecErr = zstd.NewWriter(nil)
		if codecErr != nil {
			return
		}
		dec, codecErr = zstd.NewReader(nil)
	})
	return enc, dec, codecErr
}

func encode(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema: encode payload: %w", err)
	}
	b, err := msgpack.Marshal(&entry{Version: CodecVersion, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("schema: encode entry: %w", err)
	}
	e, _, err := codec()
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(b, nil), nil
}

func decode(b []byte, v any) error {
	_, d, err := codec()
	if err != nil {
		return err
	}
	raw, err := d.DecodeAll(b, nil)
	if err != nil {
		return fmt.Errorf("schema: decompress entry: %w", err)
	}
	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("schema: decode entry: %w", err)
	}
	if e.Version != CodecVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrCodecVersion, e.Version, CodecVersion)
	}
	if err := msgpack.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("schema: decode payload: %w", err)
	}
	return nil
}

// EncodeTable serializes the table into a compressed, versioned cache entry.
func EncodeTable(t *Table) ([]byte, error) { return encode(t) }

// DecodeTable is the inverse of EncodeTable.
func DecodeTable(b []byte) (*Table, error) {
	t := &Table{}
	if err := decode(b, t); err != nil {
		return nil, err
	}
	t.build()
	return t, nil
}

// EncodeDatabase serializes the database listing into a cache entry.
func EncodeDatabase(d *Database) ([]byte, error) { return encode(d) }

// DecodeDatabase is the inverse of EncodeDatabase.
func DecodeDatabase(b []byte) (*Database, error) {
	d := &Database{}
	if err := decode(b, d); err != nil {
		return nil, err
	}
	return d, nil
}
