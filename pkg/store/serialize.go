package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how serialized blocks are compressed.
type Compression uint8

const (
	Uncompressed Compression = iota
	Snappy
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Uncompressed:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression converts a name produced by Compression.String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return Zstd, nil
	}
	return 0, fmt.Errorf("unknown compression %q, expected none, snappy or zstd", name)
}

// ErrBadFormat is returned when serialized block data cannot be decoded.
var ErrBadFormat = errors.New("store: bad block format")

const (
	formatVersion = 1
	headerSize    = 8
	channelBytes  = BlockVolume * 8
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Serialize encodes a block.
//
// Layout: version byte, compression byte, channel bitmask byte, a reserved
// byte, the little-endian CRC32 of the stored payload, then the payload.
// The uncompressed payload is every written channel, in channel order, as
// little-endian uint64 values.
func Serialize(b *Block, c Compression) ([]byte, error) {
	var mask uint8
	raw := make([]byte, 0, channelBytes)
	for ch := range b.channels {
		data := b.channels[ch]
		if data == nil {
			continue
		}
		mask |= 1 << uint(ch)
		for _, v := range data {
			raw = binary.LittleEndian.AppendUint64(raw, v)
		}
	}

	var payload []byte
	switch c {
	case Uncompressed:
		payload = raw
	case Snappy:
		payload = snappy.Encode(nil, raw)
	case Zstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("serialize block: %w", err)
		}
		payload = enc.EncodeAll(raw, nil)
	default:
		return nil, fmt.Errorf("serialize block: illegal compression %s", c)
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	out[0] = formatVersion
	out[1] = byte(c)
	out[2] = mask
	binary.LittleEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(payload))
	return append(out, payload...), nil
}

// Deserialize decodes data produced by Serialize.
func Deserialize(data []byte) (*Block, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrBadFormat, len(data))
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, data[0])
	}
	c := Compression(data[1])
	mask := data[2]
	payload := data[headerSize:]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(data[4:8]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrBadFormat)
	}

	var raw []byte
	var err error
	switch c {
	case Uncompressed:
		raw = payload
	case Snappy:
		raw, err = snappy.Decode(nil, payload)
	case Zstd:
		_, dec, zerr := zstdCodecs()
		if zerr != nil {
			return nil, fmt.Errorf("deserialize block: %w", zerr)
		}
		raw, err = dec.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("%w: illegal compression %d", ErrBadFormat, uint8(c))
	}
	if err != nil {
		return nil, fmt.Errorf("deserialize block: %s: %w", c, err)
	}

	b := NewBlock()
	for ch := 0; ch < voxel.ChannelCount; ch++ {
		if mask&(1<<uint(ch)) == 0 {
			continue
		}
		if len(raw) < channelBytes {
			return nil, fmt.Errorf("%w: channel %s truncated", ErrBadFormat, voxel.Channel(ch))
		}
		values := make([]uint64, BlockVolume)
		for i := range values {
			values[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
		b.channels[ch] = values
		raw = raw[channelBytes:]
	}
	if len(raw) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadFormat, len(raw))
	}
	return b, nil
}
