package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/golang/snappy"

	"github.com/siftlog/sift/pkg/types"
)

// Archive segment format: a sequence of framed entries, one per record.
// Each frame is [4-byte length][4-byte CRC32][snappy-compressed JSON].
// The CRC covers the compressed payload.

// WriteSegment writes records to a segment file at path and returns the
// file size in bytes. The file is fsynced before returning so an upload
// never observes a partial segment.
func WriteSegment(path string, records []types.Record) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create segment: %w", err)
	}
	defer f.Close()

	var header [8]byte
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return 0, fmt.Errorf("failed to encode record: %w", err)
		}
		compressed := snappy.Encode(nil, data)

		binary.BigEndian.PutUint32(header[0:4], uint32(len(compressed)))
		binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(compressed))
		if _, err := f.Write(header[:]); err != nil {
			return 0, fmt.Errorf("failed to write frame header: %w", err)
		}
		if _, err := f.Write(compressed); err != nil {
			return 0, fmt.Errorf("failed to write frame payload: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync segment: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadSegment reads all records from a segment file. A corrupt frame
// (bad CRC or truncation) fails the whole read; segments are immutable
// once written, so corruption means the file is damaged.
func ReadSegment(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment: %w", err)
	}
	defer f.Close()

	var records []types.Record
	var header [8]byte
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return nil, fmt.Errorf("truncated frame header: %w", err)
		}

		length := binary.BigEndian.Uint32(header[0:4])
		checksum := binary.BigEndian.Uint32(header[4:8])

		compressed := make([]byte, length)
		if _, err := io.ReadFull(f, compressed); err != nil {
			return nil, fmt.Errorf("truncated frame payload: %w", err)
		}
		if crc32.ChecksumIEEE(compressed) != checksum {
			return nil, fmt.Errorf("segment corruption: checksum mismatch")
		}

		data, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress frame: %w", err)
		}

		var rec types.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
}
