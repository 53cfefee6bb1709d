package history

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	recordTypeChangeset uint8 = 0x01

	recordHeaderSize = 16
	recordPrefixSize = 8 // CRC + length
)

var errInvalidRecord = errors.New("history: invalid log record")

// Log record layout, little-endian throughout:
//
//	[0:4]   CRC32-IEEE over everything after the CRC
//	[4:8]   length of header + payload
//	[8:24]  header: type, flags, _, _, version u64, payload length u32
//	[24:]   changeset payload
//
// A record is self-delimiting, so a log file is scanned by decoding
// records back to back until the first failure.

// encodeRecord frames one changeset for the on-disk log.
func encodeRecord(version uint64, changeset []byte) []byte {
	header := make([]byte, recordHeaderSize)
	header[0] = recordTypeChangeset
	header[1] = 0 // flags
	binary.LittleEndian.PutUint64(header[4:], version)
	binary.LittleEndian.PutUint32(header[12:], uint32(len(changeset)))

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // placeholder CRC
	binary.Write(&buf, binary.LittleEndian, uint32(recordHeaderSize+len(changeset)))
	buf.Write(header)
	buf.Write(changeset)

	raw := buf.Bytes()
	crc := crc32.ChecksumIEEE(raw[4:])
	binary.LittleEndian.PutUint32(raw[0:], crc)
	return raw
}

// decodeRecord decodes the record at the front of data, validating the
// CRC. It returns the version, the changeset payload (copied), and the
// total number of bytes the record occupies.
func decodeRecord(data []byte) (uint64, []byte, int, error) {
	if len(data) < recordPrefixSize+recordHeaderSize {
		return 0, nil, 0, errInvalidRecord
	}

	expectedCRC := binary.LittleEndian.Uint32(data[0:4])
	length := binary.LittleEndian.Uint32(data[4:8])

	total := int(recordPrefixSize + length)
	if length < recordHeaderSize || len(data) < total {
		return 0, nil, 0, errInvalidRecord
	}
	if crc32.ChecksumIEEE(data[4:total]) != expectedCRC {
		return 0, nil, 0, errInvalidRecord
	}

	header := data[recordPrefixSize : recordPrefixSize+recordHeaderSize]
	if header[0] != recordTypeChangeset || header[1] != 0 {
		return 0, nil, 0, errInvalidRecord
	}
	version := binary.LittleEndian.Uint64(header[4:])
	payloadLen := binary.LittleEndian.Uint32(header[12:])
	if int(payloadLen) != total-recordPrefixSize-recordHeaderSize {
		return 0, nil, 0, errInvalidRecord
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[recordPrefixSize+recordHeaderSize:total])
	return version, payload, total, nil
}
