package audit

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

const (
	// Magic bytes identifying an audit archive
	MagicBytes = "MCHG"
	// Current archive format version
	FormatVersion = 1
	// File extension for exported archives
	FileExtension = ".mchg"
)

var byteOrder = binary.LittleEndian

// FileHeader is the fixed-size header at the start of an archive
type FileHeader struct {
	Magic    [4]byte // "MCHG"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the archive header to the given writer
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:   [4]byte{'M', 'C', 'H', 'G'},
		Version: FormatVersion,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the archive header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid archive format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version: %d", header.Version)
	}
	return &header, nil
}

// ArchiveData is what an exported archive actually contains
type ArchiveData struct {
	ConnectionURI string               `msgpack:"connection_uri"`
	ExportedAt    time.Time            `msgpack:"exported_at"`
	Records       []domain.AuditRecord `msgpack:"records"`
}
