package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// WriteArchive encodes and compresses audit records into the archive
// format: header, then one lz4 block of MessagePack data
func WriteArchive(w io.Writer, data *ArchiveData) error {
	msgpackData, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressed, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	if n == 0 {
		// incompressible input: lz4 reports zero, store uncompressed with
		// a length marker of 0
		return writeArchiveBlocks(w, 0, msgpackData)
	}
	return writeArchiveBlocks(w, uint32(len(msgpackData)), compressed[:n])
}

func writeArchiveBlocks(w io.Writer, uncompressedLen uint32, payload []byte) error {
	if err := WriteHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	var size [4]byte
	byteOrder.PutUint32(size[:], uncompressedLen)
	if _, err := w.Write(size[:]); err != nil {
		return fmt.Errorf("failed to write size: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// ReadArchive decodes an archive produced by WriteArchive
func ReadArchive(r io.Reader) (*ArchiveData, error) {
	if _, err := ReadHeader(r); err != nil {
		return nil, fmt.Errorf("invalid archive header: %w", err)
	}

	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, fmt.Errorf("failed to read size: %w", err)
	}
	uncompressedLen := byteOrder.Uint32(size[:])

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	msgpackData := payload
	if uncompressedLen > 0 {
		msgpackData = make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(payload, msgpackData)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
		msgpackData = msgpackData[:n]
	}

	var data ArchiveData
	if err := msgpack.Unmarshal(msgpackData, &data); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return &data, nil
}

// Export writes every audit record for a connection URI, including
// reverted ones, as a compressed archive
func (s *Store) Export(ctx context.Context, connectionURI string, w io.Writer) error {
	filter := bson.M{"connection_uri": connectionURI}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query audit records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.AuditRecord
	if err := cursor.All(ctx, &records); err != nil {
		return fmt.Errorf("failed to decode audit records: %w", err)
	}

	return WriteArchive(w, &ArchiveData{
		ConnectionURI: connectionURI,
		ExportedAt:    time.Now().UTC(),
		Records:       records,
	})
}

// ExportBuffer is Export into memory, for handlers that set headers
// after a successful encode
func (s *Store) ExportBuffer(ctx context.Context, connectionURI string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Export(ctx, connectionURI, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
