// Package archive persists validation reports as JSON, zstd-compressed when the path
// ends in .zst.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/internal/infrastructure/blob"
)

// CompressedExt selects zstd compression.
const CompressedExt = ".zst"

// Archiver writes and reads reports through a blob resolver.
type Archiver struct {
	blobs   *blob.Resolver
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New creates an archiver. The zstd encoder and decoder are reused across calls.
func New(blobs *blob.Resolver) (*Archiver, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Archiver{blobs: blobs, encoder: encoder, decoder: decoder}, nil
}

// Close releases the decoder.
func (a *Archiver) Close() {
	a.decoder.Close()
}

// Compressed reports whether path selects compression.
func Compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), CompressedExt)
}

// Encode renders report as indented JSON, compressed when compress is set.
func (a *Archiver) Encode(report *validation.Report, compress bool) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if !compress {
		return append(data, '\n'), nil
	}
	return a.encoder.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Decode reverses Encode.
func (a *Archiver) Decode(data []byte, compressed bool) (*validation.Report, error) {
	if compressed {
		plain, err := a.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, apperror.NewInvalidInput("report is not valid zstd").WithCause(err)
		}
		data = plain
	}
	report := validation.NewReport()
	if err := json.Unmarshal(data, report); err != nil {
		return nil, apperror.NewInvalidInput("report is not valid JSON").WithCause(err)
	}
	return report, nil
}

// Save writes report to path.
func (a *Archiver) Save(ctx context.Context, path string, report *validation.Report) error {
	data, err := a.Encode(report, Compressed(path))
	if err != nil {
		return err
	}
	return a.blobs.Write(ctx, path, bytes.NewReader(data))
}

// Load reads a report saved by Save.
func (a *Archiver) Load(ctx context.Context, path string) (*validation.Report, error) {
	rc, err := a.blobs.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperror.NewBackend("archive", err)
	}
	return a.Decode(data, Compressed(path))
}
