package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/convkit/convkit/internal/tensor"
)

// File is a decoded .born file.
type File struct {
	Header  Header
	Tensors map[string]*tensor.RawTensor
}

// Read decodes a .born stream. Tensors are placed on device.
func Read(r io.Reader, device tensor.Device) (*File, error) {
	prefix := make([]byte, prefixSizeV1)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	if string(prefix[0:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, prefix[0:4])
	}

	version := binary.LittleEndian.Uint32(prefix[4:8])
	var (
		headerSize uint64
		dataSize   int64 = -1
		stored     [ChecksumSize]byte
		pos        int
	)
	switch version {
	case FormatVersionV1:
		headerSize = binary.LittleEndian.Uint64(prefix[12:20])
		pos = prefixSizeV1
	case FormatVersion:
		rest := make([]byte, FixedHeaderSize-prefixSizeV1)
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, fmt.Errorf("failed to read file header: %w", err)
		}
		fixed := append(prefix, rest...)
		headerSize = binary.LittleEndian.Uint64(fixed[16:24])
		ds := binary.LittleEndian.Uint64(fixed[24:32])
		if ds > uint64(MaxDataSize) {
			return nil, &ValidationError{Type: "data_too_large", Details: fmt.Sprintf("%d bytes", ds)}
		}
		dataSize = int64(ds)
		copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])
		pos = FixedHeaderSize
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	pos += int(headerSize)

	if _, err := io.CopyN(io.Discard, r, int64(padding(pos))); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	var data []byte
	var err error
	if dataSize >= 0 {
		data = make([]byte, dataSize)
		_, err = io.ReadFull(r, data)
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if version == FormatVersion {
		if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
			return nil, err
		}
	}

	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dtype, ok := dtypeOf(meta)
		if !ok {
			return nil, fmt.Errorf("%w: %q for tensor %q", ErrUnknownDType, meta.DType, meta.Name)
		}
		if _, dup := tensors[meta.Name]; dup {
			return nil, &ValidationError{Type: "duplicate_name", Tensor: meta.Name, Details: "tensor listed twice"}
		}
		buf := bytes.Clone(data[meta.Offset : meta.Offset+meta.Size])
		raw, err := tensor.RawFromBytes(buf, tensor.Shape(meta.Shape), dtype, device)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		tensors[meta.Name] = raw
	}

	return &File{Header: header, Tensors: tensors}, nil
}

// ReadFile decodes the .born file at path.
func ReadFile(path string, device tensor.Device) (*File, error) {
	//nolint:gosec // G304: loading a user-chosen checkpoint is the point
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(bufio.NewReader(f), device)
}
