package dataset

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051 // 0x00000803: uint8, 3 dims
	idxLabelsMagic = 2049 // 0x00000801: uint8, 1 dim
)

// ReadIDXImages reads an IDX3 image file: magic, count, rows, cols (all
// big-endian uint32) followed by count*rows*cols unsigned bytes. At most limit
// images are read (limit <= 0 reads all). Pixels come back as Float32
// [N, 1, rows, cols] scaled to [0, 1].
func ReadIDXImages(r io.Reader, limit int) (*tensor.RawTensor, error) {
	var hdr [4]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "idx: read image header")
	}
	if hdr[0] != idxImagesMagic {
		return nil, errors.Errorf("idx: invalid image magic number: got %d, want %d", hdr[0], idxImagesMagic)
	}
	n, rows, cols := int(hdr[1]), int(hdr[2]), int(hdr[3])
	if limit > 0 && n > limit {
		n = limit
	}
	if n == 0 || rows == 0 || cols == 0 {
		return nil, errors.Errorf("idx: empty image file (%d x %d x %d)", n, rows, cols)
	}

	pixels := make([]byte, n*rows*cols)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, errors.Wrapf(err, "idx: read %d images", n)
	}

	raw, err := tensor.NewRaw(tensor.Shape{n, 1, rows, cols}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	dst := raw.AsFloat32()
	for i, p := range pixels {
		dst[i] = float32(p) / 255.0
	}
	return raw, nil
}

// ReadIDXLabels reads an IDX1 label file into a Uint8 [N] tensor.
func ReadIDXLabels(r io.Reader, limit int) (*tensor.RawTensor, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "idx: read label header")
	}
	if hdr[0] != idxLabelsMagic {
		return nil, errors.Errorf("idx: invalid label magic number: got %d, want %d", hdr[0], idxLabelsMagic)
	}
	n := int(hdr[1])
	if limit > 0 && n > limit {
		n = limit
	}
	if n == 0 {
		return nil, errors.New("idx: empty label file")
	}

	raw, err := tensor.NewRaw(tensor.Shape{n}, tensor.Uint8, tensor.CPU)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := io.ReadFull(r, raw.AsUint8()); err != nil {
		return nil, errors.Wrapf(err, "idx: read %d labels", n)
	}
	return raw, nil
}

// LoadIDX reads an image file and its label file into a dataset.
func LoadIDX(imagesPath, labelsPath string, limit int) (*TensorDataset, error) {
	images, err := readIDXFile(imagesPath, limit, ReadIDXImages)
	if err != nil {
		return nil, err
	}
	labels, err := readIDXFile(labelsPath, limit, ReadIDXLabels)
	if err != nil {
		return nil, err
	}
	return NewTensorDataset(images, labels)
}

// LoadMNIST loads the train or test split from dir using the standard MNIST
// file names.
func LoadMNIST(dir string, train bool, limit int) (*TensorDataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	return LoadIDX(
		filepath.Join(dir, prefix+"-images-idx3-ubyte"),
		filepath.Join(dir, prefix+"-labels-idx1-ubyte"),
		limit,
	)
}

func readIDXFile(path string, limit int, read func(io.Reader, int) (*tensor.RawTensor, error)) (*tensor.RawTensor, error) {
	//nolint:gosec // G304: dataset paths come from the run configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	raw, err := read(bufio.NewReader(f), limit)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return raw, nil
}
