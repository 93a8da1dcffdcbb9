package serialization

import (
	"time"

	"github.com/convkit/convkit/internal/tensor"
)

// Format constants.
const (
	MagicBytes       = "BORN"
	FormatVersionV1  = 1    // v1: 20-byte prefix, no checksum
	FormatVersion    = 2    // v2: 64-byte fixed header with SHA-256 of the data section
	HeaderAlignment  = 64   // tensor data starts on a 64-byte boundary
	FixedHeaderSize  = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize     = 32   // SHA-256
	ChecksumOffset   = 0x20 // checksum position in the v2 fixed header
	prefixSizeV1     = 4 + 4 + 4 + 8
	producerName     = "convkit"
	producerVersion  = "0.1.0"
	defaultModelType = "Sequential"
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// Header is the JSON header of a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Producer      string            `json:"producer"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records what a training checkpoint was saved from.
type CheckpointMeta struct {
	Dataset       string  `json:"dataset"`
	Accuracy      float64 `json:"accuracy"`
	OptimizerType string  `json:"optimizer_type"`
	ModelPrefix   string  `json:"model_prefix"`
	OptimPrefix   string  `json:"optim_prefix"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`  // e.g. "model_paras.0.weight"
	DType  string `json:"dtype"` // tensor.DataType.String()
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

func dtypeOf(meta TensorMeta) (tensor.DataType, bool) {
	return tensor.ParseDataType(meta.DType)
}
