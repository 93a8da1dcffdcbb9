// Package serialization implements the .born container used for model and
// training checkpoints.
//
//	Format v2:
//	  [0x00: Magic "BORN"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: reserved]
//	  [0x10: Header size (uint64 LE)]
//	  [0x18: Data size (uint64 LE)]
//	  [0x20: SHA-256 of the data section]
//	  [Header: JSON]
//	  [padding to 64 bytes]
//	  [Tensor data: raw little-endian bytes]
//
// v1 files (magic, version, flags, header size, header, aligned data) are
// still readable; they carry no checksum.
//
// Tensors are written in name order, so equal state dicts produce equal
// data sections.
//
// Example usage:
//
//	err := serialization.WriteFile("model.born", model.StateDict(), serialization.Header{ModelType: "Sequential"})
//
//	f, err := serialization.ReadFile("model.born")
//	err = model.LoadStateDict(f.Tensors)
package serialization
