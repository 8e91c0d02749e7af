package mcumgr

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Chunk sizer: probe a worst-case request with a 1-byte data field,
// measure its CBOR size, then account for the CBOR length-prefix tier
// of the real data field being sized.

const mgmtHeaderSize = headerSize

// FrameSizeTooSmallError reports that an MTU is too small to carry even
// one byte of upload payload for the given schema.
type FrameSizeTooSmallError struct {
	code string
	MTU  int
}

func (e *FrameSizeTooSmallError) Error() string {
	return fmt.Sprintf("mcumgr: frame size %d too small (%s)", e.MTU, e.code)
}

func cborLengthPrefixBytes(n uint64) int {
	switch {
	case n <= math.MaxUint8:
		return 1
	case n <= math.MaxUint16:
		return 2
	case n <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

func estimateDataBudget(probeSize int, mtu int, code string) (int, error) {
	sizeWithoutData := probeSize - 1
	estimated := mtu - mgmtHeaderSize - sizeWithoutData
	if estimated <= 0 {
		return 0, &FrameSizeTooSmallError{code: code, MTU: mtu}
	}
	lengthPrefixBytes := cborLengthPrefixBytes(uint64(estimated))
	actual := estimated - lengthPrefixBytes
	if actual <= 0 {
		return 0, &FrameSizeTooSmallError{code: code, MTU: mtu}
	}
	return actual, nil
}

// fileUploadMaxChunkSize computes the maximum data payload of a
// FileUpload request for the given MTU and filename.
func fileUploadMaxChunkSize(mtu int, name string) (int, error) {
	maxLen := uint64(math.MaxUint64)
	probe := FileUploadRequest{
		Off:  math.MaxUint64,
		Data: []byte{0},
		Name: name,
		Len:  &maxLen,
	}
	encoded, err := cbor.Marshal(probe)
	if err != nil {
		return 0, &EncodeError{code: "chunker.file_upload", Err: err}
	}
	return estimateDataBudget(len(encoded), mtu, "file_upload")
}

// imageUploadMaxChunkSize computes the maximum data payload of an
// ImageUpload request for the given MTU.
func imageUploadMaxChunkSize(mtu int) (int, error) {
	maxLen := uint64(math.MaxUint64)
	maxImage := uint32(math.MaxUint32)
	upgrade := true
	sha := make([]byte, 32)
	for i := range sha {
		sha[i] = 0x2a
	}
	probe := ImageUploadRequest{
		Image:   &maxImage,
		Len:     &maxLen,
		Off:     math.MaxUint64,
		Sha:     sha,
		Data:    []byte{0},
		Upgrade: &upgrade,
	}
	encoded, err := cbor.Marshal(probe)
	if err != nil {
		return 0, &EncodeError{code: "chunker.image_upload", Err: err}
	}
	return estimateDataBudget(len(encoded), mtu, "image_upload")
}
