package mcumgr

import (
	"encoding/binary"
	"fmt"
)

// MCUboot image header parsing, limited to the two fields the firmware
// orchestrator consumes: the version string and the SHA-256 TLV.

const (
	mcubootMagic       uint32 = 0x96f3b83d
	mcubootHeaderSize         = 32
	tlvInfoMagic       uint16 = 0x6907
	tlvInfoHeaderSize         = 4
	tlvEntryHeaderSize        = 4
	tlvTypeSHA256      uint8  = 0x10
)

// ParsedImage holds the two MCUboot image fields the orchestrator consumes.
type ParsedImage struct {
	Version string
	Hash    [32]byte
}

// InvalidImageError reports that data is not a parseable MCUboot image.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("mcumgr: invalid MCUboot image: %s", e.Reason)
}

// ParseMCUbootImage extracts the version string and SHA-256 image hash
// from an MCUboot-formatted firmware image.
func ParseMCUbootImage(data []byte) (ParsedImage, error) {
	if len(data) < mcubootHeaderSize {
		return ParsedImage{}, &InvalidImageError{Reason: "shorter than the fixed header"}
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != mcubootMagic {
		return ParsedImage{}, &InvalidImageError{Reason: fmt.Sprintf("bad magic 0x%08x", magic)}
	}

	hdrSize := binary.LittleEndian.Uint16(data[8:10])
	protectTLVSize := binary.LittleEndian.Uint16(data[10:12])
	imgSize := binary.LittleEndian.Uint32(data[12:16])
	verMajor := data[20]
	verMinor := data[21]
	verRevision := binary.LittleEndian.Uint16(data[22:24])
	verBuildNum := binary.LittleEndian.Uint32(data[24:28])

	version := fmt.Sprintf("%d.%d.%d+%d", verMajor, verMinor, verRevision, verBuildNum)

	tlvStart := int(hdrSize) + int(imgSize) + int(protectTLVSize)
	hash, err := findSHA256TLV(data, tlvStart)
	if err != nil {
		return ParsedImage{}, err
	}

	return ParsedImage{Version: version, Hash: hash}, nil
}

func findSHA256TLV(data []byte, start int) ([32]byte, error) {
	var hash [32]byte
	if start+tlvInfoHeaderSize > len(data) {
		return hash, &InvalidImageError{Reason: "no TLV section present"}
	}
	magic := binary.LittleEndian.Uint16(data[start : start+2])
	if magic != tlvInfoMagic {
		return hash, &InvalidImageError{Reason: fmt.Sprintf("bad TLV area magic 0x%04x", magic)}
	}
	totalLen := binary.LittleEndian.Uint16(data[start+2 : start+4])
	end := start + int(totalLen)
	if end > len(data) {
		return hash, &InvalidImageError{Reason: "TLV area length exceeds image"}
	}

	pos := start + tlvInfoHeaderSize
	for pos+tlvEntryHeaderSize <= end {
		tlvType := data[pos]
		tlvLen := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		valueStart := pos + tlvEntryHeaderSize
		valueEnd := valueStart + int(tlvLen)
		if valueEnd > end {
			return hash, &InvalidImageError{Reason: "truncated TLV entry"}
		}
		if tlvType == tlvTypeSHA256 && tlvLen == 32 {
			copy(hash[:], data[valueStart:valueEnd])
			return hash, nil
		}
		pos = valueEnd
	}
	return hash, &InvalidImageError{Reason: "no SHA-256 TLV found"}
}
