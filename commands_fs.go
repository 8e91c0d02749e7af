package mcumgr

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Filesystem group (8) command catalog.

const (
	cmdFSFile                   uint8 = 0
	cmdFSStatus                 uint8 = 1
	cmdFSChecksum               uint8 = 2
	cmdFSSupportedChecksumTypes uint8 = 3
	cmdFSClose                  uint8 = 4
)

// FileDownloadRequest mirrors FileDownload{off, name}.
type FileDownloadRequest struct {
	Off  uint64 `cbor:"off"`
	Name string `cbor:"name"`
}

// FileDownloadResponse mirrors FileDownloadResponse{off, data, len?}. len
// is only carried on the first response (off==0).
type FileDownloadResponse struct {
	Off  uint64  `cbor:"off"`
	Data []byte  `cbor:"data"`
	Len  *uint64 `cbor:"len,omitempty"`
}

func fsFileDownloadChunk(c *Connection, off uint64, name string) (FileDownloadResponse, error) {
	return executeTyped[FileDownloadRequest, FileDownloadResponse](c, commandDescriptor{isWrite: false, groupID: GroupFS, commandID: cmdFSFile}, FileDownloadRequest{Off: off, Name: name})
}

// FileUploadRequest mirrors FileUpload{off, data, name, len?}. len is
// only sent on the first chunk (off==0).
type FileUploadRequest struct {
	Off  uint64  `cbor:"off"`
	Data []byte  `cbor:"data"`
	Name string  `cbor:"name"`
	Len  *uint64 `cbor:"len,omitempty"`
}

// FileUploadResponse mirrors FileUploadResponse{off}.
type FileUploadResponse struct {
	Off uint64 `cbor:"off"`
}

func fsFileUploadChunk(c *Connection, req FileUploadRequest) (FileUploadResponse, error) {
	return executeTyped[FileUploadRequest, FileUploadResponse](c, commandDescriptor{isWrite: true, groupID: GroupFS, commandID: cmdFSFile}, req)
}

// FileStatusRequest mirrors FileStatus{name}.
type FileStatusRequest struct {
	Name string `cbor:"name"`
}

// FileStatusResponse mirrors FileStatusResponse{len}.
type FileStatusResponse struct {
	Len uint64 `cbor:"len"`
}

// FileStatus queries the size of a file on the device.
func FileStatus(c *Connection, name string) (FileStatusResponse, error) {
	return executeTyped[FileStatusRequest, FileStatusResponse](c, commandDescriptor{isWrite: false, groupID: GroupFS, commandID: cmdFSStatus}, FileStatusRequest{Name: name})
}

// FileChecksumRequest mirrors FileChecksum{name, type?, off?, len?}.
type FileChecksumRequest struct {
	Name string  `cbor:"name"`
	Type *string `cbor:"type,omitempty"`
	Off  uint64  `cbor:"off,omitempty"`
	Len  *uint64 `cbor:"len,omitempty"`
}

// FileChecksumDataFormat distinguishes the two shapes a checksum
// algorithm's output may take on the wire.
type FileChecksumDataFormat uint8

const (
	FileChecksumDataNumerical FileChecksumDataFormat = 0
	FileChecksumDataByteArray FileChecksumDataFormat = 1
)

// FileChecksumData is the untagged byte-string-or-unsigned-integer
// checksum output union: decoding tries a byte string first, then an
// unsigned integer, and fails otherwise.
type FileChecksumData struct {
	IsHash   bool
	Hash     []byte
	Checksum uint64
}

// UnmarshalCBOR implements the trial-decode rule above.
func (f *FileChecksumData) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err == nil {
		f.IsHash = true
		f.Hash = b
		return nil
	}
	var u uint64
	if err := cbor.Unmarshal(data, &u); err == nil {
		f.IsHash = false
		f.Checksum = u
		return nil
	}
	return fmt.Errorf("mcumgr: file checksum output is neither a byte string nor an unsigned integer")
}

// Hex renders the checksum output: the hash as lowercase hex, or the
// integer checksum as exactly 8 zero-padded hex digits, big-endian.
func (f FileChecksumData) Hex() string {
	if f.IsHash {
		return hex.EncodeToString(f.Hash)
	}
	return fmt.Sprintf("%08x", f.Checksum)
}

// FileChecksumResponse mirrors FileChecksumResponse{type, off?, len, output}.
type FileChecksumResponse struct {
	Type   string           `cbor:"type"`
	Off    uint64           `cbor:"off,omitempty"`
	Len    uint64           `cbor:"len"`
	Output FileChecksumData `cbor:"output"`
}

// FileChecksum computes a checksum/hash of a device file.
func FileChecksum(c *Connection, req FileChecksumRequest) (FileChecksumResponse, error) {
	return executeTyped[FileChecksumRequest, FileChecksumResponse](c, commandDescriptor{isWrite: false, groupID: GroupFS, commandID: cmdFSChecksum}, req)
}

type supportedFileChecksumTypesRequest struct{}

// FileChecksumProperties describes one supported checksum/hash algorithm.
type FileChecksumProperties struct {
	Format FileChecksumDataFormat `cbor:"format"`
	Size   uint32                 `cbor:"size"`
}

// SupportedFileChecksumTypesResponse mirrors {types: map<name, properties>}.
type SupportedFileChecksumTypesResponse struct {
	Types map[string]FileChecksumProperties `cbor:"types"`
}

// SupportedFileChecksumTypes lists the checksum/hash algorithms the
// device's filesystem management supports.
func SupportedFileChecksumTypes(c *Connection) (SupportedFileChecksumTypesResponse, error) {
	return executeTyped[supportedFileChecksumTypesRequest, SupportedFileChecksumTypesResponse](c, commandDescriptor{isWrite: false, groupID: GroupFS, commandID: cmdFSSupportedChecksumTypes}, supportedFileChecksumTypesRequest{})
}

// FileCloseRequest mirrors FileClose{} — closes any open file handle on
// the device side.
type FileCloseRequest struct{}

type fileCloseResponse struct{}

// FileClose closes the device's currently open file handle.
func FileClose(c *Connection) error {
	_, err := executeTyped[FileCloseRequest, fileCloseResponse](c, commandDescriptor{isWrite: true, groupID: GroupFS, commandID: cmdFSClose}, FileCloseRequest{})
	return err
}
