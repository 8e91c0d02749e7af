package mcumgr

// Image group (1) command catalog, plus the Slot Info command
// supplemented from the MCUboot tooling ecosystem.

const (
	cmdImageState    uint8 = 0
	cmdImageUpload   uint8 = 1
	cmdImageErase    uint8 = 5
	cmdImageSlotInfo uint8 = 6
)

// ImageSlotState describes one entry of a GetImageState/SetImageState
// response.
type ImageSlotState struct {
	Image     uint32 `cbor:"image"`
	Slot      uint32 `cbor:"slot"`
	Version   string `cbor:"version"`
	Hash      []byte `cbor:"hash,omitempty"`
	Bootable  bool   `cbor:"bootable,omitempty"`
	Pending   bool   `cbor:"pending,omitempty"`
	Confirmed bool   `cbor:"confirmed,omitempty"`
	Active    bool   `cbor:"active,omitempty"`
	Permanent bool   `cbor:"permanent,omitempty"`
}

type getImageStateRequest struct{}

// ImageStateResponse is the shape of both GetImageState and
// SetImageState responses.
type ImageStateResponse struct {
	Images      []ImageSlotState `cbor:"images"`
	SplitStatus *int             `cbor:"splitStatus,omitempty"`
}

// GetImageState lists the device's firmware image slots.
func GetImageState(c *Connection) (ImageStateResponse, error) {
	return executeTyped[getImageStateRequest, ImageStateResponse](c, commandDescriptor{isWrite: false, groupID: GroupImage, commandID: cmdImageState}, getImageStateRequest{})
}

// SetImageStateRequest mirrors SetImageState{hash?, confirm}.
type SetImageStateRequest struct {
	Hash    []byte `cbor:"hash,omitempty"`
	Confirm bool   `cbor:"confirm"`
}

// SetImageState marks the image identified by hash as pending/confirmed.
func SetImageState(c *Connection, hash []byte, confirm bool) (ImageStateResponse, error) {
	return executeTyped[SetImageStateRequest, ImageStateResponse](c, commandDescriptor{isWrite: true, groupID: GroupImage, commandID: cmdImageState}, SetImageStateRequest{Hash: hash, Confirm: confirm})
}

// ImageUploadRequest mirrors ImageUpload{image?, len?, off, sha?, data,
// upgrade?}: image/len/sha/upgrade are only meaningful (and only sent)
// on the first chunk, off==0.
type ImageUploadRequest struct {
	Image   *uint32 `cbor:"image,omitempty"`
	Len     *uint64 `cbor:"len,omitempty"`
	Off     uint64  `cbor:"off"`
	Sha     []byte  `cbor:"sha,omitempty"`
	Data    []byte  `cbor:"data"`
	Upgrade *bool   `cbor:"upgrade,omitempty"`
}

// ImageUploadResponse mirrors ImageUploadResponse{off, match?}. off is
// always present; match is only returned by some devices (whether the
// just-uploaded chunk's data matched what was already flashed).
type ImageUploadResponse struct {
	Off   uint64 `cbor:"off"`
	Match *bool  `cbor:"match,omitempty"`
}

func imageUploadChunk(c *Connection, req ImageUploadRequest) (ImageUploadResponse, error) {
	return executeTyped[ImageUploadRequest, ImageUploadResponse](c, commandDescriptor{isWrite: true, groupID: GroupImage, commandID: cmdImageUpload}, req)
}

// ImageEraseRequest mirrors ImageErase{slot?}.
type ImageEraseRequest struct {
	Slot *uint32 `cbor:"slot,omitempty"`
}

type imageEraseResponse struct{}

// ImageErase erases the image in the given slot (or the default
// inactive slot if slot is nil).
func ImageErase(c *Connection, slot *uint32) error {
	_, err := executeTyped[ImageEraseRequest, imageEraseResponse](c, commandDescriptor{isWrite: true, groupID: GroupImage, commandID: cmdImageErase}, ImageEraseRequest{Slot: slot})
	return err
}

type slotInfoRequest struct{}

// SlotInfoImageSlot describes one flash slot within a SlotInfo response.
type SlotInfoImageSlot struct {
	Slot          uint32  `cbor:"slot"`
	Size          uint64  `cbor:"size"`
	UploadImageID *uint32 `cbor:"upload_image_id,omitempty"`
}

// SlotInfoImage describes the slots available for one image index.
type SlotInfoImage struct {
	Image        uint32              `cbor:"image"`
	Slots        []SlotInfoImageSlot `cbor:"slots"`
	MaxImageSize *uint64             `cbor:"max_image_size,omitempty"`
}

// SlotInfoResponse mirrors SlotInfo -> {images: [...]}, supplemented
// from the MCUboot tooling ecosystem.
type SlotInfoResponse struct {
	Images []SlotInfoImage `cbor:"images"`
}

// SlotInfo enumerates the device's flash slot layout.
func SlotInfo(c *Connection) (SlotInfoResponse, error) {
	return executeTyped[slotInfoRequest, SlotInfoResponse](c, commandDescriptor{isWrite: false, groupID: GroupImage, commandID: cmdImageSlotInfo}, slotInfoRequest{})
}
