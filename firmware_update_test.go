package mcumgr

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driveFirmwareUpdate answers every request the orchestrator sends until
// stop is closed, dispatching purely on (group, command, op).
func driveFirmwareUpdate(t *testing.T, ft *fakeTransport, stop <-chan struct{}, oldImages []ImageSlotState, uploaded *[]byte) {
	t.Helper()
	next := 0
	for {
		select {
		case <-stop:
			return
		default:
		}
		if ft.sentCount() <= next {
			time.Sleep(time.Millisecond)
			continue
		}
		ft.mu.Lock()
		packet := ft.sentPackets[next]
		ft.mu.Unlock()
		next++

		h, err := DecodeHeader(packet)
		require.NoError(t, err)
		body := packet[headerSize:]

		var respBody any
		respOp := OpWriteResponse
		switch {
		case h.GroupID == GroupOS && h.CommandID == cmdOSBootloaderInfo:
			respOp = OpReadResponse
			respBody = bootloaderInfoResponse{Bootloader: bootloaderMCUboot}
		case h.GroupID == GroupImage && h.CommandID == cmdImageState && h.Op == OpRead:
			respOp = OpReadResponse
			respBody = ImageStateResponse{Images: oldImages}
		case h.GroupID == GroupImage && h.CommandID == cmdImageUpload:
			var req ImageUploadRequest
			require.NoError(t, cbor.Unmarshal(body, &req))
			*uploaded = append((*uploaded)[:req.Off], req.Data...)
			respBody = ImageUploadResponse{Off: req.Off + uint64(len(req.Data))}
		case h.GroupID == GroupImage && h.CommandID == cmdImageState && h.Op == OpWrite:
			respBody = ImageStateResponse{Images: oldImages}
		case h.GroupID == GroupOS && h.CommandID == cmdOSReset:
			respBody = struct{}{}
		default:
			t.Fatalf("unhandled request: group=%d command=%d op=%d", h.GroupID, h.CommandID, h.Op)
		}

		h.Op = respOp
		ft.queueResponsePacket(buildResponsePacket(t, h, respBody))
	}
}

func TestFirmwareUpdateHappyPath(t *testing.T) {
	var oldHash, newHash [32]byte
	for i := range oldHash {
		oldHash[i] = 0xAA
	}
	for i := range newHash {
		newHash[i] = 0xBB
	}
	firmware := buildMCUbootImage(t, 256, newHash, 2, 0, 0, 1)

	oldImages := []ImageSlotState{
		{Image: 0, Slot: 0, Version: "1.0.0", Hash: oldHash[:], Active: true, Confirmed: true},
	}

	ft := &fakeTransport{}
	c := newTestConnection(ft)
	c.SetFrameSize(256)

	stop := make(chan struct{})
	var uploaded []byte
	go driveFirmwareUpdate(t, ft, stop, oldImages, &uploaded)
	defer close(stop)

	var steps []StepKind
	progress := func(step FirmwareUpdateStep, bp *ByteProgress) bool {
		steps = append(steps, step.Kind)
		return true
	}

	err := FirmwareUpdate(c, firmware, nil, FirmwareUpdateParams{}, progress)
	require.NoError(t, err)
	assert.Equal(t, firmware, uploaded)
	assert.Contains(t, steps, StepDetectingBootloader)
	assert.Contains(t, steps, StepParsingFirmwareImage)
	assert.Contains(t, steps, StepUploadingFirmware)
	assert.Contains(t, steps, StepActivatingFirmware)
	assert.Contains(t, steps, StepTriggeringReboot)
}

func TestFirmwareUpdateAlreadyInstalledShortcut(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = 0xCC
	}
	firmware := buildMCUbootImage(t, 64, hash, 1, 0, 0, 0)

	oldImages := []ImageSlotState{
		{Image: 0, Slot: 0, Version: "1.0.0", Hash: hash[:], Active: true, Confirmed: true},
	}

	ft := &fakeTransport{}
	c := newTestConnection(ft)
	c.SetFrameSize(256)

	stop := make(chan struct{})
	var uploaded []byte
	go driveFirmwareUpdate(t, ft, stop, oldImages, &uploaded)
	defer close(stop)

	err := FirmwareUpdate(c, firmware, nil, FirmwareUpdateParams{}, nil)
	require.Error(t, err)
	var already *AlreadyInstalledError
	require.ErrorAs(t, err, &already)
	assert.Empty(t, uploaded, "already-installed shortcut must not issue an upload")
}

func TestSelectActiveImagePrefersActiveFlagThenSlotZero(t *testing.T) {
	images := []ImageSlotState{
		{Image: 0, Slot: 1, Version: "2.0.0", Active: false},
		{Image: 0, Slot: 0, Version: "1.0.0", Active: false},
	}
	got := selectActiveImage(images)
	require.NotNil(t, got)
	assert.Equal(t, "1.0.0", got.Version)

	images[0].Active = true
	got = selectActiveImage(images)
	require.NotNil(t, got)
	assert.Equal(t, "2.0.0", got.Version)
}

func TestBootloaderNotSupportedSurfacesDistinctError(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestConnection(ft)

	done := make(chan error, 1)
	go func() {
		done <- FirmwareUpdate(c, []byte{}, nil, FirmwareUpdateParams{}, nil)
	}()

	for ft.sentCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	seq := lastSentSeq(t, ft)
	h := Header{Version: smpVersion2, Op: OpReadResponse, GroupID: GroupOS, SequenceNum: seq, CommandID: cmdOSBootloaderInfo}
	ft.queueResponsePacket(buildResponsePacket(t, h, bootloaderInfoResponse{Bootloader: "MynewtBoot"}))

	err := <-done
	require.Error(t, err)
	var bn *BootloaderNotSupportedError
	require.ErrorAs(t, err, &bn)
	assert.Equal(t, "MynewtBoot", bn.Name)
}
