package mcumgr

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Firmware orchestrator (C8): the end-to-end update state machine tying
// the protocol engine, command catalog, and transfer engines together
// with progress reporting and the MCUboot recovery-shell compatibility
// branch.

const bootloaderMCUboot = "MCUboot"

const shownHashDigits = 4

// FirmwareUpdateParams configures one firmware update call.
type FirmwareUpdateParams struct {
	// BootloaderType skips bootloader detection when non-empty.
	BootloaderType string
	SkipReboot     bool
	ForceConfirm   bool
	UpgradeOnly    bool
}

// StepKind enumerates the firmware update's progress tags.
type StepKind int

const (
	StepDetectingBootloader StepKind = iota
	StepBootloaderFound
	StepParsingFirmwareImage
	StepQueryingDeviceState
	StepUpdateInfo
	StepUploadingFirmware
	StepActivatingFirmware
	StepTriggeringReboot
)

// VersionHash pairs a version string with an optional 32-byte image
// hash, used by the UpdateInfo step.
type VersionHash struct {
	Version string
	Hash    *[32]byte
}

// FirmwareUpdateStep is the value passed to the progress callback at
// each step boundary.
type FirmwareUpdateStep struct {
	Kind       StepKind
	Bootloader string // set for StepBootloaderFound
	Current    *VersionHash
	New        VersionHash // set for StepUpdateInfo
}

func truncatedHex(h *[32]byte) string {
	if h == nil {
		return "none"
	}
	s := hex.EncodeToString(h[:])
	if len(s) > shownHashDigits {
		return s[:shownHashDigits] + "…"
	}
	return s
}

func (s FirmwareUpdateStep) String() string {
	switch s.Kind {
	case StepDetectingBootloader:
		return "detecting bootloader"
	case StepBootloaderFound:
		return fmt.Sprintf("bootloader found: %s", s.Bootloader)
	case StepParsingFirmwareImage:
		return "parsing firmware image"
	case StepQueryingDeviceState:
		return "querying device state"
	case StepUpdateInfo:
		cur := "none installed"
		if s.Current != nil {
			cur = fmt.Sprintf("%s (%s)", s.Current.Version, truncatedHex(s.Current.Hash))
		}
		return fmt.Sprintf("current: %s, new: %s (%s)", cur, s.New.Version, truncatedHex(s.New.Hash))
	case StepUploadingFirmware:
		return "uploading firmware"
	case StepActivatingFirmware:
		return "activating firmware"
	case StepTriggeringReboot:
		return "triggering reboot"
	default:
		return "unknown step"
	}
}

// ByteProgress is non-nil only during the uploading-firmware step.
type ByteProgress struct {
	Current, Total uint64
}

// FirmwareUpdateProgressFunc is the orchestrator's progress callback.
// Returning false aborts the update with *ProgressCallbackError.
type FirmwareUpdateProgressFunc func(step FirmwareUpdateStep, progress *ByteProgress) bool

// Orchestrator-level errors.
type BootloaderDetectionFailedError struct{ Err error }

func (e *BootloaderDetectionFailedError) Error() string {
	return fmt.Sprintf("mcumgr: bootloader detection failed: %v", e.Err)
}
func (e *BootloaderDetectionFailedError) Unwrap() error { return e.Err }

type BootloaderNotSupportedError struct{ Name string }

func (e *BootloaderNotSupportedError) Error() string {
	return fmt.Sprintf("mcumgr: bootloader %q is not supported", e.Name)
}

type GetStateFailedError struct{ Err error }

func (e *GetStateFailedError) Error() string {
	return fmt.Sprintf("mcumgr: get image state failed: %v", e.Err)
}
func (e *GetStateFailedError) Unwrap() error { return e.Err }

type ImageUploadFailedError struct{ Err error }

func (e *ImageUploadFailedError) Error() string {
	return fmt.Sprintf("mcumgr: image upload failed: %v", e.Err)
}
func (e *ImageUploadFailedError) Unwrap() error { return e.Err }

type SetStateFailedError struct{ Err error }

func (e *SetStateFailedError) Error() string {
	return fmt.Sprintf("mcumgr: set image state failed: %v", e.Err)
}
func (e *SetStateFailedError) Unwrap() error { return e.Err }

type RebootFailedError struct{ Err error }

func (e *RebootFailedError) Error() string { return fmt.Sprintf("mcumgr: reboot failed: %v", e.Err) }
func (e *RebootFailedError) Unwrap() error { return e.Err }

// AlreadyInstalledError reports that the active image's hash already
// matches the candidate image; no commands beyond QueryState were
// issued.
type AlreadyInstalledError struct{}

func (e *AlreadyInstalledError) Error() string { return "mcumgr: firmware already installed" }

// FirmwareUpdate drives the device through a full firmware update:
// detect bootloader, parse the image, query state, check whether it is
// already installed, upload, activate (with the MCUboot recovery-shell
// compatibility branch), and reboot.
func FirmwareUpdate(conn *Connection, firmware []byte, checksum []byte, params FirmwareUpdateParams, progress FirmwareUpdateProgressFunc) error {
	report := func(step FirmwareUpdateStep) error {
		if progress == nil {
			return nil
		}
		if !progress(step, nil) {
			return &ProgressCallbackError{}
		}
		return nil
	}

	bootloader := params.BootloaderType
	if bootloader == "" {
		if err := report(FirmwareUpdateStep{Kind: StepDetectingBootloader}); err != nil {
			return err
		}
		name, err := BootloaderInfo(conn)
		if err != nil {
			return &BootloaderDetectionFailedError{Err: err}
		}
		if name != bootloaderMCUboot {
			return &BootloaderNotSupportedError{Name: name}
		}
		bootloader = name
		if err := report(FirmwareUpdateStep{Kind: StepBootloaderFound, Bootloader: bootloader}); err != nil {
			return err
		}
	}

	if err := report(FirmwareUpdateStep{Kind: StepParsingFirmwareImage}); err != nil {
		return err
	}
	image, err := ParseMCUbootImage(firmware)
	if err != nil {
		return err
	}

	if err := report(FirmwareUpdateStep{Kind: StepQueryingDeviceState}); err != nil {
		return err
	}
	state, err := GetImageState(conn)
	if err != nil {
		return &GetStateFailedError{Err: err}
	}
	activeImage := selectActiveImage(state.Images)

	var current *VersionHash
	if activeImage != nil {
		var h *[32]byte
		if len(activeImage.Hash) == 32 {
			var hh [32]byte
			copy(hh[:], activeImage.Hash)
			h = &hh
		}
		current = &VersionHash{Version: activeImage.Version, Hash: h}
	}
	newVH := VersionHash{Version: image.Version, Hash: &image.Hash}
	if err := report(FirmwareUpdateStep{Kind: StepUpdateInfo, Current: current, New: newVH}); err != nil {
		return err
	}

	if current != nil && current.Hash != nil && *current.Hash == image.Hash {
		return &AlreadyInstalledError{}
	}

	if err := report(FirmwareUpdateStep{Kind: StepUploadingFirmware}); err != nil {
		return err
	}
	uploadProgress := func(cur, total uint64) bool {
		if progress == nil {
			return true
		}
		return progress(FirmwareUpdateStep{Kind: StepUploadingFirmware}, &ByteProgress{Current: cur, Total: total})
	}
	sha := checksum
	if sha == nil {
		sha = image.Hash[:]
	}
	if err := ImageUpload(conn, nil, firmware, sha, params.UpgradeOnly, uploadProgress); err != nil {
		var pcbErr *ProgressCallbackError
		if errors.As(err, &pcbErr) {
			return err
		}
		return &ImageUploadFailedError{Err: err}
	}

	if err := report(FirmwareUpdateStep{Kind: StepActivatingFirmware}); err != nil {
		return err
	}
	_, err = SetImageState(conn, image.Hash[:], params.ForceConfirm)
	if err != nil {
		var v1 *DeviceErrorV1
		if bootloader == bootloaderMCUboot && errors.As(err, &v1) && v1.CommandNotSupported() {
			if err := report(FirmwareUpdateStep{Kind: StepQueryingDeviceState}); err != nil {
				return err
			}
			recoveryState, rerr := GetImageState(conn)
			if rerr != nil {
				return &GetStateFailedError{Err: rerr}
			}
			if !imageAlreadyActive(recoveryState.Images, image.Hash) {
				return &SetStateFailedError{Err: err}
			}
		} else {
			return &SetStateFailedError{Err: err}
		}
	}

	if !params.SkipReboot {
		if err := report(FirmwareUpdateStep{Kind: StepTriggeringReboot}); err != nil {
			return err
		}
		if err := SystemReset(conn, false, nil); err != nil {
			return &RebootFailedError{Err: err}
		}
	}

	return nil
}

// selectActiveImage picks the active-image entry: the first entry with
// image==0 and active==true, else the first with image==0 and slot==0.
func selectActiveImage(images []ImageSlotState) *ImageSlotState {
	for i := range images {
		if images[i].Image == 0 && images[i].Active {
			return &images[i]
		}
	}
	for i := range images {
		if images[i].Image == 0 && images[i].Slot == 0 {
			return &images[i]
		}
	}
	return nil
}

func imageAlreadyActive(images []ImageSlotState, hash [32]byte) bool {
	for _, img := range images {
		if img.Image == 0 && img.Slot == 0 && len(img.Hash) == 32 {
			var h [32]byte
			copy(h[:], img.Hash)
			if h == hash {
				return true
			}
		}
	}
	return false
}
