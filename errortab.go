package mcumgr

import "fmt"

// Numeric-to-symbolic error translation tables. These are
// presentation-only except for EOK, ENOTSUP, and the >=256 user-error
// range, which higher layers consult directly via IsEOK and
// DeviceErrorV1.CommandNotSupported.

var mgmtErrNames = map[int]string{
	0: "EOK",
	1: "EUNKNOWN",
	2: "ENOMEM",
	3: "EINVAL",
	4: "ETIMEOUT",
	5: "ENOENT",
	6: "EBADSTATE",
	7: "EMSGSIZE",
	8: "ENOTSUP",
	9: "ECORRUPT",
	10: "EBUSY",
	11: "EACCESSDENIED",
	12: "UNSUPPORTED_TOO_OLD",
	13: "UNSUPPORTED_TOO_NEW",
}

func mgmtErrName(rc int) string {
	if rc >= mgmtErrEPerUser {
		return fmt.Sprintf("EPERUSER(%d)", rc)
	}
	if name, ok := mgmtErrNames[rc]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", rc)
}

// MCUmgr group identifiers.
const (
	GroupOS          uint16 = 0
	GroupImage       uint16 = 1
	GroupStat        uint16 = 2
	GroupSettings    uint16 = 3
	GroupLog         uint16 = 4
	GroupCrash       uint16 = 5
	GroupSplitImage  uint16 = 6
	GroupRunTest     uint16 = 7
	GroupFS          uint16 = 8
	GroupShell       uint16 = 9
	GroupEnum        uint16 = 10
	GroupZephyrBasic uint16 = 63
)

var osErrNames = []string{"OK", "UNKNOWN", "INVALID_FORMAT", "QUERY_YIELDS_NO_ANSWER", "RTC_NOT_SET", "RTC_COMMAND_FAILED", "QUERY_RESPONSE_VALUE_NOT_VALID"}

var imageErrNames = []string{
	"OK", "UNKNOWN", "FLASH_CONFIG_QUERY_FAIL", "NO_IMAGE", "NO_TLVS", "INVALID_TLV",
	"TLV_MULTIPLE_HASHES_FOUND", "TLV_INVALID_SIZE", "HASH_NOT_FOUND", "NO_FREE_SLOT",
	"FLASH_OPEN_FAILED", "FLASH_READ_FAILED", "FLASH_WRITE_FAILED", "FLASH_ERASE_FAILED",
	"INVALID_SLOT", "NO_FREE_MEMORY", "FLASH_CONTEXT_ALREADY_SET", "FLASH_CONTEXT_NOT_SET",
	"FLASH_AREA_DEVICE_NULL", "INVALID_PAGE_OFFSET", "INVALID_OFFSET", "INVALID_LENGTH",
	"INVALID_IMAGE_HEADER", "INVALID_IMAGE_HEADER_MAGIC", "INVALID_HASH", "INVALID_FLASH_ADDRESS",
	"VERSION_GET_FAILED", "CURRENT_VERSION_IS_NEWER", "IMAGE_ALREADY_PENDING",
	"INVALID_IMAGE_VECTOR_TABLE", "INVALID_IMAGE_TOO_LARGE", "INVALID_IMAGE_DATA_OVERRUN",
	"IMAGE_CONFIRMATION_DENIED", "IMAGE_SETTING_TEST_TO_ACTIVE_DENIED", "ACTIVE_SLOT_NOT_KNOWN",
}

var fsErrNames = []string{
	"OK", "UNKNOWN", "FILE_INVALID_NAME", "FILE_NOT_FOUND", "FILE_IS_DIRECTORY",
	"FILE_OPEN_FAILED", "FILE_SEEK_FAILED", "FILE_READ_FAILED", "FILE_TRUNCATE_FAILED",
	"FILE_DELETE_FAILED", "FILE_WRITE_FAILED", "FILE_OFFSET_NOT_VALID",
	"FILE_OFFSET_LARGER_THAN_FILE", "CHECKSUM_HASH_NOT_FOUND", "MOUNT_POINT_NOT_FOUND",
	"READ_ONLY_FILESYSTEM", "FILE_EMPTY",
}

var shellErrNames = []string{"OK", "UNKNOWN", "COMMAND_TOO_LONG", "EMPTY_COMMAND"}

var statErrNames = []string{"OK", "UNKNOWN", "INVALID_GROUP", "INVALID_STAT_NAME", "INVALID_STAT_SIZE", "WALK_ABORTED"}

var settingsErrNames = []string{
	"OK", "UNKNOWN", "KEY_TOO_LONG", "KEY_NOT_FOUND", "READ_NOT_SUPPORTED",
	"ROOT_KEY_NOT_FOUND", "WRITE_NOT_SUPPORTED", "DELETE_NOT_SUPPORTED", "SAVE_NOT_SUPPORTED",
}

var enumErrNames = []string{"OK", "UNKNOWN", "TOO_MANY_GROUP_ENTRIES", "INSUFFICIENT_HEAP_FOR_ENTRIES", "INDEX_TOO_LARGE"}

var zephyrBasicErrNames = []string{"OK", "UNKNOWN", "FLASH_OPEN_FAILED", "FLASH_CONFIG_QUERY_FAIL", "FLASH_ERASE_FAILED"}

// v2ErrName renders a v2 (group, rc) pair symbolically, falling back to a
// numeric rendering for codes outside the known per-group table.
func v2ErrName(group uint16, rc int32) string {
	var table []string
	switch group {
	case GroupOS:
		table = osErrNames
	case GroupImage:
		table = imageErrNames
	case GroupFS:
		table = fsErrNames
	case GroupShell:
		table = shellErrNames
	case GroupStat:
		table = statErrNames
	case GroupSettings:
		table = settingsErrNames
	case GroupEnum:
		table = enumErrNames
	case GroupZephyrBasic:
		table = zephyrBasicErrNames
	default:
		return fmt.Sprintf("UNKNOWN_GROUP_%d_RC_%d", group, rc)
	}
	if rc >= 0 && int(rc) < len(table) {
		return table[rc]
	}
	return fmt.Sprintf("UNKNOWN(%d)", rc)
}

// threadStateFlagNames names the bits of a TaskStatisticsEntry.State bitmask.
var threadStateFlagNames = []struct {
	bit  uint8
	name string
}{
	{1, "dummy"},
	{2, "pending"},
	{4, "sleeping"},
	{8, "dead"},
	{16, "suspended"},
	{32, "aborting"},
	{64, "suspending"},
	{128, "queued"},
}

// DecodeThreadState renders a task state bitmask as its set flag names
// joined with " | ", matching the Zephyr convention.
func DecodeThreadState(state uint8) string {
	var out string
	for _, f := range threadStateFlagNames {
		if state&f.bit != 0 {
			if out != "" {
				out += " | "
			}
			out += f.name
		}
	}
	return out
}
