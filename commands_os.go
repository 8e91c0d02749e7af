package mcumgr

import (
	"fmt"
	"time"
)

// OS group (0) command catalog.

const (
	cmdOSEcho             uint8 = 0
	cmdOSTaskStatistics   uint8 = 2
	cmdOSMCUmgrParameters uint8 = 6
	cmdOSApplicationInfo  uint8 = 7
	cmdOSDateTime         uint8 = 4
	cmdOSReset            uint8 = 5
	cmdOSBootloaderInfo   uint8 = 8
)

// EchoRequest/EchoResponse — Echo{d} -> {r}.
type EchoRequest struct {
	D string `cbor:"d"`
}

type EchoResponse struct {
	R string `cbor:"r"`
}

func osEcho(c *Connection, d string) (string, error) {
	resp, err := executeTyped[EchoRequest, EchoResponse](c, commandDescriptor{isWrite: true, groupID: GroupOS, commandID: cmdOSEcho}, EchoRequest{D: d})
	if err != nil {
		return "", err
	}
	return resp.R, nil
}

// Echo sends d to the device and returns its echoed reply.
func Echo(c *Connection, d string) (string, error) { return osEcho(c, d) }

// TaskStatisticsEntry mirrors one thread's row in a TaskStatistics
// response. stkuse/stksiz are already converted from words to bytes
// (the catalog multiplies the wire value by 4).
type TaskStatisticsEntry struct {
	Prio    int32  `cbor:"prio"`
	Tid     uint32 `cbor:"tid"`
	State   uint32 `cbor:"state"`
	StkUse  uint64 `cbor:"stkuse"`
	StkSiz  uint64 `cbor:"stksiz"`
	CswCnt  uint64 `cbor:"cswcnt"`
	Runtime uint64 `cbor:"runtime"`
}

type taskStatisticsRequest struct{}

type taskStatisticsResponse struct {
	Tasks map[string]TaskStatisticsEntry `cbor:"tasks"`
}

// TaskStatistics returns per-thread runtime statistics, with stkuse and
// stksiz already converted from 32-bit-word counts to byte counts.
func TaskStatistics(c *Connection) (map[string]TaskStatisticsEntry, error) {
	resp, err := executeTyped[taskStatisticsRequest, taskStatisticsResponse](c, commandDescriptor{isWrite: false, groupID: GroupOS, commandID: cmdOSTaskStatistics}, taskStatisticsRequest{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]TaskStatisticsEntry, len(resp.Tasks))
	for name, e := range resp.Tasks {
		e.StkUse *= 4
		e.StkSiz *= 4
		out[name] = e
	}
	return out, nil
}

// SystemResetRequest mirrors SystemReset{force?, boot_mode?}.
type SystemResetRequest struct {
	Force    bool `cbor:"force,omitempty"`
	BootMode *int `cbor:"boot_mode,omitempty"`
}

type systemResetResponse struct{}

// SystemReset issues the reboot command.
func SystemReset(c *Connection, force bool, bootMode *int) error {
	_, err := executeTyped[SystemResetRequest, systemResetResponse](c, commandDescriptor{isWrite: true, groupID: GroupOS, commandID: cmdOSReset}, SystemResetRequest{Force: force, BootMode: bootMode})
	return err
}

type mcumgrParametersRequest struct{}

// MCUmgrParametersResponse mirrors MCUmgrParameters -> {buf_size, buf_count}.
type MCUmgrParametersResponse struct {
	BufSize  uint32 `cbor:"buf_size"`
	BufCount uint32 `cbor:"buf_count"`
}

func osMCUmgrParameters(c *Connection) (MCUmgrParametersResponse, error) {
	return executeTyped[mcumgrParametersRequest, MCUmgrParametersResponse](c, commandDescriptor{isWrite: false, groupID: GroupOS, commandID: cmdOSMCUmgrParameters}, mcumgrParametersRequest{})
}

// MCUmgrParameters returns the device's advertised SMP buffer size/count.
func MCUmgrParameters(c *Connection) (MCUmgrParametersResponse, error) { return osMCUmgrParameters(c) }

// ApplicationInfoRequest mirrors ApplicationInfo{format?}.
type ApplicationInfoRequest struct {
	Format *string `cbor:"format,omitempty"`
}

type applicationInfoResponse struct {
	Output string `cbor:"output"`
}

// ApplicationInfo queries application-level metadata.
func ApplicationInfo(c *Connection, format *string) (string, error) {
	resp, err := executeTyped[ApplicationInfoRequest, applicationInfoResponse](c, commandDescriptor{isWrite: false, groupID: GroupOS, commandID: cmdOSApplicationInfo}, ApplicationInfoRequest{Format: format})
	if err != nil {
		return "", err
	}
	return resp.Output, nil
}

type bootloaderInfoRequest struct{}

type bootloaderInfoResponse struct {
	Bootloader string `cbor:"bootloader"`
}

// BootloaderInfo queries the bootloader name reported by the device.
func BootloaderInfo(c *Connection) (string, error) {
	resp, err := executeTyped[bootloaderInfoRequest, bootloaderInfoResponse](c, commandDescriptor{isWrite: false, groupID: GroupOS, commandID: cmdOSBootloaderInfo}, bootloaderInfoRequest{})
	if err != nil {
		return "", err
	}
	return resp.Bootloader, nil
}

// bootloaderInfoMCUbootModeRequest mirrors {query: "mode"}, the MCUboot
// subquery wired in as a supplemented command.
type bootloaderInfoMCUbootModeRequest struct {
	Query string `cbor:"query"`
}

// BootloaderInfoMCUbootMode is {mode, no-downgrade?}.
type BootloaderInfoMCUbootMode struct {
	Mode        int32 `cbor:"mode"`
	NoDowngrade bool  `cbor:"no-downgrade,omitempty"`
}

// BootloaderInfoMCUbootModeQuery issues the MCUboot-specific
// bootloader-mode subquery.
func BootloaderInfoMCUbootModeQuery(c *Connection) (BootloaderInfoMCUbootMode, error) {
	return executeTyped[bootloaderInfoMCUbootModeRequest, BootloaderInfoMCUbootMode](c, commandDescriptor{isWrite: false, groupID: GroupOS, commandID: cmdOSBootloaderInfo}, bootloaderInfoMCUbootModeRequest{Query: "mode"})
}

// --- Date/time, quantized per Zephyr's accepted textual widths. ---

const dateTimeLayout = "2006-01-02T15:04:05"
const dateTimeLayoutFrac = "2006-01-02T15:04:05.000"

type dateTimeGetRequest struct{}

type dateTimeGetResponseWire struct {
	Datetime string `cbor:"datetime"`
}

// DateTimeGet returns the device's real-time clock, with any reported
// timezone offset discarded (the device's naive local-clock components
// are returned verbatim).
func DateTimeGet(c *Connection) (time.Time, error) {
	resp, err := executeTyped[dateTimeGetRequest, dateTimeGetResponseWire](c, commandDescriptor{isWrite: false, groupID: GroupOS, commandID: cmdOSDateTime}, dateTimeGetRequest{})
	if err != nil {
		return time.Time{}, err
	}
	return parseZephyrDateTime(resp.Datetime)
}

func parseZephyrDateTime(s string) (time.Time, error) {
	layouts := []string{
		dateTimeLayoutFrac,
		dateTimeLayout,
		dateTimeLayoutFrac + "Z07:00",
		dateTimeLayout + "Z07:00",
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			hh, mm, ss := t.Clock()
			return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("mcumgr: invalid device datetime %q: %w", s, lastErr)
}

type dateTimeSetRequestWire struct {
	Datetime string `cbor:"datetime"`
}

type dateTimeSetResponse struct{}

// DateTimeSet sets the device's real-time clock. Fractional seconds are
// quantized to milliseconds and omitted entirely when zero, matching
// Zephyr's accepted textual widths.
func DateTimeSet(c *Connection, t time.Time) error {
	millis := t.Nanosecond() / int(time.Millisecond)
	var s string
	if millis == 0 {
		s = t.Format(dateTimeLayout)
	} else {
		s = fmt.Sprintf("%s.%03d", t.Format(dateTimeLayout), millis)
	}
	_, err := executeTyped[dateTimeSetRequestWire, dateTimeSetResponse](c, commandDescriptor{isWrite: true, groupID: GroupOS, commandID: cmdOSDateTime}, dateTimeSetRequestWire{Datetime: s})
	return err
}
