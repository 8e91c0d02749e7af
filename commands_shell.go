package mcumgr

// Shell group (9) command catalog.

const cmdShellExecute uint8 = 0

// ShellExecuteRequest mirrors ShellCommandLineExecute{argv}.
type ShellExecuteRequest struct {
	Argv []string `cbor:"argv"`
}

// ShellExecuteResponse mirrors {o, ret}. ret is signed: a negative value
// is a device-side error, a positive non-zero value is a reported
// but non-error shell exit status.
type ShellExecuteResponse struct {
	O string `cbor:"o"`
	Ret int32 `cbor:"ret"`
}

// ShellExecute runs argv as a shell command line on the device.
func ShellExecute(c *Connection, argv []string) (ShellExecuteResponse, error) {
	return executeTyped[ShellExecuteRequest, ShellExecuteResponse](c, commandDescriptor{isWrite: true, groupID: GroupShell, commandID: cmdShellExecute}, ShellExecuteRequest{Argv: argv})
}
