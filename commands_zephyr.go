package mcumgr

// Zephyr basic group (63) command catalog.

const cmdZephyrEraseStorage uint8 = 0

type eraseStorageRequest struct{}

type eraseStorageResponse struct{}

// EraseStorage wipes the device's persistent settings storage.
func EraseStorage(c *Connection) error {
	_, err := executeTyped[eraseStorageRequest, eraseStorageResponse](c, commandDescriptor{isWrite: true, groupID: GroupZephyrBasic, commandID: cmdZephyrEraseStorage}, eraseStorageRequest{})
	return err
}
