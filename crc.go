package mcumgr

// CRC-16/XMODEM: polynomial 0x1021, initial value 0x0000, no input or
// output reflection. No stdlib package or retrieved example implements
// this exact variant (see DESIGN.md), so it is hand-rolled in the
// corpus's own style of hand-rolling small checksum routines for ad hoc
// wire protocols.

const crc16XModemPoly = 0x1021

func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crc16XModemPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
