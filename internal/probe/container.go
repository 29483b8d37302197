package probe

import "bytes"

// asfHeaderGUID is the first 16 bytes of every ASF file.
var asfHeaderGUID = []byte{
	0x30, 0x26, 0xb2, 0x75, 0x8e, 0x66, 0xcf, 0x11,
	0xa6, 0xd9, 0x00, 0xaa, 0x00, 0x62, 0xce, 0x6c,
}

// sniffLen is how many leading bytes the container sniffer needs. It covers
// three full 192-byte TS packets.
const sniffLen = 576

// sniffContainer identifies the container from the file's leading bytes.
// TS detection is framing-based rather than extension-based because DLNA
// clients care about the distinction between 188 and 192 byte packets.
func sniffContainer(head []byte) Container {
	if len(head) >= 16 && bytes.Equal(head[:16], asfHeaderGUID) {
		return ContainerASF
	}
	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		return ContainerMP4
	}
	if len(head) >= 8 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("AVI ")) {
		return ContainerAVI
	}
	if len(head) >= 4 && head[0] == 0x1a && head[1] == 0x45 && head[2] == 0xdf && head[3] == 0xa3 {
		return ContainerMatroska
	}
	if len(head) >= 3 && bytes.Equal(head[:3], []byte("FLV")) {
		return ContainerFLV
	}
	if size, _ := detectTSFraming(head); size != 0 {
		return ContainerMPEGTS
	}
	if len(head) >= 4 && head[0] == 0x00 && head[1] == 0x00 && head[2] == 0x01 && head[3] == 0xba {
		return ContainerMPEGPS
	}
	return ContainerUnknown
}

// detectTSFraming scans the first three packets worth of bytes for repeating
// 0x47 sync bytes. It returns the packet size (188 or 192) and, for 192-byte
// DLNA framing, whether the 4-byte timestamp ahead of the next sync is
// populated. Zero packet size means the buffer is not a transport stream.
func detectTSFraming(head []byte) (int, TSTimestamp) {
	for off := 0; off < 192 && off < len(head); off++ {
		if head[off] != 0x47 {
			continue
		}
		if off+384 < len(head) && head[off+192] == 0x47 && head[off+384] == 0x47 {
			ts := TSTimestampEmpty
			for _, b := range head[off+188 : off+192] {
				if b != 0 {
					ts = TSTimestampValid
					break
				}
			}
			return 192, ts
		}
		if off+376 < len(head) && head[off+188] == 0x47 && head[off+376] == 0x47 {
			return 188, TSTimestampNone
		}
	}
	return 0, TSTimestampNone
}
