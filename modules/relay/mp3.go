package relay

import (
	"fmt"
	"io"
)

// maxSyncSearch bounds how much is buffered looking for a frame sync before
// the data is passed on as-is.
const maxSyncSearch = 8192

// findMP3FrameSync returns the offset of the first MP3 frame sync: 0xFF
// followed by a byte with the top three bits set. Returns -1 if not found.
func findMP3FrameSync(data []byte) int {
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

// alignMP3 reads from r until head contains a frame sync and returns the
// data from the sync onwards. Without a sync in the first maxSyncSearch
// bytes everything read is returned unchanged.
func alignMP3(r io.Reader, head []byte) ([]byte, error) {
	buf := head
	chunk := make([]byte, 1024)
	for {
		if pos := findMP3FrameSync(buf); pos >= 0 {
			return buf[pos:], nil
		}
		if len(buf) > maxSyncSearch {
			return buf, nil
		}
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			return buf, err
		}
	}
}

// ByteCountIEC formats b using binary prefixes, eg. 1.5 MiB.
func ByteCountIEC(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
