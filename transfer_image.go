package mcumgr

import "crypto/sha256"

// ImageUpload writes image data to the device's image slot, sending
// image/sha/upgrade only on the first chunk. If sha is nil, the image's
// own SHA-256 is computed and used instead.
func ImageUpload(c *Connection, image *uint32, data []byte, sha []byte, upgradeOnly bool, progress ProgressFunc) error {
	chunkSize, err := imageUploadMaxChunkSize(c.frameSize())
	if err != nil {
		return err
	}

	if sha == nil {
		sum := sha256.Sum256(data)
		sha = sum[:]
	}

	total := uint64(len(data))
	var offset uint64
	first := true
	for offset < total || (total == 0 && first) {
		end := offset + uint64(chunkSize)
		if end > total {
			end = total
		}
		req := ImageUploadRequest{
			Off: offset,
			Data: data[offset:end],
		}
		if first {
			l := total
			req.Len = &l
			req.Sha = sha
			req.Image = image
			up := upgradeOnly
			req.Upgrade = &up
		}
		resp, err := imageUploadChunk(c, req)
		if err != nil {
			return err
		}
		if resp.Off != end {
			return &UnexpectedOffsetError{Want: end, Got: resp.Off}
		}
		offset = end
		first = false
		if err := reportProgress(progress, offset, total); err != nil {
			return err
		}
	}
	return nil
}
