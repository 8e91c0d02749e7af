package mcumgr

import "io"

// ProgressFunc reports transfer progress; returning false aborts the
// in-flight transfer with *ProgressCallbackError.
type ProgressFunc func(current, total uint64) bool

func reportProgress(progress ProgressFunc, current, total uint64) error {
	if progress == nil {
		return nil
	}
	if !progress(current, total) {
		return &ProgressCallbackError{}
	}
	return nil
}

// FileDownload reads the named file off the device into sink, following
// the length-driven offset loop: the first response must carry len and
// off==0; every subsequent response's off must equal the offset
// requested.
func FileDownload(c *Connection, name string, sink io.Writer, progress ProgressFunc) error {
	first, err := fsFileDownloadChunk(c, 0, name)
	if err != nil {
		return err
	}
	if first.Off != 0 {
		return &UnexpectedOffsetError{Want: 0, Got: first.Off}
	}
	if first.Len == nil {
		return &MissingSizeError{}
	}
	total := *first.Len

	if _, err := sink.Write(first.Data); err != nil {
		return err
	}
	offset := uint64(len(first.Data))
	if err := reportProgress(progress, offset, total); err != nil {
		return err
	}

	for offset < total {
		resp, err := fsFileDownloadChunk(c, offset, name)
		if err != nil {
			return err
		}
		if resp.Off != offset {
			return &UnexpectedOffsetError{Want: offset, Got: resp.Off}
		}
		if _, err := sink.Write(resp.Data); err != nil {
			return err
		}
		offset += uint64(len(resp.Data))
		if err := reportProgress(progress, offset, total); err != nil {
			return err
		}
	}

	if offset != total {
		return &SizeMismatchError{Want: total, Got: offset}
	}
	return nil
}

// FileUpload writes all of data to the named file on the device, computing
// the chunk size for the connection's current SMP MTU and sending the
// total length only on the first chunk.
func FileUpload(c *Connection, name string, data []byte, progress ProgressFunc) error {
	chunkSize, err := fileUploadMaxChunkSize(c.frameSize(), name)
	if err != nil {
		return err
	}

	total := uint64(len(data))
	var offset uint64
	first := true
	for offset < total || (total == 0 && first) {
		end := offset + uint64(chunkSize)
		if end > total {
			end = total
		}
		req := FileUploadRequest{
			Off: offset,
			Data: data[offset:end],
			Name: name,
		}
		if first {
			l := total
			req.Len = &l
		}
		resp, err := fsFileUploadChunk(c, req)
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
