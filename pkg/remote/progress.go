package remote

import (
	"io"
)

// NewProgressReader wraps `r` so that `progress` is called as the `size`
// bytes of a transfer are read. If `r` is seekable, so is the returned reader,
// which lets SDKs rewind the body when they retry a request.
func NewProgressReader(r io.Reader, size int64, progress ProgressFunc) io.Reader {
	pr := &progressReader{r: r, size: size, progress: progress}
	if seeker, ok := r.(io.ReadSeeker); ok {
		return &progressReadSeeker{progressReader: pr, seeker: seeker}
	}
	return pr
}

type progressReader struct {
	r        io.Reader
	size     int64
	read     int64
	progress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.report()
	}
	return n, err
}

func (pr *progressReader) report() {
	if pr.progress == nil || pr.size <= 0 {
		return
	}

	percent := float64(pr.read) * 100 / float64(pr.size)
	if percent > 100 {
		percent = 100
	}
	pr.progress(percent)
}

type progressReadSeeker struct {
	*progressReader
	seeker io.Seeker
}

func (prs *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := prs.seeker.Seek(offset, whence)
	if err == nil {
		prs.read = pos
	}
	return pos, err
}
