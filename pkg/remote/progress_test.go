package remote

import (
	"bytes"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressReader(t *testing.T) {
	var reports []float64
	r := NewProgressReader(&oneByteReader{strings.NewReader("abcd")}, 4, func(percent float64) {
		reports = append(reports, percent)
	})

	_, isSeeker := r.(io.Seeker)
	assert.False(t, isSeeker)

	contents, err := ioutil.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "abcd", string(contents))
	assert.Equal(t, []float64{25, 50, 75, 100}, reports)
}

func TestProgressReadSeeker(t *testing.T) {
	var last float64
	r := NewProgressReader(bytes.NewReader([]byte("abcd")), 4, func(percent float64) {
		last = percent
	})

	seeker, ok := r.(io.ReadSeeker)
	assert.True(t, ok)

	_, err := ioutil.ReadAll(seeker)
	assert.NoError(t, err)
	assert.Equal(t, float64(100), last)

	_, err = seeker.Seek(0, io.SeekStart)
	assert.NoError(t, err)

	buf := make([]byte, 2)
	_, err = seeker.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, float64(50), last)
}

func TestProgressReaderNoCallback(t *testing.T) {
	contents, err := ioutil.ReadAll(NewProgressReader(strings.NewReader("abc"), 0, nil))
	assert.NoError(t, err)
	assert.Equal(t, "abc", string(contents))
}

type oneByteReader struct {
	r io.Reader
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return r.r.Read(p[:1])
}
