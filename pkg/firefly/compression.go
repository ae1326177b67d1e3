package firefly

import (
	"bufio"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const acceptEncoding = "gzip, deflate, br"

// decompressTransport advertises gzip, deflate and brotli and decodes the
// response body according to its Content-Encoding.
type decompressTransport struct {
	next http.RoundTripper
}

func (t *decompressTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	var newReader func(io.Reader) (io.Reader, error)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		newReader = func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }
	case "deflate":
		newReader = func(r io.Reader) (io.Reader, error) { return zlib.NewReader(r) }
	case "br":
		newReader = func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil }
	default:
		return resp, nil
	}

	resp.Body = &decodingBody{body: resp.Body, newReader: newReader}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true

	return resp, nil
}

// decodingBody opens the decoder on first read so that empty encoded bodies
// (204, HEAD) read as empty instead of failing on a missing header.
type decodingBody struct {
	body      io.ReadCloser
	newReader func(io.Reader) (io.Reader, error)
	r         io.Reader
	err       error
}

func (b *decodingBody) Read(p []byte) (int, error) {
	if b.r == nil && b.err == nil {
		br := bufio.NewReader(b.body)
		if _, err := br.Peek(1); err != nil {
			b.err = err
		} else {
			b.r, b.err = b.newReader(br)
		}
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.r.Read(p)
}

func (b *decodingBody) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		c.Close()
	}
	return b.body.Close()
}
