package executor

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// maxResponseBytes caps a buffered provider response. Larger bodies have to
// go through Stream.
var maxResponseBytes int64 = 64 << 20

// ErrResponseTooLarge is returned by Do when the body exceeds the buffer cap.
var ErrResponseTooLarge = errors.New("response body exceeds buffer limit")

var (
	gzipPool   = sync.Pool{New: func() any { return new(gzip.Reader) }}
	brotliPool = sync.Pool{New: func() any { return new(brotli.Reader) }}
	zstdPool   = sync.Pool{New: func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	}}
)

// decodingBody reads through one decompression layer. release returns the
// decoder to its pool; next is the layer (or raw body) underneath.
type decodingBody struct {
	io.Reader
	release func() error
	next    io.ReadCloser
}

func (d *decodingBody) Close() error {
	var err error
	if d.release != nil {
		err = d.release()
	}
	if nextErr := d.next.Close(); nextErr != nil && err == nil {
		err = nextErr
	}
	return err
}

// wrapDecoder adds one decoding layer for encoding over body. Unknown
// encodings return body unchanged.
func wrapDecoder(body io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		gr := gzipPool.Get().(*gzip.Reader)
		if err := gr.Reset(body); err != nil {
			gzipPool.Put(gr)
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &decodingBody{Reader: gr, next: body, release: func() error {
			cerr := gr.Close()
			gzipPool.Put(gr)
			return cerr
		}}, nil
	case "deflate":
		fr := flate.NewReader(body)
		return &decodingBody{Reader: fr, next: body, release: fr.Close}, nil
	case "br":
		br := brotliPool.Get().(*brotli.Reader)
		if err := br.Reset(body); err != nil {
			brotliPool.Put(br)
			return nil, fmt.Errorf("brotli: %w", err)
		}
		return &decodingBody{Reader: br, next: body, release: func() error {
			brotliPool.Put(br)
			return nil
		}}, nil
	case "zstd":
		zr := zstdPool.Get().(*zstd.Decoder)
		if err := zr.Reset(body); err != nil {
			zstdPool.Put(zr)
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &decodingBody{Reader: zr, next: body, release: func() error {
			_ = zr.Reset(nil)
			zstdPool.Put(zr)
			return nil
		}}, nil
	}
	return body, nil
}

// decodeResponseBody undoes Content-Encoding. Codings are listed in the order
// they were applied, so they are removed last to first. Unknown codings are
// passed through.
func decodeResponseBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if body == nil {
		return nil, fmt.Errorf("response body is nil")
	}
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		if coding == "" || coding == "identity" {
			continue
		}
		wrapped, err := wrapDecoder(body, coding)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("decode %s response: %w", coding, err)
		}
		body = wrapped
	}
	return body, nil
}

// readResponseBody drains resp after decoding it and drops the
// Content-Encoding header it consumed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > maxResponseBytes {
		return nil, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, maxResponseBytes)
	}
	resp.Header.Del("Content-Encoding")
	return data, nil
}
