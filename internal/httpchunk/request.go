// Package httpchunk is the thin HTTP boundary the packetizer hands
// completed chunk payloads off to: a request builder that emits the
// exact Memfault chunks-ingestion header sequence, and a streaming
// response parser that only cares about the status line and
// Content-Length.
package httpchunk

import (
	"fmt"
	"io"

	"github.com/memfault/diagsdk/internal/constants"
)

// BuildChunkPostHeader writes the POST request line and headers for a
// chunk upload to w, in the exact order and format the server expects.
// The caller is responsible for writing exactly contentLength bytes of
// body after this call returns.
func BuildChunkPostHeader(w io.Writer, deviceSerial, projectKey, host string, contentLength int) error {
	_, err := fmt.Fprintf(w,
		"POST /api/v0/chunks/%s HTTP/1.1\r\n"+
			"Host:%s\r\n"+
			"User-Agent:MemfaultSDK/%s\r\n"+
			"Memfault-Project-Key:%s\r\n"+
			"Content-Type:application/octet-stream\r\n"+
			"Content-Length:%d\r\n"+
			"\r\n",
		deviceSerial, host, constants.SDKVersion, projectKey, contentLength)
	return err
}
