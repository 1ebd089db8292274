package httpchunk

import (
	"bytes"
	"testing"
)

func TestBuildChunkPostHeaderBitExact(t *testing.T) {
	var buf bytes.Buffer
	err := BuildChunkPostHeader(&buf, "DEMOSERIAL", "00112233445566778899aabbccddeeff", "chunks.memfault.com", 123)
	if err != nil {
		t.Fatalf("BuildChunkPostHeader: %v", err)
	}
	want := "POST /api/v0/chunks/DEMOSERIAL HTTP/1.1\r\n" +
		"Host:chunks.memfault.com\r\n" +
		"User-Agent:MemfaultSDK/0.1.0\r\n" +
		"Memfault-Project-Key:00112233445566778899aabbccddeeff\r\n" +
		"Content-Type:application/octet-stream\r\n" +
		"Content-Length:123\r\n" +
		"\r\n"
	if buf.String() != want {
		t.Errorf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
}
