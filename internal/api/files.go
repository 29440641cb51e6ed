package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/handiism/cog-bulk/internal/model"
)

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header), -1 if unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Files serves the file collection plus content downloads.
type Files struct {
	*Resource
}

func (c *Client) Files() *Files {
	return &Files{c.Resource(model.KindFile)}
}

// Download streams the contents of file id to destPath, creating parent
// directories as needed. The content is written to a temporary file beside
// destPath and renamed into place, so destPath never holds a partial file.
//
// onProgress may be nil. It returns the number of bytes written.
func (f *Files) Download(ctx context.Context, id model.ID, destPath string, onProgress func(written, total int64)) (int64, error) {
	resp, err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", f.kind.Collection(), id, epContents))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".part-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	pw := &ProgressWriter{Writer: tmp, Total: resp.ContentLength, OnUpdate: onProgress}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		tmp.Close()
		return pw.Written, fmt.Errorf("download %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return pw.Written, err
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return pw.Written, err
	}
	return pw.Written, nil
}
