// Package upload implements a streaming multipart/form-data decoder for file
// uploads.
//
// The decoder never buffers a whole file: it scans the request body in fixed
// chunks for the part boundary and flushes everything before a potential
// boundary prefix straight to the destination store. Memory use is bounded by
// the chunk size regardless of upload size, and the body read is bounded by
// the declared Content-Length.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

var (
	// ErrNotMultipart indicates the request Content-Type is not
	// multipart/form-data.
	ErrNotMultipart = errors.New("request is not multipart/form-data")

	// ErrMissingBoundary indicates the multipart Content-Type carries no
	// boundary parameter.
	ErrMissingBoundary = errors.New("multipart content type has no boundary")

	// ErrLengthRequired indicates the request declared no positive
	// Content-Length. Unbounded bodies are refused.
	ErrLengthRequired = errors.New("content length is required")

	// ErrMalformed indicates the body does not follow multipart framing.
	ErrMalformed = errors.New("malformed multipart body")
)

const (
	// chunkSize is how much is read from the body at a time.
	chunkSize = 64 * 1024

	// maxHeaderLine caps a single part header line.
	maxHeaderLine = 16 * 1024
)

// Sink is where decoded files land. blob.BlobStore satisfies it.
//
// Create returns a writer for the given sanitized name plus the name actually
// used, which may carry a dedup suffix when the requested name was taken.
type Sink interface {
	Create(ctx context.Context, name string) (io.WriteCloser, string, error)
}

// SavedFile describes one file written to the sink.
type SavedFile struct {
	// OriginalName is the filename the client declared, unsanitized.
	OriginalName string

	// StoredName is the name the sink actually stored the file under.
	StoredName string

	// Size is the number of body bytes written.
	Size int64
}

// Decoder streams one multipart/form-data body into a Sink.
type Decoder struct {
	r        io.Reader
	boundary string

	// marker is "\r\n--boundary" - a part body ends where it appears.
	marker []byte

	buf     []byte
	scratch []byte
	eof     bool
}

// NewDecoder validates the request envelope and prepares a decoder.
//
// contentType is the raw Content-Type header value; contentLength the declared
// body length. Both are checked before any body byte is read: a non-multipart
// type returns ErrNotMultipart, a multipart type without a boundary returns
// ErrMissingBoundary, and a missing or non-positive length returns
// ErrLengthRequired. The body read is capped at contentLength.
func NewDecoder(body io.Reader, contentType string, contentLength int64) (*Decoder, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return nil, ErrNotMultipart
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, ErrMissingBoundary
	}

	if contentLength <= 0 {
		return nil, ErrLengthRequired
	}

	return &Decoder{
		r:        io.LimitReader(body, contentLength),
		boundary: boundary,
		marker:   []byte("\r\n--" + boundary),
		scratch:  make([]byte, chunkSize),
	}, nil
}

// Decode consumes the body, writing every file part to the sink. Parts whose
// filename sanitizes to nothing (including non-file form fields) are skipped.
//
// A body truncated mid-part yields the bytes received so far and no error;
// structural violations before that point return ErrMalformed.
func (d *Decoder) Decode(ctx context.Context, sink Sink) ([]SavedFile, error) {
	if err := d.discardPreamble(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no boundary found", ErrMalformed)
		}
		return nil, err
	}

	var saved []SavedFile
	for {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		filename, err := d.readPartHeaders()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return saved, nil
			}
			return saved, err
		}

		name := SanitizeFilename(filename)
		if name == "" {
			last, err := d.discardBody()
			if err != nil {
				return saved, err
			}
			if last {
				return saved, nil
			}
			continue
		}

		w, stored, err := sink.Create(ctx, name)
		if err != nil {
			return saved, fmt.Errorf("failed to create %s: %w", name, err)
		}

		n, last, err := d.copyBody(w)
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return saved, err
		}

		saved = append(saved, SavedFile{
			OriginalName: filename,
			StoredName:   stored,
			Size:         n,
		})

		if last {
			return saved, nil
		}
	}
}

// fill reads from the body until the window holds at least want bytes or the
// body is exhausted.
func (d *Decoder) fill(want int) error {
	for len(d.buf) < want && !d.eof {
		n, err := d.r.Read(d.scratch)
		if n > 0 {
			d.buf = append(d.buf, d.scratch[:n]...)
		}
		if err == io.EOF {
			d.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
	}
	return nil
}

// readLine consumes one CRLF-terminated line from the window, without the
// terminator. Lines longer than maxHeaderLine are rejected.
func (d *Decoder) readLine() ([]byte, error) {
	for {
		if i := bytes.Index(d.buf, []byte("\r\n")); i >= 0 {
			line := d.buf[:i]
			d.buf = d.buf[i+2:]
			return line, nil
		}
		if len(d.buf) > maxHeaderLine {
			return nil, fmt.Errorf("%w: header line too long", ErrMalformed)
		}
		if d.eof {
			return nil, io.EOF
		}
		if err := d.fill(len(d.buf) + chunkSize); err != nil {
			return nil, err
		}
	}
}

// discardPreamble skips everything up to and including the opening boundary
// line.
func (d *Decoder) discardPreamble() error {
	delim := "--" + d.boundary
	for {
		line, err := d.readLine()
		if err != nil {
			return err
		}
		switch string(bytes.TrimRight(line, " \t")) {
		case delim:
			return nil
		case delim + "--":
			// Closed before any part.
			return io.EOF
		}
	}
}

// readPartHeaders consumes a part's header block and returns the declared
// filename ("" for non-file fields). io.EOF means the closing boundary was
// the previous delimiter and no part follows.
func (d *Decoder) readPartHeaders() (string, error) {
	var filename string
	for {
		line, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if len(line) == 0 {
			return filename, nil
		}

		name, value, found := strings.Cut(string(line), ":")
		if !found {
			return "", fmt.Errorf("%w: invalid part header", ErrMalformed)
		}
		if !strings.EqualFold(strings.TrimSpace(name), "Content-Disposition") {
			continue
		}

		_, params, err := mime.ParseMediaType(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("%w: invalid content disposition", ErrMalformed)
		}
		filename = params["filename"]
	}
}

// copyBody streams the current part body to w, stopping at the next
// boundary. It reports whether that boundary was the closing one. A body cut
// off mid-part flushes what arrived and reports last=true.
func (d *Decoder) copyBody(w io.Writer) (int64, bool, error) {
	var written int64

	// Bytes at the window tail that could still be the start of a marker
	// (or its trailing "--"/CRLF) must not be flushed yet.
	keep := len(d.marker) + 2

	for {
		if i := bytes.Index(d.buf, d.marker); i >= 0 {
			// Make sure the two bytes after the marker are present so the
			// closing "--" can be distinguished from a following part.
			if len(d.buf) < i+len(d.marker)+2 && !d.eof {
				if err := d.fill(i + len(d.marker) + 2); err != nil {
					return written, false, err
				}
			}

			n, err := w.Write(d.buf[:i])
			written += int64(n)
			if err != nil {
				return written, false, fmt.Errorf("failed to write upload: %w", err)
			}
			d.buf = d.buf[i+len(d.marker):]

			last, err := d.consumeDelimiterTail()
			return written, last, err
		}

		if d.eof {
			// Truncated part: flush the remainder as-is.
			n, err := w.Write(d.buf)
			written += int64(n)
			d.buf = nil
			if err != nil {
				return written, true, fmt.Errorf("failed to write upload: %w", err)
			}
			return written, true, nil
		}

		if len(d.buf) > keep {
			flush := len(d.buf) - keep
			n, err := w.Write(d.buf[:flush])
			written += int64(n)
			if err != nil {
				return written, false, fmt.Errorf("failed to write upload: %w", err)
			}
			d.buf = d.buf[flush:]
		}

		if err := d.fill(len(d.buf) + chunkSize); err != nil {
			return written, false, err
		}
	}
}

// discardBody is copyBody into the void, for parts being skipped.
func (d *Decoder) discardBody() (bool, error) {
	_, last, err := d.copyBody(io.Discard)
	return last, err
}

// consumeDelimiterTail eats what follows a boundary delimiter: "--" closes
// the stream, CRLF introduces the next part.
func (d *Decoder) consumeDelimiterTail() (bool, error) {
	if err := d.fill(2); err != nil {
		return false, err
	}
	if bytes.HasPrefix(d.buf, []byte("--")) {
		return true, nil
	}
	if bytes.HasPrefix(d.buf, []byte("\r\n")) {
		d.buf = d.buf[2:]
		return false, nil
	}
	if d.eof && len(d.buf) == 0 {
		// Body ends exactly at the delimiter.
		return true, nil
	}
	return false, fmt.Errorf("%w: garbage after boundary", ErrMalformed)
}
