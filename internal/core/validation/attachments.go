package validation

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// Attachment limits.
const (
	MaxAttachments    = domain.MaxDocuments
	MaxAttachmentSize = 10 << 20
	PDFContentType    = "application/pdf"
)

// Rejection is one offending file of a rejected batch.
type Rejection struct {
	Name   string
	Reason string
}

// BatchError rejects an entire batch of attachments.
type BatchError struct {
	// CountExceeded is set when the batch would push the total over MaxAttachments.
	CountExceeded bool
	Staged        int
	Offered       int
	Rejected      []Rejection
}

func (e *BatchError) Error() string {
	if e.CountExceeded {
		return fmt.Sprintf("you can attach at most %d files (%d already attached, %d selected)",
			MaxAttachments, e.Staged, e.Offered)
	}
	items := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		items = append(items, r.Name+" ("+r.Reason+")")
	}
	return "no files were added; rejected: " + strings.Join(items, ", ")
}

func (e *BatchError) Unwrap() error {
	if e.CountExceeded {
		return domain.ErrTooManyDocuments
	}
	return nil
}

// AttachmentSet stages documents for a request. Batches are admitted whole
// or not at all.
type AttachmentSet struct {
	items []ports.Upload
}

// Add admits batch when every file is a PDF of at most MaxAttachmentSize and
// the total stays within MaxAttachments. Otherwise nothing is added.
func (s *AttachmentSet) Add(batch ...ports.Upload) error {
	if len(s.items)+len(batch) > MaxAttachments {
		return &BatchError{CountExceeded: true, Staged: len(s.items), Offered: len(batch)}
	}
	if rejected := CheckFiles(batch); len(rejected) > 0 {
		return &BatchError{Rejected: rejected}
	}
	s.items = append(s.items, batch...)
	return nil
}

// CheckFiles lists every file of batch that is not an acceptable document.
func CheckFiles(batch []ports.Upload) []Rejection {
	var rejected []Rejection
	for _, f := range batch {
		switch {
		case f.ContentType != PDFContentType:
			rejected = append(rejected, Rejection{Name: f.Name, Reason: "not a PDF"})
		case f.Size > MaxAttachmentSize:
			rejected = append(rejected, Rejection{Name: f.Name, Reason: "larger than 10 MB"})
		}
	}
	return rejected
}

// Len returns the number of staged attachments.
func (s *AttachmentSet) Len() int { return len(s.items) }

// Items returns a copy of the staged attachments.
func (s *AttachmentSet) Items() []ports.Upload {
	out := make([]ports.Upload, len(s.items))
	copy(out, s.items)
	return out
}

// OpenFile describes a file on disk as an upload, sniffing its content type.
func OpenFile(path string) (ports.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.Upload{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ports.Upload{}, err
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ports.Upload{}, err
	}

	return ports.Upload{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: strings.SplitN(http.DetectContentType(head[:n]), ";", 2)[0],
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
