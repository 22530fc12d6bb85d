package printing

import (
	"fmt"
	"io"
	"sync"
)

// ConversionJob is one unit handed to the print device. The job owns its
// payload; Close releases it and is safe to call more than once.
type ConversionJob struct {
	Payload     io.ReadCloser
	Format      SubmissionFormat
	Orientation Orientation
	Copies      int
	// PageIndex is the zero-based page for paginated sources, 0 otherwise
	PageIndex int
	// PageCount is the total number of pages the source produced jobs for
	PageCount int

	closeOnce sync.Once
	closeErr  error
}

// Label identifies the job in logs and failure records
func (j *ConversionJob) Label() string {
	if j.PageCount > 1 {
		return fmt.Sprintf("page %d/%d", j.PageIndex+1, j.PageCount)
	}
	return fmt.Sprintf("page %d", j.PageIndex+1)
}

// Close releases the payload
func (j *ConversionJob) Close() error {
	j.closeOnce.Do(func() {
		if j.Payload != nil {
			j.closeErr = j.Payload.Close()
		}
	})
	return j.closeErr
}
