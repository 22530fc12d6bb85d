// Package printing provides the infrastructure side of print dispatch.
//
// It contains the run-scoped scratch file manager and the adapters to the
// external collaborators: CUPS (lp, lpstat) for device enumeration and job
// spooling, MuPDF through go-fitz for page rasterization, and a headless
// LibreOffice for office documents. External programs are executed through
// CommandRunner so the adapters can be exercised without them installed.
package printing
