// Package printing contains the print dispatch domain: input formats, print
// requests, conversion jobs, the pipeline run state machine and the ports to
// the external print subsystem, page rasterizer and office automation.
package printing
