// Package analysis maps documents onto compliance frameworks.
//
// Service.MapDocumentToFrameworks runs the extraction rules of every control
// in the selected frameworks, keeps the mappings above the confidence
// threshold, and derives coverage, gaps and recommendations from them. Each
// report is recorded as a document_mapped evidence record carrying the
// SHA-256 of the report and the W3C traceparent of the mapping span.
package analysis
