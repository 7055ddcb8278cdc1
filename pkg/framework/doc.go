// Package framework defines the data model of the control mapper: controls
// from external compliance catalogs, the extraction rules that score how well
// a document evidences a control, and the mapping report produced for a
// document.
//
// The algorithms live in subpackages:
//
//   - catalog: loads control catalogs from YAML (with builtin catalogs embedded)
//   - extract: scores a single extraction rule against document text
//   - mapper: turns rule scores into a ControlMapping with evidence and gaps
//   - coverage: per-framework coverage and the prioritized gap list
//   - recommend: recommendations derived from gaps
//   - analysis: the service that runs the full pipeline for one document
package framework
