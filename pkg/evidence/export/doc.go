// Package export writes evidence records as JSON or CSV for auditors.
package export
