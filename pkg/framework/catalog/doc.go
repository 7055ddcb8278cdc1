// Package catalog loads compliance control catalogs.
//
// A catalog file is YAML with a top-level frameworks list:
//
//	frameworks:
//	  - id: nist-ai-rmf
//	    name: NIST AI Risk Management Framework
//	    version: "1.0"
//	    controls:
//	      - id: GOVERN-1.1
//	        title: Legal and regulatory requirements are understood and managed
//	        requirements:
//	          - Document applicable legal and regulatory requirements for AI use
//	        rules:
//	          - id: govern-1.1-laws
//	            type: keyword
//	            pattern: "regulation|legal|compliance"
//	            weight: 0.9
//
// Builtin catalogs are compiled into the binary and returned by Builtin.
// Catalogs loaded from disk with the same framework ID replace builtin ones
// when combined with Merge. A Catalog is immutable once built.
package catalog
