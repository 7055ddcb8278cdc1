// Package library holds the clause library: policy templates, the clauses
// they draw on, and the approval workflow registered for each template.
//
// A *Library is an immutable snapshot. Readers obtain the current snapshot
// from a Holder and keep using it for the whole request; reloads and clause
// edits publish a new snapshot instead of mutating the old one.
//
// Library files are YAML documents with three optional top-level lists:
//
//	templates:
//	  - id: ai-acceptable-use
//	    title: "{{organizationName}} AI Acceptable Use Policy"
//	    available_clauses: [purpose, student-privacy]
//	    content: |
//	      # {{organizationName}} AI Acceptable Use Policy
//	      {{clauses}}
//	clauses:
//	  - id: student-privacy
//	    title: Student Privacy
//	    priority: 20
//	    rules:
//	      - {field: studentAgeMin, operator: less_than, value: 13}
//	    body: ...
//	workflows:
//	  - template_id: ai-acceptable-use
//	    mode: sequential
//	    steps:
//	      - {role: technology_director, required: true}
//
// A directory is loaded by merging every .yaml/.yml file beneath it.
package library
