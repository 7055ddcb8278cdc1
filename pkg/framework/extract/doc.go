// Package extract scores extraction rules against document text.
//
// Each rule yields a base score in [0,1]:
//
//   - keyword: fraction of the |-separated alternatives found in the text
//   - pattern: case-insensitive regular expression, min(matches/5, 1)
//   - section_header: 1 if a markdown header line contains the pattern
//   - semantic: fraction of the pattern's terms present as words in the text
//
// The base score is halved when the rule lists required context and none of
// it is present, and scaled to 30% when any exclusion is present.
//
// A malformed pattern never fails the caller: the rule scores 0 and the
// compile error is carried in Result.Err.
package extract
