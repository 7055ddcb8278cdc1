// Package mapper scores how well a document evidences a control.
//
// Confidence is the weighted rule scores summed and averaged over the rules
// that scored above zero, clamped to [0,1]. Controls without rules fall back
// to the overlap between the document's words and the control's own text.
// A mapping is only retained when confidence exceeds MinConfidence.
package mapper
