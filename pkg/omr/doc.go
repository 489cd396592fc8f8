// Package omr implements the conversion pipeline that turns a scanned score
// into MusicXML by way of an external optical music recognition engine.
//
// The pipeline has four stages, each usable on its own:
//
//   - Invoker runs the engine as a bounded subprocess.
//   - Locate finds the result artifact the engine left on disk.
//   - ExtractXML pulls the MusicXML document out of a compressed .mxl bundle.
//   - Assembler composes the three into a single Outcome.
//
// Failures never escape as errors. Every stage that cannot produce MusicXML
// contributes facts to a Diagnostic, which the Assembler returns inside a
// failed Outcome so callers always have either a document or an explanation.
package omr
