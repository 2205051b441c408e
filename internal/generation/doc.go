// Package generation defines the boundary between the curriculum engine and
// external AI/LLM services. The engine calls a StructureGenerator to draft an
// outline for each topic and a ContentGenerator to expand the outline into a
// note. Router dispatches each call to the provider named in the phase's
// PhaseConfig, so a run can draft outlines with one model and write notes with
// another.
package generation
