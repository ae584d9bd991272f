// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - resampler: sample-rate conversion between a TTS engine's native
//     rate and a phase's target rate
package audio
