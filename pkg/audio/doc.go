// Package audio provides PCM16 codec utilities, sample-rate conversion,
// audio capture/playback device abstractions, and a playback scheduler for
// realtime voice sessions.
//
// All providers speak 16-bit little-endian PCM. Capture is 16kHz mono by
// convention, playback 24kHz mono; Resample bridges device rates that differ
// from the provider-declared ones.
//
// Malformed audio payloads degrade rather than fail: an audio glitch is
// preferable to aborting a live call.
package audio
