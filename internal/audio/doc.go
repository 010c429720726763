// Package audio provides WAV decoding and encoding, fixed-duration slicing,
// signal level measurement and ffmpeg-based format conversion.
package audio
