// Package speech turns announcement text into sound: a text-to-speech client,
// a two-tier audio cache, audio players, and the Speaker that runs one
// utterance at a time through synthesize, temp file, play and cleanup.
package speech
