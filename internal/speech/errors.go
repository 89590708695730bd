package speech

import "errors"

var (
	// ErrSynthesis wraps failures of the text-to-speech provider.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrPlayback wraps failures of the audio output.
	ErrPlayback = errors.New("audio playback failed")
	// ErrUnavailable is returned when no text-to-speech provider is configured.
	ErrUnavailable = errors.New("speech output is not configured")
	// ErrEmptyAudio is returned when synthesis produced no audio.
	ErrEmptyAudio = errors.New("synthesized audio is empty")
)
