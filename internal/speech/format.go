package speech

import "github.com/eugenenazirov/announcer/internal/venue"

const (
	// SampleRate is the rate of the audio requested from the provider and
	// of the in-process output device.
	SampleRate = 24000
	// ChannelCount is the channel count of the output device. Mono audio
	// is up-mixed before playback.
	ChannelCount = 2

	// DefaultVoice is used when an utterance names no voice.
	DefaultVoice = "en-US-AvaNeural"
)

var azureFormats = map[string]string{
	venue.FormatMP3: "audio-24khz-48kbitrate-mono-mp3",
	venue.FormatWAV: "riff-24khz-16bit-mono-pcm",
}

// Utterance is one piece of text to speak.
type Utterance struct {
	Text   string
	Voice  string
	Format string // venue.FormatMP3 or venue.FormatWAV
}

func (u Utterance) normalized() Utterance {
	u.Format, _ = venue.NormalizeOutputFormat(u.Format)
	if u.Voice == "" {
		u.Voice = DefaultVoice
	}
	return u
}

// AzureOutputFormat maps a file format to the provider's output format name.
func AzureOutputFormat(format string) string {
	f, _ := venue.NormalizeOutputFormat(format)
	return azureFormats[f]
}
