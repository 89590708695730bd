package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Synthesizer converts text to encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, u Utterance) ([]byte, error)
}

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithEndpoint overrides the regional synthesis URL.
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) {
		c.endpoint = url
	}
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) {
		c.httpClient.Timeout = d
	}
}

// WithAzureLogger sets the client logger.
func WithAzureLogger(logger *zap.Logger) AzureOption {
	return func(c *AzureClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// AzureClient handles text-to-speech synthesis via Azure Cognitive Services.
type AzureClient struct {
	subscriptionKey string
	endpoint        string
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewAzureClient creates an Azure TTS client with the given credentials.
func NewAzureClient(key, region string, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		endpoint:        fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize returns the audio for u encoded in u.Format.
func (c *AzureClient) Synthesize(ctx context.Context, u Utterance) ([]byte, error) {
	u = u.normalized()

	ssml, err := buildSSML(u.Voice, u.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: build ssml: %w", ErrSynthesis, err)
	}
	c.logger.Debug("azure tts request",
		zap.Int("chars", len(u.Text)),
		zap.String("voice", u.Voice),
		zap.String("format", u.Format))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrSynthesis, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", AzureOutputFormat(u.Format))
	req.Header.Set("User-Agent", "venue-announcer/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %w", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: azure status %d: %s", ErrSynthesis, resp.StatusCode, bytes.TrimSpace(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %w", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, ErrEmptyAudio)
	}

	c.logger.Debug("azure tts response", zap.Int("bytes", len(audio)))
	return audio, nil
}

// buildSSML wraps text in a speak element. Both the voice name and the text
// are escaped, since templates are free text entered in the web form.
func buildSSML(voice, text string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='`)
	if err := xml.EscapeText(&buf, []byte(voice)); err != nil {
		return nil, err
	}
	buf.WriteString(`'>`)
	if err := xml.EscapeText(&buf, []byte(text)); err != nil {
		return nil, err
	}
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes(), nil
}
