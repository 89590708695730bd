package announcer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/announcer/internal/colorlookup"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/venue"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeSpeaker struct {
	mu     sync.Mutex
	err    error
	spoken []speech.Utterance
	notify chan speech.Utterance
}

func (s *fakeSpeaker) Speak(_ context.Context, u speech.Utterance) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()
	if s.notify != nil {
		s.notify <- u
	}
	return s.err
}

func (s *fakeSpeaker) Spoken() []speech.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech.Utterance(nil), s.spoken...)
}

type countingLookup struct {
	res   colorlookup.Result
	err   error
	calls int
}

func (l *countingLookup) Lookup(context.Context, time.Time) (colorlookup.Result, error) {
	l.calls++
	return l.res, l.err
}

func day(hh, mm int) time.Time {
	return time.Date(2024, 3, 9, hh, mm, 0, 0, time.UTC)
}

func testConfig() venue.Config {
	cfg := venue.Default()
	cfg.TTS = venue.TTS{VoiceID: "en-US-AvaNeural", OutputFormat: venue.FormatWAV}
	cfg.Templates.FiftyFive = "Attention! The time is now {time}, {color} wristbands have five minutes left."
	cfg.Templates.Hour = "It's {time}."
	cfg.Schedule[venue.MustParseClock("10:55")] = venue.Kind{Tag: venue.FiftyFive}
	return cfg
}

func TestRender(t *testing.T) {
	t.Parallel()

	got := Render("Attention! The time is now {time}, {color} wristbands please leave the pool. {weather}",
		Fields{Time: venue.MustParseClock("11:00"), Color: "Red"})
	assert.Equal(t, "Attention! The time is now 11:00 AM, Red wristbands please leave the pool. {weather}", got)

	got = Render("{rules_content} / {ad_message}", Fields{RulesContent: "No running.", AdMessage: "Buy {time}"})
	assert.Equal(t, "No running. / Buy {time}", got)

	assert.True(t, NeedsColor("{color} wristbands"))
	assert.False(t, NeedsColor("It's {time}."))
}

func TestLoopFiresOnceWhenDue(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: day(10, 54)}
	speaker := &fakeSpeaker{}
	lookup := &countingLookup{res: colorlookup.Result{Color: "Red"}}
	loop := New(testConfig(), speaker, lookup,
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t)))

	loop.tick(context.Background())
	assert.Empty(t, speaker.Spoken())
	require.True(t, loop.hasNext)
	assert.Equal(t, day(10, 55), loop.next.At)

	clock.Set(day(10, 55))
	loop.tick(context.Background())
	spoken := speaker.Spoken()
	require.Len(t, spoken, 1)
	assert.Equal(t, "Attention! The time is now 10:55 AM, Red wristbands have five minutes left.", spoken[0].Text)
	assert.Equal(t, "en-US-AvaNeural", spoken[0].Voice)
	assert.Equal(t, venue.FormatWAV, spoken[0].Format)
	assert.Equal(t, 1, lookup.calls)

	clock.Set(day(10, 55).Add(500 * time.Millisecond))
	loop.tick(context.Background())
	assert.Len(t, speaker.Spoken(), 1)
	assert.Equal(t, day(10, 55).AddDate(0, 0, 1), loop.next.At)
}

func TestLoopSkipsLookupWithoutColorPlaceholder(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Schedule = venue.Schedule{venue.MustParseClock("11:00"): {Tag: venue.HourChange}}

	clock := &fakeClock{now: day(11, 0)}
	speaker := &fakeSpeaker{}
	lookup := &countingLookup{res: colorlookup.Result{Color: "Red"}}
	loop := New(cfg, speaker, lookup, WithClock(clock.Now))

	loop.tick(context.Background())
	require.Len(t, speaker.Spoken(), 1)
	assert.Equal(t, "It's 11:00 AM.", speaker.Spoken()[0].Text)
	assert.Zero(t, lookup.calls)
}

func TestLoopColorFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lookup   colorlookup.Lookup
		fallback string
		want     string
	}{
		{"LookupError", &countingLookup{err: colorlookup.ErrLookup}, "", "unknown"},
		{"NoColor", colorlookup.Static{}, "", "unknown"},
		{"NilLookup", nil, "", "unknown"},
		{"CustomFallback", &countingLookup{err: errors.New("timeout")}, "purple", "purple"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clock := &fakeClock{now: day(10, 55)}
			speaker := &fakeSpeaker{}
			loop := New(testConfig(), speaker, tc.lookup,
				WithClock(clock.Now),
				WithColorFallback(tc.fallback),
				WithLogger(zaptest.NewLogger(t)))

			loop.tick(context.Background())
			require.Len(t, speaker.Spoken(), 1)
			assert.Contains(t, speaker.Spoken()[0].Text, tc.want+" wristbands")
		})
	}
}

func TestLoopSkipsMissedAnnouncement(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Schedule[venue.MustParseClock("11:00")] = venue.Kind{Tag: venue.HourChange}

	clock := &fakeClock{now: day(10, 50)}
	speaker := &fakeSpeaker{}
	loop := New(cfg, speaker, nil, WithClock(clock.Now), WithMissedTolerance(time.Minute))

	loop.tick(context.Background())
	clock.Set(day(10, 57))
	loop.tick(context.Background())

	assert.Empty(t, speaker.Spoken())
	assert.Equal(t, day(11, 0), loop.next.At)

	clock.Set(day(11, 0).Add(30 * time.Second))
	loop.tick(context.Background())
	require.Len(t, speaker.Spoken(), 1)
	assert.Equal(t, "It's 11:00 AM.", speaker.Spoken()[0].Text)
}

func TestLoopContinuesAfterSpeakFailure(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: day(10, 55)}
	speaker := &fakeSpeaker{err: speech.ErrSynthesis}
	loop := New(testConfig(), speaker, nil, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))

	loop.tick(context.Background())
	assert.Len(t, speaker.Spoken(), 1)
	require.True(t, loop.hasNext)
	assert.Equal(t, day(10, 55).AddDate(0, 0, 1), loop.next.At)
}

func TestLoopEmptyScheduleStaysIdle(t *testing.T) {
	t.Parallel()

	cfg := venue.Default()
	cfg.Schedule[venue.MustParseClock("09:00")] = venue.CustomKind("missing")

	speaker := &fakeSpeaker{}
	loop := New(cfg, speaker, nil, WithClock(func() time.Time { return day(9, 0) }))

	loop.tick(context.Background())
	assert.False(t, loop.hasNext)
	assert.Empty(t, speaker.Spoken())
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: day(10, 55)}
	speaker := &fakeSpeaker{notify: make(chan speech.Utterance, 1)}
	loop := New(testConfig(), speaker, colorlookup.Static{Message: "Blue wristbands"},
		WithClock(clock.Now),
		WithPollInterval(5*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case u := <-speaker.notify:
		assert.Contains(t, u.Text, "Blue wristbands")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an announcement")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Len(t, speaker.Spoken(), 1)
}

func TestRunnerReloadsConfig(t *testing.T) {
	t.Parallel()

	loads := make(chan struct{}, 4)
	load := func() (venue.Config, error) {
		loads <- struct{}{}
		return venue.Default(), nil
	}
	factory := func(cfg venue.Config) (*Loop, error) {
		return New(cfg, &fakeSpeaker{}, nil, WithPollInterval(5*time.Millisecond)), nil
	}
	reload := make(chan struct{})
	runner := NewRunner(load, factory, reload, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	waitLoad := func() {
		t.Helper()
		select {
		case <-loads:
		case <-time.After(2 * time.Second):
			t.Fatal("expected config load")
		}
	}

	waitLoad()
	reload <- struct{}{}
	waitLoad()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

// blockingSpeaker holds every utterance until released or cancelled.
type blockingSpeaker struct {
	started chan struct{}
	release chan struct{}
	result  chan error
}

func newBlockingSpeaker() *blockingSpeaker {
	return &blockingSpeaker{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
		result:  make(chan error, 4),
	}
}

func (s *blockingSpeaker) Speak(ctx context.Context, _ speech.Utterance) error {
	s.started <- struct{}{}
	select {
	case <-s.release:
		s.result <- nil
		return nil
	case <-ctx.Done():
		s.result <- ctx.Err()
		return ctx.Err()
	}
}

func startRunnerWithSpeaker(t *testing.T, clock *fakeClock, speaker Speaker, reload chan struct{}) (chan struct{}, context.CancelFunc, chan error) {
	t.Helper()

	loads := make(chan struct{}, 4)
	load := func() (venue.Config, error) {
		loads <- struct{}{}
		return testConfig(), nil
	}
	factory := func(cfg venue.Config) (*Loop, error) {
		return New(cfg, speaker, colorlookup.Static{Message: "Red"},
			WithClock(clock.Now),
			WithPollInterval(5*time.Millisecond),
			WithLogger(zaptest.NewLogger(t))), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRunner(load, factory, reload, zaptest.NewLogger(t)).Run(ctx) }()
	return loads, cancel, done
}

func TestRunnerReloadWaitsForAnnouncementInProgress(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: day(10, 55)}
	speaker := newBlockingSpeaker()
	reload := make(chan struct{})
	loads, cancel, done := startRunnerWithSpeaker(t, clock, speaker, reload)
	defer cancel()

	<-loads
	select {
	case <-speaker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the 10:55 announcement to start")
	}

	reload <- struct{}{}
	select {
	case err := <-speaker.result:
		t.Fatalf("announcement ended early after reload: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	clock.Set(day(10, 56))
	close(speaker.release)
	select {
	case err := <-speaker.result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the announcement to finish")
	}

	select {
	case <-loads:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the config to be reloaded after the announcement")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerShutdownCancelsAnnouncementInProgress(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: day(10, 55)}
	speaker := newBlockingSpeaker()
	_, cancel, done := startRunnerWithSpeaker(t, clock, speaker, make(chan struct{}))

	select {
	case <-speaker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the 10:55 announcement to start")
	}

	cancel()
	select {
	case err := <-speaker.result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("expected shutdown to cancel the announcement")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerFailsOnUnreadableConfig(t *testing.T) {
	t.Parallel()

	boom := errors.New("permission denied")
	runner := NewRunner(
		func() (venue.Config, error) { return venue.Config{}, boom },
		func(venue.Config) (*Loop, error) { t.Fatal("factory must not be called"); return nil, nil },
		nil, zaptest.NewLogger(t))

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
