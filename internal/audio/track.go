package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// SampleRate is the rate every track is decoded at.
const SampleRate = 44100

// ErrUnsupportedFormat is returned by Decode for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Stream is a decoded, seekable PCM stream.
type Stream interface {
	io.ReadSeeker
	Length() int64
}

// Decode picks a decoder from the extension of name.
func Decode(name string, data []byte) (Stream, error) {
	r := bytes.NewReader(data)
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".mp3":
		s, err := mp3.DecodeWithSampleRate(SampleRate, r)
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
		return s, nil
	case ".ogg":
		s, err := vorbis.DecodeWithSampleRate(SampleRate, r)
		if err != nil {
			return nil, fmt.Errorf("decode ogg: %w", err)
		}
		return s, nil
	case ".wav":
		s, err := wav.DecodeWithSampleRate(SampleRate, r)
		if err != nil {
			return nil, fmt.Errorf("decode wav: %w", err)
		}
		return s, nil
	case ".ym":
		p, err := NewYMPlayer(data, SampleRate, true)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Track is a looping background track with play/pause control.
type Track struct {
	player *audio.Player
	stream Stream
}

// NewTrack wraps stream in a player on ctx. The track starts paused.
func NewTrack(ctx *audio.Context, stream Stream, volume float64) (*Track, error) {
	var src io.Reader = stream
	if _, ym := stream.(*YMPlayer); !ym {
		src = audio.NewInfiniteLoop(stream, stream.Length())
	}
	player, err := ctx.NewPlayer(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	player.SetVolume(volume)
	return &Track{player: player, stream: stream}, nil
}

// Toggle flips between playing and paused and reports the new state.
func (t *Track) Toggle() bool {
	if t.player.IsPlaying() {
		t.player.Pause()
		return false
	}
	t.player.Play()
	return true
}

// Play starts playback if paused.
func (t *Track) Play() {
	if !t.player.IsPlaying() {
		t.player.Play()
	}
}

// Playing reports whether the track is audible.
func (t *Track) Playing() bool {
	return t.player.IsPlaying()
}

// Volume returns the playback volume in [0, 1].
func (t *Track) Volume() float64 {
	return t.player.Volume()
}

// SetVolume clamps v to [0, 1] and applies it.
func (t *Track) SetVolume(v float64) {
	t.player.SetVolume(max(0, min(1, v)))
}

// Close releases the player and the underlying stream.
func (t *Track) Close() error {
	err := t.player.Close()
	if c, ok := t.stream.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
