package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/olivierh59500/ym-player/pkg/stsound"
)

// YMPlayer streams a YM chiptune as 16-bit stereo PCM.
type YMPlayer struct {
	player       *stsound.StSound
	buffer       []int16
	mutex        sync.Mutex
	position     int64
	totalSamples int64
	loop         bool
}

// NewYMPlayer creates a new YM player instance
func NewYMPlayer(data []byte, sampleRate int, loop bool) (*YMPlayer, error) {
	player := stsound.CreateWithRate(sampleRate)

	if err := player.LoadMemory(data); err != nil {
		player.Destroy()
		return nil, fmt.Errorf("failed to load YM data: %w", err)
	}

	player.SetLoopMode(loop)

	info := player.GetInfo()
	totalSamples := int64(info.MusicTimeInMs) * int64(sampleRate) / 1000

	return &YMPlayer{
		player:       player,
		buffer:       make([]int16, 4096),
		totalSamples: totalSamples,
		loop:         loop,
	}, nil
}

// Read implements io.Reader for audio streaming
func (y *YMPlayer) Read(p []byte) (n int, err error) {
	y.mutex.Lock()
	defer y.mutex.Unlock()

	if y.player == nil {
		return 0, io.EOF
	}

	samplesNeeded := len(p) / 4
	written := 0
	for written < samplesNeeded {
		chunkSize := samplesNeeded - written
		if chunkSize > len(y.buffer) {
			chunkSize = len(y.buffer)
		}

		if !y.player.Compute(y.buffer[:chunkSize], chunkSize) && !y.loop {
			err = io.EOF
			break
		}

		// mono to interleaved little-endian stereo
		for i := 0; i < chunkSize; i++ {
			s := y.buffer[i]
			o := (written + i) * 4
			p[o], p[o+1] = byte(s), byte(s>>8)
			p[o+2], p[o+3] = byte(s), byte(s>>8)
		}

		written += chunkSize
		y.position += int64(chunkSize)
	}

	return written * 4, err
}

// Seek implements io.Seeker. Offsets are in bytes of stereo PCM.
func (y *YMPlayer) Seek(offset int64, whence int) (int64, error) {
	y.mutex.Lock()
	defer y.mutex.Unlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset / 4
	case io.SeekCurrent:
		newPos = y.position + offset/4
	case io.SeekEnd:
		newPos = y.totalSamples + offset/4
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if newPos < 0 {
		newPos = 0
	}
	if newPos > y.totalSamples {
		newPos = y.totalSamples
	}

	y.position = newPos
	return newPos * 4, nil
}

// Length returns the stream length in bytes.
func (y *YMPlayer) Length() int64 {
	return y.totalSamples * 4
}

// Close releases resources
func (y *YMPlayer) Close() error {
	y.mutex.Lock()
	defer y.mutex.Unlock()

	if y.player != nil {
		y.player.Destroy()
		y.player = nil
	}
	return nil
}
