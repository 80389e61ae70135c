package audio

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output pulls samples from the device streamer. Lock and Unlock guard
// changes to anything the streamer reads.
type Output interface {
	Start(rate beep.SampleRate, s beep.Streamer) error
	Lock()
	Unlock()
	Stop()
}

// Speaker is the sound card output.
type Speaker struct {
	once sync.Once
	err  error
}

// NewSpeaker returns the default output.
func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Start initialises the speaker at rate with a 100ms buffer and starts
// streaming s. Later calls are no-ops.
func (o *Speaker) Start(rate beep.SampleRate, s beep.Streamer) error {
	o.once.Do(func() {
		if err := speaker.Init(rate, rate.N(100*time.Millisecond)); err != nil {
			o.err = err
			return
		}
		speaker.Play(s)
	})
	return o.err
}

func (o *Speaker) Lock()   { speaker.Lock() }
func (o *Speaker) Unlock() { speaker.Unlock() }

// Stop silences the speaker.
func (o *Speaker) Stop() { speaker.Clear() }
