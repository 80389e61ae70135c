// Package audio plays episodes on the local sound card.
//
// Device implements playback.Media on top of beep. Sources are resolved to
// local files (remote enclosures are downloaded into the cache directory),
// decoded by MIME type and fed through a control chain of
// Resampler (playback rate) -> Volume (mute) -> Ctrl (pause). The chain is
// mixed into a single long-lived streamer so the speaker is initialised once.
//
// Device never calls its listener from the audio thread. A ticker goroutine
// samples the chain, emitting EventTimeUpdate while playing and EventEnded
// once the decoder drains.
package audio
