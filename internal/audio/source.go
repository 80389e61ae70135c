package audio

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	"podvoice/internal/services"
)

// Codec names a supported container.
type Codec string

const (
	CodecMP3 Codec = "mp3"
	CodecWAV Codec = "wav"
)

// CodecFor picks a decoder from the MIME type, falling back to the file
// extension of source.
func CodecFor(mimeType, source string) (Codec, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	switch mimeType {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg":
		return CodecMP3, nil
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return CodecWAV, nil
	}
	ext := strings.ToLower(path.Ext(sourcePath(source)))
	switch ext {
	case ".mp3":
		return CodecMP3, nil
	case ".wav", ".wave":
		return CodecWAV, nil
	}
	return "", services.Wrap(services.ErrValidation, component, "codec", fmt.Sprintf("unsupported media type %q", mimeType), nil)
}

func sourcePath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		return u.Path
	}
	return source
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// cachePath maps a remote source to its file under dir.
func cachePath(dir, source string, codec Codec) string {
	sum := sha1.Sum([]byte(source))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+"."+string(codec))
}

// resolve returns a local path for source, downloading remote sources into
// cacheDir unless a previous download exists.
func resolve(ctx context.Context, client *http.Client, cacheDir, source string, codec Codec) (string, error) {
	if !isRemote(source) {
		local := strings.TrimPrefix(source, "file://")
		if _, err := os.Stat(local); err != nil {
			return "", services.Wrap(services.ErrNotFound, component, "resolve", "media file missing", err)
		}
		return local, nil
	}
	if cacheDir == "" {
		return "", services.Wrap(services.ErrConfiguration, component, "resolve", "cache directory required for remote media", nil)
	}
	target := cachePath(cacheDir, source, codec)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		return target, nil
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "resolve", "create cache directory", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, component, "download", "build request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, component, "download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrUpstream, component, "download", fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp(cacheDir, ".download-*")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, component, "download", "create temp file", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", services.Wrap(services.ErrUpstream, component, "download", "copy body", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", services.Wrap(services.ErrTransient, component, "download", "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", services.Wrap(services.ErrTransient, component, "download", "move into cache", err)
	}
	return target, nil
}

// decode opens path with the decoder for codec. The returned stream owns the
// file.
func decode(path string, codec Codec) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, services.Wrap(services.ErrNotFound, component, "decode", "open media", err)
	}
	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch codec {
	case CodecMP3:
		stream, format, err = mp3.Decode(f)
	case CodecWAV:
		stream, format, err = wav.Decode(f)
	default:
		err = fmt.Errorf("unknown codec %q", codec)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, services.Wrap(services.ErrValidation, component, "decode", "decode "+string(codec), err)
	}
	return stream, format, nil
}
