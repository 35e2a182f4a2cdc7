package invox

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/metrics"
)

// EncodeAudio returns the standard padded base64 form of audio.
func EncodeAudio(audio []byte) string {
	metrics.AudioBytesEncoded.Add(float64(len(audio)))
	return base64.StdEncoding.EncodeToString(audio)
}

// EncodeAudioReader base64-encodes everything read from r without holding
// the raw bytes in memory.
func EncodeAudioReader(r io.Reader) (string, error) {
	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	n, err := io.Copy(enc, r)
	if err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	metrics.AudioBytesEncoded.Add(float64(n))
	return sb.String(), nil
}
