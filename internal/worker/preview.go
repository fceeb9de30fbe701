package worker

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/rewindfm/rewind/internal/core/domain"
)

var previewClient = &http.Client{Timeout: 15 * time.Second}

// analyzePreview downloads an mp3 preview and estimates energy from the RMS
// amplitude of its samples, normalized to [0,1].
func analyzePreview(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("preview request: %w", err)
	}
	resp, err := previewClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("preview fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("preview fetch status %d", resp.StatusCode)
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("preview decode: %w", err)
	}

	buf := make([]byte, 4096)
	var sumSquares, count float64
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			// Samples are 16-bit little-endian PCM.
			for i := 0; i+1 < n; i += 2 {
				sample := int16(buf[i]) | int16(buf[i+1])<<8
				v := float64(sample)
				sumSquares += v * v
				count++
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, fmt.Errorf("preview read: %w", err)
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("preview contains no samples")
	}

	rms := math.Sqrt(sumSquares / count)
	energy := rms / 32768.0
	if energy < 0 {
		energy = 0
	}
	if energy > 1 {
		energy = 1
	}
	return energy, nil
}

// estimateFeatures builds a partial feature vector around a preview-derived
// energy estimate. Dimensions the preview cannot tell us anything about get
// neutral values.
func estimateFeatures(energy float64) domain.AudioFeatures {
	loudness := -60.0
	if energy > 0 {
		loudness = 20 * math.Log10(energy)
		if loudness < -60 {
			loudness = -60
		}
		if loudness > 0 {
			loudness = 0
		}
	}
	return domain.AudioFeatures{
		Acousticness:     0.5,
		Danceability:     0.5,
		Energy:           energy,
		Instrumentalness: 0.0,
		Liveness:         0.2,
		Loudness:         loudness,
		Speechiness:      0.1,
		Tempo:            120,
		Valence:          0.5,
		Key:              0,
		Mode:             1,
		TimeSignature:    4,
	}
}
