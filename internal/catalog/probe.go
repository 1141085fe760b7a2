package catalog

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spacesaver/coordinator/internal/model"
)

// Prober extracts MediaProbe metadata from a file. Its internal algorithm is a pluggable
// collaborator per spec §1; FFProbeProber is the default, ffprobe-backed implementation.
type Prober interface {
	Probe(ctx context.Context, path string) (model.MediaProbe, error)
}

// FFProbeProber shells out to ffprobe, grounded line-for-line on scan.py's probe_media.
type FFProbeProber struct {
	// FFProbePath overrides PATH lookup and the FFPROBE_PATH environment variable when set.
	FFProbePath string
}

// ResolvePath reports the ffprobe binary p would invoke, trying FFProbePath, then the
// FFPROBE_PATH environment variable, then PATH lookup, in that order. Returns "" if none resolve.
func (p FFProbeProber) ResolvePath() string {
	return p.resolvePath()
}

func (p FFProbeProber) resolvePath() string {
	if p.FFProbePath != "" {
		if _, err := os.Stat(p.FFProbePath); err == nil {
			return p.FFProbePath
		}
	}
	if envPath := os.Getenv("FFPROBE_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	if found, err := exec.LookPath("ffprobe"); err == nil {
		return found
	}
	return ""
}

type ffprobeFormat struct {
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

type ffprobeStream struct {
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Duration      string            `json:"duration"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	RFrameRate    string            `json:"r_frame_rate"`
	Tags          map[string]string `json:"tags"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe runs ffprobe against path and parses the result. A missing ffprobe binary or any parse
// failure yields a zero-value MediaProbe and a nil error, matching scan.py's probe_media, which
// returns {} rather than raising on any of these conditions.
func (p FFProbeProber) Probe(ctx context.Context, path string) (model.MediaProbe, error) {
	ffprobe := p.resolvePath()
	if ffprobe == "" {
		return model.MediaProbe{}, nil
	}

	cmd := exec.CommandContext(ctx, ffprobe, "-v", "error", "-print_format", "json",
		"-show_format", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		return model.MediaProbe{}, nil
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return model.MediaProbe{}, nil
	}

	var video *ffprobeStream
	var audioCodecs []string
	var subtitleLangs []string
	for i := range parsed.Streams {
		s := &parsed.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if s.CodecName != "" {
				audioCodecs = append(audioCodecs, s.CodecName)
			}
		case "subtitle":
			if lang := s.Tags["language"]; lang != "" {
				subtitleLangs = append(subtitleLangs, lang)
			}
		}
	}

	duration := parsed.Format.Duration
	if duration == "" && video != nil {
		duration = video.Duration
	}
	durationSec, _ := strconv.ParseFloat(duration, 64)

	var width, height int
	var fps float64
	if video != nil {
		width, height = video.Width, video.Height
		fpsRaw := video.AvgFrameRate
		if fpsRaw == "" || fpsRaw == "0/0" {
			fpsRaw = video.RFrameRate
		}
		if fpsRaw != "" && fpsRaw != "0/0" {
			parts := strings.SplitN(fpsRaw, "/", 2)
			if len(parts) == 2 {
				num, errNum := strconv.ParseFloat(parts[0], 64)
				den, errDen := strconv.ParseFloat(parts[1], 64)
				if errNum == nil && errDen == nil && den != 0 {
					fps = num / den
				}
			}
		}
	}

	tagsLower := map[string]string{}
	for k, v := range parsed.Format.Tags {
		tagsLower[strings.ToLower(k)] = v
	}
	encodedBy := firstNonEmpty(tagsLower["encoded_by"], tagsLower["encodedby"], tagsLower["encoder"])
	comment := tagsLower["comment"]
	spacesaver := strings.Contains(strings.ToLower(encodedBy), "mediaspacesaver") ||
		strings.Contains(strings.ToLower(comment), "spacesaver=1")

	videoCodec := ""
	if video != nil {
		videoCodec = video.CodecName
	}

	return model.MediaProbe{
		DurationSec:         durationSec,
		Width:               width,
		Height:              height,
		FPS:                 fps,
		VideoCodec:          videoCodec,
		AudioCodecs:         audioCodecs,
		SubtitleLangs:       subtitleLangs,
		EncodedBy:           encodedBy,
		EncodedBySpacesaver: spacesaver,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
