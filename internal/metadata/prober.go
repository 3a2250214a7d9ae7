// Package metadata reads tags and durations from audio files. The importer
// uses it to enrich playlist entries whose file still exists on disk, and
// the watcher uses it to build track rows for newly appeared files.
package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// TagInfo is everything the library core wants to know about one file.
// Duration is 0 when it could not be determined.
type TagInfo struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	TrackNumber int
	DiscNumber  int
	Genre       string
	Duration    int // in seconds
}

// Prober reads tags and computes durations for supported audio formats.
type Prober struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewProber creates a prober limited to the given extensions (".mp3" etc).
func NewProber(supportedFormats []string) *Prober {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Prober{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// Probe extracts tags and duration from an audio file. Missing tags degrade
// to the filename stem for the title and empty strings elsewhere; a failed
// duration probe degrades to 0 rather than failing the whole read.
func (p *Prober) Probe(filePath string) (TagInfo, error) {
	file, err := os.Open(filePath)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open audio file")
		return TagInfo{}, err
	}
	defer file.Close()

	duration, err := p.calculateDuration(filePath)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	info := TagInfo{Duration: duration}

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// No readable tags; fall back to the filename
		p.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to read tags, using filename")
		info.Title = stem(filePath)
		return info, nil
	}

	info.Title = meta.Title()
	if info.Title == "" {
		info.Title = stem(filePath)
	}
	info.Artist = meta.Artist()
	info.AlbumArtist = meta.AlbumArtist()
	info.Album = meta.Album()
	info.Genre = meta.Genre()
	info.TrackNumber, _ = meta.Track()
	info.DiscNumber, _ = meta.Disc()

	return info, nil
}

// IsAudioFile checks if a file is a supported audio format
func (p *Prober) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range p.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

func stem(filePath string) string {
	return strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
}

// calculateDuration calculates the duration of an audio file in seconds
func (p *Prober) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return p.durationMP3(filePath)
	case ".flac":
		return p.durationFLAC(filePath)
	case ".wav":
		return p.durationWAV(filePath)
	case ".m4a":
		return p.durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation
// only if no frame decodes at all.
func (p *Prober) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total float64
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return p.estimateFromFileSize(path, 192000) // assume 192 kbps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration().Seconds()
		frames++
	}
	return int(total), nil
}

// FLAC duration via STREAMINFO metadata block
func (p *Prober) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration using go-audio/wav to read the header, approximating sample
// count from file size.
func (p *Prober) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// M4A (AAC in MP4) minimal duration parsing: read 'mvhd' timescale &
// duration via a manual atom scan. Best-effort.
func (p *Prober) durationM4A(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if atom == "moov" {
			limit := int64(size) - 8
			for read := int64(0); read < limit; {
				subHead := make([]byte, 8)
				if _, err := io.ReadFull(f, subHead); err != nil {
					return 0, err
				}
				subSize := binary.BigEndian.Uint32(subHead[0:4])
				subAtom := string(subHead[4:8])
				if subAtom == "mvhd" {
					version := make([]byte, 1)
					if _, err := io.ReadFull(f, version); err != nil {
						return 0, err
					}
					var skip int64
					if version[0] == 1 { // 64-bit creation/modification times
						skip = 3 + 8 + 8
					} else {
						skip = 3 + 4 + 4
					}
					if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
						return 0, err
					}
					tsBuf := make([]byte, 4)
					if _, err := io.ReadFull(f, tsBuf); err != nil {
						return 0, err
					}
					timescale := binary.BigEndian.Uint32(tsBuf)
					durBuf := make([]byte, 4)
					if _, err := io.ReadFull(f, durBuf); err != nil {
						return 0, err
					}
					durUnits := binary.BigEndian.Uint32(durBuf)
					if timescale == 0 {
						return 0, fmt.Errorf("invalid timescale")
					}
					secs := float64(durUnits) / float64(timescale)
					return int(secs + 0.5), nil
				}
				if subSize < 8 {
					return 0, fmt.Errorf("invalid sub-atom size")
				}
				if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
					return 0, err
				}
				read += int64(subSize)
			}
			break
		}
		if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("mvhd atom not found")
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (p *Prober) estimateFromFileSize(path string, bitrate int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	dur := (st.Size() * 8) / int64(bitrate)
	return int(dur), nil
}
