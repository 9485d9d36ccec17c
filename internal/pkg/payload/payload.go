// Package payload builds submission bodies from files on disk.
package payload

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/sirupsen/logrus"
)

// Payload is the JSON body accepted by POST /api/v1/submit.
type Payload struct {
	Image           string         `json:"image"`
	Landmarks       []entity.Point `json:"landmarks"`
	SegmentationMap string         `json:"segmentation_map"`
}

// ParseLandmarks reads one "x,y" pair per line. Lines that do not hold two
// numbers are skipped with a warning; blank lines are ignored silently.
func ParseLandmarks(r io.Reader) ([]entity.Point, error) {
	landmarks := []entity.Point{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		p, err := parsePoint(text)
		if err != nil {
			logrus.WithField("line", line).WithError(err).Warn("Skipping invalid landmark line")
			continue
		}
		landmarks = append(landmarks, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read landmarks: %w", err)
	}
	return landmarks, nil
}

func parsePoint(text string) (entity.Point, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return entity.Point{}, fmt.Errorf("want 2 fields, got %d", len(parts))
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return entity.Point{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return entity.Point{}, err
	}
	return entity.Point{X: x, Y: y}, nil
}

// Input reads the image, segmentation map and landmarks files.
func Input(imagePath, segmentationPath, landmarksPath string) (entity.JobInput, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return entity.JobInput{}, err
	}
	seg, err := os.ReadFile(segmentationPath)
	if err != nil {
		return entity.JobInput{}, err
	}
	f, err := os.Open(landmarksPath)
	if err != nil {
		return entity.JobInput{}, err
	}
	defer f.Close()

	landmarks, err := ParseLandmarks(f)
	if err != nil {
		return entity.JobInput{}, err
	}
	return entity.JobInput{Image: img, Landmarks: landmarks, Segmentation: seg}, nil
}

func FromInput(in entity.JobInput) Payload {
	return Payload{
		Image:           base64.StdEncoding.EncodeToString(in.Image),
		Landmarks:       in.Landmarks,
		SegmentationMap: base64.StdEncoding.EncodeToString(in.Segmentation),
	}
}

// Write stores p as indented JSON.
func Write(path string, p Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
