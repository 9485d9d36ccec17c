package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/contour"
	"github.com/ds124wfegd/facesvg/internal/pkg/facedetect"
	"github.com/ds124wfegd/facesvg/internal/pkg/geometry"
	"github.com/ds124wfegd/facesvg/internal/pkg/vector"
	"github.com/sirupsen/logrus"
)

type FaceProcessor interface {
	Process(in entity.JobInput) (*entity.JobResult, error)
}

type faceProcessor struct {
	detector  facedetect.Detector
	extractor *contour.Extractor
}

// NewFaceProcessor returns the segmentation pipeline. A nil detector skips
// the face sanity check.
func NewFaceProcessor(detector facedetect.Detector) FaceProcessor {
	return &faceProcessor{
		detector:  detector,
		extractor: contour.NewExtractor(),
	}
}

// Process decodes the submission, checks for a face, levels and crops the
// face, extracts region contours and renders them. A panic in any stage is
// reported as ErrInternalComputation.
func (p *faceProcessor) Process(in entity.JobInput) (result *entity.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", entity.ErrInternalComputation, r)
		}
	}()

	img, err := decodeImage(in.Image)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	seg, err := decodeImage(in.Segmentation)
	if err != nil {
		return nil, fmt.Errorf("segmentation map: %w", err)
	}

	if err := facedetect.Validate(p.detector, img, in.Landmarks); err != nil {
		return nil, err
	}

	frame := geometry.Frame{
		Image:     img,
		Labels:    geometry.ResizeLabels(contour.LabelsFromImage(seg).Gray16(), img.Bounds().Size()),
		Landmarks: in.Landmarks,
	}

	angle := geometry.DetectAngle(frame.Landmarks)
	frame = geometry.Rotate(frame, angle)
	frame = geometry.Crop(frame)

	set := p.extractor.Extract(contour.LabelsFromImage(frame.Labels))

	b := frame.Image.Bounds()
	doc := vector.Render(b.Dx(), b.Dy(), set)

	logrus.WithFields(logrus.Fields{
		"angle":    angle,
		"width":    b.Dx(),
		"height":   b.Dy(),
		"regions":  len(set),
		"contours": set.Count(),
	}).Debug("face normalized")

	return &entity.JobResult{
		SVG:          doc.Base64(),
		MaskContours: set,
	}, nil
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", entity.ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", entity.ErrDecode)
	}
	return img, nil
}
