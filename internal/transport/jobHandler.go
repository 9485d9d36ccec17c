package transport

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *JobHandler) Submit(c *gin.Context) {
	var req entity.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, entity.ErrorResponse{Detail: err.Error()})
		return
	}

	in, err := decodeSubmission(req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, entity.ErrorResponse{Detail: err.Error()})
		return
	}

	id, err := h.service.Submit(c.Request.Context(), in)
	if err != nil {
		logrus.WithError(err).Error("failed to submit job")
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Detail: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, entity.JobResponse{
		ID:     id,
		Status: entity.StatePending,
	})
}

func (h *JobHandler) Status(c *gin.Context) {
	id := c.Param("job_id")

	view, err := h.service.Poll(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Detail: err.Error()})
		return
	}

	switch view.Status {
	case entity.StateSucceeded:
		c.JSON(http.StatusOK, entity.CropResult{
			SVG:          view.Result.SVG,
			MaskContours: view.Result.MaskContours,
		})
	case entity.StateFailed:
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{
			Detail: "Job failed: " + view.Error,
		})
	default:
		c.JSON(http.StatusOK, entity.JobResponse{ID: id, Status: view.Status})
	}
}

func decodeSubmission(req entity.SubmitRequest) (entity.JobInput, error) {
	img, err := decodeBase64(req.Image)
	if err != nil {
		return entity.JobInput{}, fmt.Errorf("%w: image: %v", entity.ErrValidation, err)
	}
	seg, err := decodeBase64(req.SegmentationMap)
	if err != nil {
		return entity.JobInput{}, fmt.Errorf("%w: segmentation_map: %v", entity.ErrValidation, err)
	}

	landmarks := make([]entity.Point, len(req.Landmarks))
	for i, p := range req.Landmarks {
		landmarks[i] = entity.Point{X: *p.X, Y: *p.Y}
	}

	return entity.JobInput{
		Image:        img,
		Landmarks:    landmarks,
		Segmentation: seg,
	}, nil
}

// decodeBase64 accepts plain base64 or a data URL such as
// "data:image/png;base64,....".
func decodeBase64(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	return data, nil
}
