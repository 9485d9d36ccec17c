package transport

import (
	"github.com/ds124wfegd/facesvg/internal/service"
)

type JobHandler struct {
	service service.JobService
}

func NewJobHandler(service service.JobService) *JobHandler {
	return &JobHandler{service: service}
}
