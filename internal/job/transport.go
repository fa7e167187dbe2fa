package job

import "github.com/ahmethakanbesel/riksbank-cache/internal/apperror"

type GetJobRequest struct {
	ID int64
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}

type ListJobsRequest struct {
	Status Status
}

func (r ListJobsRequest) Validate() *apperror.AppError {
	if r.Status != "" && !r.Status.Valid() {
		return apperror.New(apperror.BadRequest, "status must be pending, running, completed or failed")
	}
	return nil
}
