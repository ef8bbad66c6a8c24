package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"facewatch/internal/dao"
	"facewatch/internal/jobs"
	"facewatch/internal/resolver"
	"facewatch/pkg/log"
)

// handleUpload 上传视频
// @Summary 上传视频
// @Description 保存视频并在后台启动批处理任务，立即返回
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "video file"
// @Param mode formData string false "matching or ml" default(matching)
// @Success 200 {object} dao.UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/upload [post]
func (s *Server) handleUpload(c *gin.Context) {
	mode, err := resolver.ParseMode(c.PostForm("mode"))
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, http.StatusBadRequest, errors.New("missing file"))
		return
	}

	if err := os.MkdirAll(s.conf.UploadDir, 0755); err != nil {
		s.writeInternalError(c, err)
		return
	}
	name := strings.ReplaceAll(uuid.New().String(), "-", "") + strings.ToLower(filepath.Ext(file.Filename))
	localPath := path.Join(s.conf.UploadDir, name)
	if err := c.SaveUploadedFile(file, localPath); err != nil {
		s.writeInternalError(c, err)
		return
	}

	job, err := s.deps.Batch.Submit(localPath, mode)
	if err != nil {
		s.writeInternalError(c, err)
		return
	}
	s.archiveUpload(c.Request.Context(), localPath, fmt.Sprintf("uploads/%s/%s", job.Id, name))

	c.JSON(http.StatusOK, dao.UploadResponse{
		Status: string(jobs.StatusProcessing),
		JobId:  job.Id,
	})
}

// archiveUpload copies the upload to object storage in the background.
func (s *Server) archiveUpload(ctx context.Context, localPath, objectPath string) {
	if s.deps.Archiver == nil {
		return
	}
	logger := log.GetLogger(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.deps.Archiver.Archive(ctx, localPath, objectPath); err != nil {
			logger.WithError(err).Warnf("archive upload %s failed", objectPath)
		}
	}()
}

// handleGetUploadJob 获取批处理任务状态
// @Summary 获取批处理任务状态
// @Tags upload
// @Produce json
// @Param job_id path string true "job id"
// @Success 200 {object} dao.JobSpec
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/upload/{job_id} [get]
func (s *Server) handleGetUploadJob(c *gin.Context) {
	job, err := s.deps.Jobs.Get(c.Param("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			s.writeError(c, http.StatusNotFound, err)
			return
		}
		s.writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dao.FromJob(job))
}
