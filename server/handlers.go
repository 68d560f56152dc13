package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/sitemd"
)

type submitResponse struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "sitemd website crawler and Markdown conversion API",
		"version": Version,
		"endpoints": map[string]string{
			"/api/convert/":                "Start converting a website to Markdown",
			"/api/convert/file/":           "Start converting an uploaded document to Markdown",
			"/api/tasks/{task_id}/":        "Check task status",
			"/api/tasks/{task_id}/result/": "Fetch the conversion result",
		},
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		s.Error(w, r, sitemd.Errorf(sitemd.EINVALID, "invalid JSON body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.Error(w, r, err)
		return
	}

	id := req.TaskID
	if id == "" {
		id = s.NewTaskID()
	}
	job := req.Job(s.MaxCrawlDepth)

	err := s.Runner.Submit(r.Context(), id, func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
		return s.Converter.ConvertWebsite(ctx, job, progress)
	})
	if err != nil {
		s.Error(w, r, err)
		return
	}

	s.logger().Info("website conversion submitted", "task", id, "url", job.StartURL, "depth", job.MaxDepth)
	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: id})
}

func (s *Server) handleConvertFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.Error(w, r, sitemd.Errorf(sitemd.EINVALID, "invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.Error(w, r, sitemd.Errorf(sitemd.EINVALID, "file is required"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		s.Error(w, r, sitemd.Errorf(sitemd.EINVALID, "file name is required"))
		return
	}

	id := strings.TrimSpace(r.FormValue("task_id"))
	if id != "" {
		if err := validate.Var(id, "max=128,printascii,excludesall=/?#"); err != nil {
			s.Error(w, r, sitemd.Errorf(sitemd.EINVALID, "task_id is invalid"))
			return
		}
	} else {
		id = s.NewTaskID()
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		s.Error(w, r, fmt.Errorf("saving upload: %w", err))
		return
	}

	err = s.Runner.Submit(r.Context(), id, func(ctx context.Context, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
		return s.Converter.ConvertFile(ctx, path, name, progress)
	})
	if err != nil {
		_ = os.Remove(path)
		s.Error(w, r, err)
		return
	}

	s.logger().Info("file conversion submitted", "task", id, "file", name, "bytes", header.Size)
	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: id})
}

// saveUpload copies an uploaded file to a temporary file that the job owns.
func (s *Server) saveUpload(src io.Reader, name string) (string, error) {
	dst, err := os.CreateTemp(s.UploadDir, "sitemd-upload-*"+filepath.Ext(name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.Tasks.FindTaskByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.Tasks.FindResultByTaskID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
