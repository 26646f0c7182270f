package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dharsanguruparan/ModelDrop/internal/apperr"
	"github.com/dharsanguruparan/ModelDrop/internal/assets"
	"github.com/dharsanguruparan/ModelDrop/internal/auth"
)

const (
	// maxFieldBytes bounds the name and description parts.
	maxFieldBytes = 16 << 10
	// formOverhead covers boundaries, part headers and text fields.
	formOverhead = 64 << 10
)

type uploadResponse struct {
	Message      string `json:"message"`
	ResourcePath string `json:"resource_path"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFrom(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, s.assets.MaxFileSize()+formOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeAppError(w, apperr.InvalidInput("expecting multipart form"))
		return
	}

	var (
		tmp    *tempUpload
		fields = map[string]string{}
	)
	defer func() {
		if tmp != nil {
			tmp.remove()
		}
	}()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeAppError(w, readError(err))
			return
		}
		switch part.FormName() {
		case "file":
			if tmp != nil {
				part.Close()
				writeAppError(w, apperr.InvalidInput("only one file may be uploaded"))
				return
			}
			// Reject by name before any bytes hit the disk.
			if err := s.assets.ValidateFile(part.FileName(), -1); err != nil {
				part.Close()
				writeAppError(w, err)
				return
			}
			tmp, err = s.persistTemp(part)
			part.Close()
			if err != nil {
				writeAppError(w, err)
				return
			}
		case "name", "description":
			value, err := readField(part)
			part.Close()
			if err != nil {
				writeAppError(w, err)
				return
			}
			fields[part.FormName()] = value
		default:
			part.Close()
		}
	}
	if tmp == nil {
		writeAppError(w, apperr.InvalidInput("file is required"))
		return
	}

	asset, err := s.assets.Upload(ctx, assets.UploadInput{
		Principal:   principal,
		Filename:    tmp.filename,
		Size:        tmp.size,
		Body:        tmp.f,
		Name:        fields["name"],
		Description: fields["description"],
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, uploadResponse{Message: "ok", ResourcePath: asset.ResourcePath})
}

type tempUpload struct {
	f        *os.File
	path     string
	size     int64
	filename string
}

func (t *tempUpload) remove() {
	t.f.Close()
	os.Remove(t.path)
}

// persistTemp spools a file part to disk so it can be stored with a known
// size whatever order the remaining form fields arrive in.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "modeldrop-*.upload")
	if err != nil {
		return nil, apperr.Internal("create temp file", err)
	}
	fail := func(err error) (*tempUpload, error) {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	limit := s.assets.MaxFileSize()
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > limit {
				return fail(apperr.InvalidInput(fmt.Sprintf("file exceeds the %d byte limit", limit)))
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return fail(apperr.Internal("write temp file", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fail(readError(readErr))
		}
	}
	if written == 0 {
		return fail(apperr.InvalidInput("file is empty"))
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return fail(apperr.Internal("rewind temp file", err))
	}
	return &tempUpload{
		f:        tmpFile,
		path:     tmpFile.Name(),
		size:     written,
		filename: part.FileName(),
	}, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", readError(err)
	}
	if len(data) > maxFieldBytes {
		return "", apperr.InvalidInput(part.FormName() + " is too long")
	}
	return string(data), nil
}

// readError classifies a failure reading the request body. Both a client
// disconnect and an oversized body are the client's fault.
func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.InvalidInput(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	}
	slog.Debug("read upload body", slog.String("error", err.Error()))
	return apperr.InvalidInput("malformed upload")
}
