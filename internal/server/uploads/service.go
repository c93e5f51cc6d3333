package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/logging"
)

// LabelUnavailable is reported when the classifier fails or runs out of time.
const LabelUnavailable = "unavailable"

// Result describes a stored upload.
type Result struct {
	Filename string `json:"filename"`
	Location string `json:"location"`
	Label    string `json:"label"`
}

// Service runs the upload pipeline.
type Service struct {
	store      ImageStore
	classifier Classifier
	maxBytes   int64
	timeout    time.Duration
	logger     logging.Logger
}

func NewService(store ImageStore, classifier Classifier, maxBytes int64, timeout time.Duration, logger logging.Logger) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		maxBytes:   maxBytes,
		timeout:    timeout,
		logger:     logger.With("module", "uploads"),
	}
}

// MaxBytes is the largest accepted upload.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Upload sanitises filename, checks extension, size and content, stores the
// image and classifies it. Classification never fails the upload: errors and
// timeouts produce LabelUnavailable.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (Result, error) {
	name := SecureFilename(filename)
	if name == "" {
		return Result{}, fmt.Errorf("%w: empty file name", common.ErrUnsupportedFile)
	}
	contentType, ok := contentTypeFor(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: only jpg, jpeg and png are accepted", common.ErrUnsupportedFile)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return Result{}, common.ErrFileTooLarge
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty file", common.ErrUnsupportedFile)
	}
	if sniffed := http.DetectContentType(data); sniffed != "image/jpeg" && sniffed != "image/png" {
		return Result{}, fmt.Errorf("%w: content is %s", common.ErrUnsupportedFile, sniffed)
	}

	location, err := s.store.Put(ctx, name, contentType, data)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info(ctx, "image stored", "filename", name, "location", location, "bytes", len(data))

	return Result{Filename: name, Location: location, Label: s.classify(ctx, data)}, nil
}

// classify runs the classifier on its own goroutine and gives up after the
// configured timeout.
func (s *Service) classify(ctx context.Context, data []byte) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		label string
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		label, err := s.classifier.Predict(ctx, data)
		done <- outcome{label: label, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			s.logger.Warn(ctx, "classification failed", "error", o.err)
			return LabelUnavailable
		}
		return o.label
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn(ctx, "classification timed out", "timeout", s.timeout.String())
		}
		return LabelUnavailable
	}
}
