package uploads

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), bytes.Repeat([]byte{0}, 32)...)
)

type memStore struct {
	mu    sync.Mutex
	puts  map[string][]byte
	types map[string]string
	err   error
}

func newMemStore() *memStore {
	return &memStore{puts: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(_ context.Context, name, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loc := "mem://" + name
	m.puts[loc] = data
	m.types[loc] = contentType
	return loc, nil
}

type fixedClassifier struct {
	label string
	err   error
	delay time.Duration
}

func (f fixedClassifier) Predict(ctx context.Context, _ []byte) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.label, f.err
}

func newService(store ImageStore, c Classifier) *Service {
	return NewService(store, c, 1024, time.Second, logging.Nop())
}

func TestUpload_Success(t *testing.T) {
	store := newMemStore()
	svc := newService(store, fixedClassifier{label: "Healthy"})

	res, err := svc.Upload(context.Background(), "../My X-Ray.PNG", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, Result{Filename: "My_X-Ray.PNG", Location: "mem://My_X-Ray.PNG", Label: "Healthy"}, res)
	assert.Equal(t, pngBytes, store.puts[res.Location])
	assert.Equal(t, "image/png", store.types[res.Location])
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{name: "no name", filename: "", data: pngBytes, want: common.ErrUnsupportedFile},
		{name: "name sanitises to nothing", filename: "..", data: pngBytes, want: common.ErrUnsupportedFile},
		{name: "bad extension", filename: "scan.gif", data: pngBytes, want: common.ErrUnsupportedFile},
		{name: "empty file", filename: "scan.png", data: nil, want: common.ErrUnsupportedFile},
		{name: "not an image", filename: "scan.jpg", data: []byte("<html>hello</html>"), want: common.ErrUnsupportedFile},
		{name: "too large", filename: "scan.jpg", data: append(jpegBytes, bytes.Repeat([]byte{1}, 2048)...), want: common.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newService(store, fixedClassifier{label: "x"})

			_, err := svc.Upload(context.Background(), tt.filename, bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.puts)
		})
	}
}

func TestUpload_ExactlyMaxBytes(t *testing.T) {
	data := append([]byte{}, jpegBytes...)
	data = append(data, bytes.Repeat([]byte{1}, 1024-len(data))...)

	svc := newService(newMemStore(), fixedClassifier{label: "ok"})
	_, err := svc.Upload(context.Background(), "a.jpeg", bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestUpload_StoreError(t *testing.T) {
	boom := errors.New("disk full")
	store := newMemStore()
	store.err = boom
	svc := newService(store, fixedClassifier{label: "x"})

	_, err := svc.Upload(context.Background(), "a.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, boom)
}

func TestUpload_ClassifierFailureKeepsUpload(t *testing.T) {
	store := newMemStore()
	svc := newService(store, fixedClassifier{err: errors.New("model crashed")})

	res, err := svc.Upload(context.Background(), "a.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, LabelUnavailable, res.Label)
	assert.Len(t, store.puts, 1)
}

func TestUpload_ClassifierTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := NewService(newMemStore(), fixedClassifier{label: "late", delay: time.Minute}, 1024, 20*time.Millisecond, logging.Nop())

	start := time.Now()
	res, err := svc.Upload(context.Background(), "a.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, LabelUnavailable, res.Label)
	assert.Less(t, time.Since(start), 10*time.Second)

	// The classifier goroutine observes cancellation and exits.
	assert.Eventually(t, func() bool { return goleak.Find() == nil }, time.Second, 10*time.Millisecond)
}

func TestUpload_ModelNotLoadedPassesThrough(t *testing.T) {
	svc := newService(newMemStore(), &PlaceholderClassifier{})

	res, err := svc.Upload(context.Background(), "a.png", strings.NewReader(string(pngBytes)))
	require.NoError(t, err)
	assert.Equal(t, ModelNotLoaded, res.Label)
}
