package agenda

import (
	"bytes"
	"context"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/apperr"
)

type part struct {
	name string
	data []byte
}

func buildMultipart(t *testing.T, fields map[string]string, files []part) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.name, f.name+".jpg")
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func readForm(t *testing.T, files []part) *multipart.Form {
	t.Helper()

	body, contentType := buildMultipart(t, nil, files)
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

func TestPhotoFilesFiltersAndOrders(t *testing.T) {
	form := readForm(t, []part{
		{name: "photo10", data: []byte("j")},
		{name: "avatar", data: []byte("x")},
		{name: "photo2", data: []byte("b")},
		{name: "photo", data: []byte("a")},
		{name: "photos", data: []byte("x")},
	})

	var names []string
	for _, fh := range PhotoFiles(form) {
		names = append(names, fh.Filename)
	}
	assert.Equal(t, []string{"photo.jpg", "photo2.jpg", "photo10.jpg"}, names)
	assert.Empty(t, PhotoFiles(nil))
}

func TestBufferPhotos(t *testing.T) {
	form := readForm(t, []part{
		{name: "photo0", data: []byte("first")},
		{name: "photo1", data: []byte("second")},
	})

	photos, err := BufferPhotos(context.Background(), PhotoFiles(form), 10)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, []byte("first"), photos[0].Data)
	assert.Equal(t, []byte("second"), photos[1].Data)
	assert.NotEmpty(t, photos[0].ContentType)
}

func TestBufferPhotosRejectsOversizedFile(t *testing.T) {
	form := readForm(t, []part{
		{name: "photo0", data: []byte("ok")},
		{name: "photo1", data: bytes.Repeat([]byte("x"), 64)},
		{name: "photo2", data: []byte("ok")},
	})

	photos, err := BufferPhotos(context.Background(), PhotoFiles(form), 16)
	assert.Nil(t, photos)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPayloadTooLarge))
}

func TestBufferPhotosExactLimit(t *testing.T) {
	form := readForm(t, []part{{name: "photo", data: bytes.Repeat([]byte("x"), 16)}})

	photos, err := BufferPhotos(context.Background(), PhotoFiles(form), 16)
	require.NoError(t, err)
	assert.Len(t, photos[0].Data, 16)
}
