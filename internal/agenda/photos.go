package agenda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/redmonkez12/agenda-api/internal/apperr"
)

var (
	photoPartName = regexp.MustCompile(`^photo[0-9]*$`)

	errPhotoTooLarge = errors.New("photo exceeds size limit")
	errIntakeAborted = errors.New("photo intake aborted")
)

// Photo is an uploaded image held in memory until it is stored.
type Photo struct {
	Data        []byte
	ContentType string
}

// PhotoFiles returns the file parts of form named photo, photo0, photo1, ...
// ordered by part name.
func PhotoFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}

	names := make([]string, 0, len(form.File))
	for name := range form.File {
		if photoPartName.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	var files []*multipart.FileHeader
	for _, name := range names {
		files = append(files, form.File[name]...)
	}
	return files
}

// BufferPhotos reads every file concurrently, capping each at maxSize bytes.
// The first oversized file flags the whole intake as invalid: readers that
// have not started skip their file and everything already read is dropped.
func BufferPhotos(ctx context.Context, files []*multipart.FileHeader, maxSize int64) ([]Photo, error) {
	photos := make([]Photo, len(files))
	var invalid atomic.Bool

	var g errgroup.Group
	for i, fh := range files {
		g.Go(func() error {
			if invalid.Load() || ctx.Err() != nil {
				return errIntakeAborted
			}
			if fh.Size > maxSize {
				invalid.Store(true)
				return errPhotoTooLarge
			}

			photo, err := readPhoto(fh, maxSize)
			if err != nil {
				if errors.Is(err, errPhotoTooLarge) {
					invalid.Store(true)
				}
				return err
			}
			if invalid.Load() {
				return errIntakeAborted
			}
			photos[i] = photo
			return nil
		})
	}

	err := g.Wait()
	if err == nil && invalid.Load() {
		err = errPhotoTooLarge
	}
	if err != nil {
		clear(photos)
		if invalid.Load() {
			return nil, apperr.PayloadTooLarge(fmt.Sprintf("the maximum allowed file size is %d bytes", maxSize))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperr.Validation("an error occurred while processing the file").WithCause(err)
	}
	return photos, nil
}

func readPhoto(fh *multipart.FileHeader, maxSize int64) (Photo, error) {
	f, err := fh.Open()
	if err != nil {
		return Photo{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return Photo{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > maxSize {
		return Photo{}, errPhotoTooLarge
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return Photo{Data: data, ContentType: contentType}, nil
}

// uploadPhotos stores photos under fresh keys. If any upload fails, the
// ones that succeeded are removed again.
func (e *Engine) uploadPhotos(ctx context.Context, photos []Photo) ([]string, error) {
	if len(photos) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(photos))
	for i := range photos {
		keys[i] = uuid.NewString()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		g.Go(func() error {
			return e.blobs.Put(gctx, keys[i], photo.Data, photo.ContentType)
		})
	}
	if err := g.Wait(); err != nil {
		e.deleteBlobsAsync(ctx, keys)
		return nil, apperr.Conflict("failed to upload photos").WithCause(err)
	}
	return keys, nil
}
