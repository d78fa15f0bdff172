package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/maauso/soundset/internal/storage"
)

// Location tells where a published report ended up.
type Location struct {
	// Path is the local file the report was saved to.
	Path string
	// URL is the S3 object URL, empty when the report was not uploaded.
	URL string
}

// FileName returns the artifact name for the report in the given format.
func (r *Report) FileName(format Format) string {
	return "report-" + r.RunID + format.Extension()
}

// Publish encodes r and saves it through store. When upload is true the
// saved file is read back and pushed to S3 under the report's file name.
// Cancellation of ctx does not stop publishing: an interrupted run still
// gets its report.
func Publish(ctx context.Context, store storage.Storage, r *Report, format Format, upload bool) (Location, error) {
	ctx = context.WithoutCancel(ctx)

	var buf bytes.Buffer
	if err := r.Encode(&buf, format); err != nil {
		return Location{}, fmt.Errorf("encode report: %w", err)
	}
	name := r.FileName(format)

	var loc Location
	path, err := store.Save(ctx, name, &buf)
	if err != nil {
		return loc, fmt.Errorf("save report: %w", err)
	}
	loc.Path = path

	if !upload {
		return loc, nil
	}
	saved, err := store.Load(ctx, path)
	if err != nil {
		return loc, fmt.Errorf("reopen report: %w", err)
	}
	defer func() { _ = saved.Close() }()

	url, err := store.UploadToS3(ctx, name, saved)
	if err != nil {
		return loc, fmt.Errorf("upload report: %w", err)
	}
	loc.URL = url
	return loc, nil
}
