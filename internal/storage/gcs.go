package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// GCSBaseURL is the Cloud Storage JSON API host.
const GCSBaseURL = "https://storage.googleapis.com"

// GCSURI formats gs://bucket/object.
func GCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimLeft(object, "/")
}

// SplitGCSURI splits gs://bucket/object. A URL-encoded id is decoded first.
func SplitGCSURI(uri string) (bucket, object string, ok bool) {
	return splitURI(uri, "gs://")
}

// GCSUploadURL is the simple-media upload endpoint for bucket/object.
func GCSUploadURL(base, bucket, object string) string {
	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", object)
	return fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", strings.TrimRight(base, "/"), url.PathEscape(bucket), q.Encode())
}

// GCSMediaURL downloads bucket/object.
func GCSMediaURL(base, bucket, object string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", strings.TrimRight(base, "/"), url.PathEscape(bucket), url.PathEscape(object))
}

// Dir returns the URI up to and including its last slash.
func Dir(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[:i+1]
	}
	return ""
}
