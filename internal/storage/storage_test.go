package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nghyane/llm-adapter/internal/storage/storagetest"
)

func newTestS3(t *testing.T) (*S3, *storagetest.S3) {
	t.Helper()
	fake, srv := storagetest.NewS3(t)
	client, err := NewS3(S3Config{
		Endpoint:    srv.URL,
		Region:      "us-east-1",
		Credentials: aws.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		PathStyle:   true,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return client, fake
}

func TestS3PutAndGet(t *testing.T) {
	client, fake := newTestS3(t)
	ctx := context.Background()

	uri, err := client.Put(ctx, "bucket", "batches/input.jsonl", []byte(`{"a":1}`+"\n"), "application/jsonl")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if uri != "s3://bucket/batches/input.jsonl" {
		t.Errorf("uri = %q", uri)
	}
	stored, contentType, _ := fake.Object("bucket/batches/input.jsonl")
	if string(stored) != `{"a":1}`+"\n" {
		t.Errorf("stored = %q", stored)
	}
	if contentType != "application/jsonl" {
		t.Errorf("content type = %q", contentType)
	}
	if auth := fake.Authorizations(); !strings.HasPrefix(auth[0], "AWS4-HMAC-SHA256 Credential=AKIA/") {
		t.Errorf("request not signed: %q", auth[0])
	}

	data, err := client.Get(ctx, "bucket", "batches/input.jsonl")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"a":1}`+"\n" {
		t.Errorf("Get = %q", data)
	}
}

func TestNewS3RejectsBadEndpoints(t *testing.T) {
	for _, endpoint := range []string{"", "ftp://host", "http://"} {
		if _, err := NewS3(S3Config{Endpoint: endpoint, Region: "us-east-1"}); err == nil {
			t.Errorf("endpoint %q accepted", endpoint)
		}
	}
}

func TestSplitURIs(t *testing.T) {
	cases := []struct {
		split  func(string) (string, string, bool)
		in     string
		bucket string
		key    string
		ok     bool
	}{
		{SplitS3URI, "s3://bucket/a/b.jsonl", "bucket", "a/b.jsonl", true},
		{SplitS3URI, "s3%3A%2F%2Fbucket%2Ftrain.jsonl", "bucket", "train.jsonl", true},
		{SplitS3URI, "gs://bucket/a", "", "", false},
		{SplitS3URI, "s3://bucket", "", "", false},
		{SplitGCSURI, "gs://b/out/predictions.jsonl", "b", "out/predictions.jsonl", true},
		{SplitGCSURI, "gs:///x", "", "", false},
	}
	for _, tc := range cases {
		bucket, key, ok := tc.split(tc.in)
		if bucket != tc.bucket || key != tc.key || ok != tc.ok {
			t.Errorf("%q: got (%q, %q, %v)", tc.in, bucket, key, ok)
		}
	}
}

func TestGCSURLs(t *testing.T) {
	if got := GCSUploadURL(GCSBaseURL, "bkt", "dir/in file.jsonl"); got != "https://storage.googleapis.com/upload/storage/v1/b/bkt/o?name=dir%2Fin+file.jsonl&uploadType=media" {
		t.Errorf("upload url = %s", got)
	}
	if got := GCSMediaURL("http://x/", "bkt", "dir/f.jsonl"); got != "http://x/storage/v1/b/bkt/o/dir%2Ff.jsonl?alt=media" {
		t.Errorf("media url = %s", got)
	}
	if got := Dir("s3://bucket/train.jsonl"); got != "s3://bucket/" {
		t.Errorf("Dir = %q", got)
	}
}
