package s3blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tc := range cases {
		if got := endpointURL(tc.in, tc.useSSL); got != tc.want {
			t.Fatalf("endpointURL(%q, %v)=%s want=%s", tc.in, tc.useSSL, got, tc.want)
		}
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error without bucket")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "ledger"}); err == nil {
		t.Fatal("expected error without region")
	}
}

func TestNewStoreClampsPartSize(t *testing.T) {
	c, err := New(context.Background(), ClientConfig{
		Bucket:    "ledger",
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		Endpoint:  "localhost:9000",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s := NewStore(c, 1024); s.uploader.PartSize != minPartSize {
		t.Fatalf("part size=%d want=%d", s.uploader.PartSize, minPartSize)
	}
	if s := NewStore(c, 16<<20); s.uploader.PartSize != 16<<20 {
		t.Fatalf("part size=%d want=16MiB", s.uploader.PartSize)
	}
}

// fakeObjects serves a fixed key set, two keys per list page.
type fakeObjects struct {
	keys    []string
	deleted []string
}

func (f *fakeObjects) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matching = append(matching, k)
		}
	}
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range matching {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(matching))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matching))}
	if end < len(matching) {
		out.NextContinuationToken = aws.String(matching[end])
	}
	modified := time.Date(2024, 6, 3, 2, 0, 0, 0, time.FixedZone("x", 3600))
	for _, k := range matching[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(42), LastModified: &modified})
	}
	return out, nil
}

func (f *fakeObjects) has(key string) bool {
	for _, k := range f.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if !f.has(aws.ToString(in.Key)) {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("fecha_evento,ticker"))}, nil
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	switch key := aws.ToString(in.Key); {
	case key == "boom":
		return nil, errors.New("access denied")
	case !f.has(key):
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestStoreReadsAndDeletes(t *testing.T) {
	ctx := context.Background()
	api := &fakeObjects{keys: []string{
		"exports/historial-bitacora-2024-06-01.csv",
		"exports/historial-bitacora-2024-06-02.csv",
		"exports/historial-bitacora-2024-06-03.csv",
		"other/readme.txt",
	}}
	s := &Store{api: api, bucket: "ledger"}

	infos, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 || infos[2].Path != "exports/historial-bitacora-2024-06-03.csv" {
		t.Fatalf("infos=%+v want all three exports across pages", infos)
	}
	if infos[0].Size != 42 || infos[0].LastModified.Location() != time.UTC {
		t.Fatalf("info=%+v", infos[0])
	}

	if ok, err := s.Exists(ctx, "exports/historial-bitacora-2024-06-01.csv"); err != nil || !ok {
		t.Fatalf("exists ok=%v err=%v", ok, err)
	}
	if ok, err := s.Exists(ctx, "exports/missing.csv"); err != nil || ok {
		t.Fatalf("missing ok=%v err=%v", ok, err)
	}
	if _, err := s.Exists(ctx, "boom"); err == nil {
		t.Fatal("expected head error to propagate")
	}

	rc, err := s.Get(ctx, "exports/historial-bitacora-2024-06-02.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "fecha_evento,ticker" {
		t.Fatalf("body=%q", body)
	}
	if _, err := s.Get(ctx, "exports/missing.csv"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing err=%v want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "exports/historial-bitacora-2024-06-01.csv"); err != nil || len(api.deleted) != 1 {
		t.Fatalf("delete err=%v deleted=%v", err, api.deleted)
	}
}
