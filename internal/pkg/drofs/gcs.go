package drofs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// gcsProject is the GCP project billed for requester-pays buckets. Set via
// SetGCSProject before the backend is initialized.
var gcsProject string

// SetGCSProject configures the GCP project used when accessing GCS.
func SetGCSProject(project string) {
	gcsProject = project
}

// GCSBackend implements the FileSystem interface for Google Cloud Storage
type GCSBackend struct {
	client  *storage.Client
	project string
}

func (g *GCSBackend) bucket(name string) *storage.BucketHandle {
	bucket := g.client.Bucket(name)
	if g.project != "" {
		bucket = bucket.UserProject(g.project)
	}
	return bucket
}

// ListFiles lists objects that match the given "gs://bucket/key" glob.
func (g *GCSBackend) ListFiles(pathGlob string) ([]FileInfo, error) {
	bucket, keyGlob, err := parseRemotePath("gs", pathGlob)
	if err != nil {
		return nil, err
	}

	gcsFiles := make([]FileInfo, 0)
	it := g.bucket(bucket).Objects(context.Background(), &storage.Query{
		Prefix: globPrefix(keyGlob),
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if !globMatch(keyGlob, attrs.Name) {
			continue
		}
		gcsFiles = append(gcsFiles, FileInfo{
			Name: fmt.Sprintf("gs://%s/%s", bucket, attrs.Name),
			Size: attrs.Size,
		})
	}

	return gcsFiles, nil
}

// OpenReader opens a reader to the object at filePath, seeked to "startAt"
// bytes into the object.
func (g *GCSBackend) OpenReader(filePath string, startAt int64) (io.ReadCloser, error) {
	bucket, key, err := parseRemotePath("gs", filePath)
	if err != nil {
		return nil, err
	}

	fInfo, err := g.Stat(filePath)
	if err != nil {
		return nil, err
	}

	object := g.bucket(bucket).Object(key)
	reader := &objectReader{
		fetch: func(offset, size int64) ([]byte, error) {
			rangeReader, err := object.NewRangeReader(context.Background(), offset, size)
			if err != nil {
				return nil, err
			}
			defer rangeReader.Close()
			return io.ReadAll(rangeReader)
		},
		store:     "gs",
		path:      filePath,
		offset:    startAt,
		chunkSize: remoteChunkSize,
		totalSize: fInfo.Size,
	}
	return reader, nil
}

// OpenWriter opens a writer to the object at filePath. The object is
// uploaded when the writer is closed.
func (g *GCSBackend) OpenWriter(filePath string) (io.WriteCloser, error) {
	bucket, key, err := parseRemotePath("gs", filePath)
	if err != nil {
		return nil, err
	}
	return newGCSWriter(g.bucket(bucket).Object(key)), nil
}

// Stat returns information about the object at filePath.
func (g *GCSBackend) Stat(filePath string) (FileInfo, error) {
	bucket, key, err := parseRemotePath("gs", filePath)
	if err != nil {
		return FileInfo{}, err
	}

	attrs, err := g.bucket(bucket).Object(key).Attrs(context.Background())
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name: filePath,
		Size: attrs.Size,
	}, nil
}

// Init initializes the GCSBackend. Credentials are resolved by the cloud
// SDK from the environment (application default credentials).
func (g *GCSBackend) Init() error {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return err
	}
	g.client = client
	g.project = gcsProject
	return nil
}
