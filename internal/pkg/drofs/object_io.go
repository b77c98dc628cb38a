package drofs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/mattetti/filebuffer"
)

// fetchFunc fetches "size" bytes of an object starting at "offset".
type fetchFunc func(offset, size int64) ([]byte, error)

// objectReader reads an object-store object in fixed-size chunks. Fetched
// chunks pass through the shared chunkCache so that a re-read of the same
// input does not hit the remote store again.
type objectReader struct {
	fetch     fetchFunc
	store     string
	path      string
	offset    int64
	chunkSize int64
	totalSize int64

	chunk    []byte
	chunkPos int
}

func (o *objectReader) loadNextChunk() error {
	size := min64(o.chunkSize, o.totalSize-o.offset)

	// Chunks are cached on their aligned offset, so a reader seeked into
	// the middle of a chunk still shares cache entries with other readers.
	alignedOffset := (o.offset / o.chunkSize) * o.chunkSize
	key := chunkCacheKey(o.store, o.path, alignedOffset)

	var chunk []byte
	if cached, ok := chunkCache.Get(key); ok {
		chunk = cached.([]byte)
	} else {
		fetchSize := min64(o.chunkSize, o.totalSize-alignedOffset)
		fetched, err := o.fetch(alignedOffset, fetchSize)
		if err != nil {
			return err
		}
		chunkCache.Add(key, fetched)
		chunk = fetched
	}

	o.chunk = chunk[o.offset-alignedOffset:]
	o.chunkPos = 0
	o.offset += size
	return nil
}

func (o *objectReader) Read(b []byte) (n int, err error) {
	if o.chunk == nil {
		if o.offset >= o.totalSize {
			return 0, io.EOF
		}
		if err := o.loadNextChunk(); err != nil {
			return 0, err
		}
	}

	n = copy(b, o.chunk[o.chunkPos:])
	o.chunkPos += n
	if o.chunkPos == len(o.chunk) {
		o.chunk = nil
	}
	if n == 0 && o.offset >= o.totalSize {
		return 0, io.EOF
	}
	return n, nil
}

func (o *objectReader) Close() error {
	o.chunk = nil
	return nil
}

// s3Writer buffers written bytes in memory and uploads them as a single
// object when closed.
type s3Writer struct {
	client *s3.S3
	bucket string
	key    string
	buf    *filebuffer.Buffer
}

func newS3Writer(client *s3.S3, bucket, key string) *s3Writer {
	return &s3Writer{
		client: client,
		bucket: bucket,
		key:    key,
		buf:    filebuffer.New(nil),
	}
}

func (s *s3Writer) Write(p []byte) (n int, err error) {
	return s.buf.Write(p)
}

func (s *s3Writer) Close() error {
	s.buf.Seek(0, io.SeekStart)
	input := &s3.PutObjectInput{
		Body:   s.buf,
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}
	_, err := s.client.PutObject(input)
	return err
}

// gcsWriter buffers written bytes in memory and uploads them as a single
// object when closed.
type gcsWriter struct {
	object *storage.ObjectHandle
	buf    *filebuffer.Buffer
}

func newGCSWriter(object *storage.ObjectHandle) *gcsWriter {
	return &gcsWriter{
		object: object,
		buf:    filebuffer.New(nil),
	}
}

func (g *gcsWriter) Write(p []byte) (n int, err error) {
	return g.buf.Write(p)
}

func (g *gcsWriter) Close() error {
	g.buf.Seek(0, io.SeekStart)
	writer := g.object.NewWriter(context.Background())
	if _, err := io.Copy(writer, g.buf); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
