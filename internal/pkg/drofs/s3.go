package drofs

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Backend implements the FileSystem interface for Amazon S3
type S3Backend struct {
	client *s3.S3
}

// ListFiles lists files that match the given "s3://bucket/key" glob.
func (s *S3Backend) ListFiles(pathGlob string) ([]FileInfo, error) {
	bucket, keyGlob, err := parseRemotePath("s3", pathGlob)
	if err != nil {
		return nil, err
	}

	s3Files := make([]FileInfo, 0)
	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(globPrefix(keyGlob)),
	}
	err = s.client.ListObjectsPages(params,
		func(page *s3.ListObjectsOutput, _ bool) bool {
			for _, object := range page.Contents {
				if !globMatch(keyGlob, *object.Key) {
					continue
				}
				s3Files = append(s3Files, FileInfo{
					Name: fmt.Sprintf("s3://%s/%s", bucket, *object.Key),
					Size: *object.Size,
				})
			}
			return true
		})

	return s3Files, err
}

// OpenReader opens a reader to the object at filePath, seeked to "startAt"
// bytes into the object.
func (s *S3Backend) OpenReader(filePath string, startAt int64) (io.ReadCloser, error) {
	bucket, key, err := parseRemotePath("s3", filePath)
	if err != nil {
		return nil, err
	}

	fInfo, err := s.Stat(filePath)
	if err != nil {
		return nil, err
	}

	reader := &objectReader{
		fetch:     s.fetchChunk(bucket, key),
		store:     "s3",
		path:      filePath,
		offset:    startAt,
		chunkSize: remoteChunkSize,
		totalSize: fInfo.Size,
	}
	return reader, nil
}

func (s *S3Backend) fetchChunk(bucket, key string) fetchFunc {
	return func(offset, size int64) ([]byte, error) {
		params := &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+size-1)),
		}
		output, err := s.client.GetObject(params)
		if err != nil {
			return nil, err
		}
		defer output.Body.Close()
		return io.ReadAll(output.Body)
	}
}

// OpenWriter opens a writer to the object at filePath. The object is
// uploaded in a single PutObject call when the writer is closed.
func (s *S3Backend) OpenWriter(filePath string) (io.WriteCloser, error) {
	bucket, key, err := parseRemotePath("s3", filePath)
	if err != nil {
		return nil, err
	}
	return newS3Writer(s.client, bucket, key), nil
}

// Stat returns information about the object at filePath.
func (s *S3Backend) Stat(filePath string) (FileInfo, error) {
	bucket, key, err := parseRemotePath("s3", filePath)
	if err != nil {
		return FileInfo{}, err
	}

	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	}
	result, err := s.client.ListObjects(params)
	if err != nil {
		return FileInfo{}, err
	}

	for _, object := range result.Contents {
		if *object.Key == key {
			return FileInfo{
				Name: filePath,
				Size: *object.Size,
			}, nil
		}
	}

	return FileInfo{}, fmt.Errorf("no file at %s", filePath)
}

// Init initializes the S3Backend. Credentials are resolved by the AWS SDK
// from the environment or shared config.
func (s *S3Backend) Init() error {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return err
	}
	s.client = s3.New(sess)
	return nil
}
