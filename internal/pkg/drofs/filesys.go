package drofs

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FileSystemType is an identifier for supported FileSystems
type FileSystemType int

// Identifiers for supported FileSystemTypes
const (
	Local FileSystemType = iota
	GCS
	S3
)

// FileSystem provides the storage backend for training pipelines.
// Input data is read from a file system, and trained model artifacts are
// written back to one. This is abstracted to allow remote object stores
// like GCS and S3 to be used interchangeably with local disk.
type FileSystem interface {
	ListFiles(pathGlob string) ([]FileInfo, error)
	Stat(filePath string) (FileInfo, error)
	OpenReader(filePath string, startAt int64) (io.ReadCloser, error)
	OpenWriter(filePath string) (io.WriteCloser, error)
	Init() error
}

// FileInfo provides information about a file
type FileInfo struct {
	Name string // file path
	Size int64  // file size in bytes
}

// InferFilesystem initializes a filesystem by inspecting the scheme of a
// path. For example, a path prefixed with "gs://" will initialize a GCS
// filesystem.
func InferFilesystem(location string) FileSystem {
	var fsType FileSystemType
	if strings.HasPrefix(location, "gs://") {
		fsType = GCS
	} else if strings.HasPrefix(location, "s3://") {
		fsType = S3
	} else {
		fsType = Local
	}

	return InitFilesystem(fsType)
}

// InitFilesystem intializes a filesystem of the given type
func InitFilesystem(fsType FileSystemType) FileSystem {
	var fs FileSystem
	switch fsType {
	case Local:
		fs = &LocalFileSystem{}
	case GCS:
		fs = &GCSBackend{}
	case S3:
		fs = &S3Backend{}
	}

	if err := fs.Init(); err != nil {
		log.Fatalf("Failed to initialize filesystem: %s", err)
	}
	return fs
}
