package kernel

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/oracipher/kernel/logging"
	"github.com/oracipher/kernel/utils"
	"go.uber.org/zap"
)

// remoteBundleSync optionally mirrors plugin bundles from an OSS prefix
// down to the local plugin root before a scan, letting a fleet of kernels
// share one canonical bundle source (spec.md S9 "Enrichment ideas" lists
// out-of-process bundle distribution). Grounded on the teacher's
// media/storage.OSSProvider, reduced to the read side only — this kernel
// never writes plugin bundles back to OSS.
type remoteBundleSync struct {
	bucket *oss.Bucket
	prefix string
	logger logging.Logger
}

// newRemoteBundleSync opens bucketName on endpoint and scopes every list
// and download to objects under prefix (e.g. "plugins/").
func newRemoteBundleSync(endpoint, accessKeyID, accessKeySecret, bucketName, prefix string, logger logging.Logger) (*remoteBundleSync, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", bucketName, err)
	}
	return &remoteBundleSync{bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Sync lists every object under s.prefix and writes it beneath localRoot,
// preserving the bundle/file path structure the scanner expects. A single
// object's download failure is logged and skipped, never aborting the
// rest of the mirror (same posture as the manifest scanner's own
// skip-and-continue rule).
func (s *remoteBundleSync) Sync(localRoot string) error {
	marker := ""
	for {
		resp, err := s.bucket.ListObjects(oss.Prefix(s.prefix), oss.Marker(marker))
		if err != nil {
			return fmt.Errorf("oss list objects: %w", err)
		}

		for _, obj := range resp.Objects {
			rel := strings.TrimPrefix(obj.Key, s.prefix)
			rel = strings.TrimPrefix(rel, "/")
			if rel == "" {
				continue
			}
			if err := s.downloadOne(obj.Key, filepath.Join(localRoot, rel)); err != nil {
				s.logger.Warn("bundle mirror skipped an object",
					zap.String("key", obj.Key), zap.Error(err))
			}
		}

		if !resp.IsTruncated {
			return nil
		}
		marker = resp.NextMarker
	}
}

func (s *remoteBundleSync) downloadOne(key, destPath string) error {
	if err := utils.CreateDir(filepath.Dir(destPath)); err != nil {
		return err
	}
	body, err := s.bucket.GetObject(key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := utils.CreateFile(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		os.Remove(destPath)
		return err
	}
	return nil
}
