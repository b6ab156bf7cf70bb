package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// retainRemote is how many uploaded archives survive remote rotation
const retainRemote = 30

// CloudBackupService archives local backup sets and uploads them to S3.
// A nil S3 client makes every cloud operation a no-op, so deployments
// without a bucket still get local backups.
type CloudBackupService struct {
	s3     *S3Client
	backup *BackupService
	log    zerolog.Logger
}

// NewCloudBackupService creates a new cloud backup service
func NewCloudBackupService(s3 *S3Client, backup *BackupService, log zerolog.Logger) *CloudBackupService {
	return &CloudBackupService{
		s3:     s3,
		backup: backup,
		log:    log.With().Str("service", "cloud_backup").Logger(),
	}
}

// Enabled reports whether uploads are configured
func (s *CloudBackupService) Enabled() bool {
	return s.s3 != nil
}

// CreateAndUpload runs a local backup, archives the set and uploads it.
// Returns the backup result and whether the upload happened.
func (s *CloudBackupService) CreateAndUpload(ctx context.Context) (*BackupResult, bool, error) {
	result, err := s.backup.Run()
	if err != nil {
		return nil, false, err
	}

	if s.s3 == nil {
		return result, false, nil
	}

	archivePath := result.Dir + ".tar.gz"
	if err := archiveDir(result.Dir, archivePath); err != nil {
		return result, false, fmt.Errorf("failed to archive backup set: %w", err)
	}
	defer os.Remove(archivePath)

	key := fmt.Sprintf("vault_%s.tar.gz", time.Now().UTC().Format("2006-01-02_150405"))
	if err := s.s3.UploadFile(ctx, archivePath, key); err != nil {
		return result, false, err
	}

	if err := s.rotateRemote(ctx); err != nil {
		s.log.Error().Err(err).Msg("Remote rotation failed")
	}

	return result, true, nil
}

// rotateRemote deletes the oldest remote archives beyond the retention count
func (s *CloudBackupService) rotateRemote(ctx context.Context) error {
	backups, err := s.s3.ListBackups(ctx)
	if err != nil {
		return err
	}
	for _, b := range backups[min(len(backups), retainRemote):] {
		if err := s.s3.DeleteBackup(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete remote backup")
			continue
		}
		s.log.Debug().Str("key", b.Key).Msg("Removed remote backup")
	}
	return nil
}

// archiveDir writes dir's regular files into a gzipped tarball
func archiveDir(dir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	defer gzw.Close()
	tw := tar.NewWriter(gzw)
	defer tw.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	return nil
}
