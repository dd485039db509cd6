package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marginwatch/internal/database"
)

type fakeStore struct {
	uploads []string
	objects []types.Object
	deleted []string
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]types.Object, error) {
	return f.objects, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestService(t *testing.T, store ObjectStore, retentionDays int) *BackupService {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "marginwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	return NewBackupService(db.Conn(), store, dir, retentionDays, nil, zerolog.Nop())
}

func TestCreateArchive(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, 30)

	stagingDir := t.TempDir()
	archivePath, archiveName, err := svc.CreateArchive(stagingDir)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(archiveName, backupPrefix))
	assert.True(t, strings.HasSuffix(archiveName, ".tar.gz"))

	// The archive contains the database snapshot and its metadata
	names := tarEntryNames(t, archivePath)
	assert.Contains(t, names, "marginwatch.db")
	assert.Contains(t, names, "backup-metadata.json")
}

func TestCreateAndUpload(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, 30)

	require.NoError(t, svc.CreateAndUpload(context.Background()))
	require.Len(t, store.uploads, 1)
	assert.True(t, strings.HasPrefix(store.uploads[0], backupPrefix))
}

func TestListBackupsNewestFirst(t *testing.T) {
	store := &fakeStore{objects: []types.Object{
		backupObject("2025-01-01-030000", 100),
		backupObject("2025-03-01-030000", 300),
		backupObject("2025-02-01-030000", 200),
		{Key: aws.String("unrelated.txt")},
	}}
	svc := newTestService(t, store, 30)

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, int64(300), backups[0].SizeBytes)
	assert.Equal(t, int64(200), backups[1].SizeBytes)
	assert.Equal(t, int64(100), backups[2].SizeBytes)
}

func TestRotateKeepsMinimumThree(t *testing.T) {
	// All three are ancient but still kept
	store := &fakeStore{objects: []types.Object{
		backupObject("2020-01-01-030000", 1),
		backupObject("2020-01-02-030000", 1),
		backupObject("2020-01-03-030000", 1),
	}}
	svc := newTestService(t, store, 7)

	require.NoError(t, svc.RotateOldBackups(context.Background()))
	assert.Empty(t, store.deleted)
}

func TestRotateDeletesExpiredBeyondMinimum(t *testing.T) {
	recent := time.Now().Add(-time.Hour).Format(timestampLayout)
	store := &fakeStore{objects: []types.Object{
		backupObject(recent, 1),
		backupObject("2020-01-04-030000", 1),
		backupObject("2020-01-03-030000", 1),
		backupObject("2020-01-02-030000", 1),
		backupObject("2020-01-01-030000", 1),
	}}
	svc := newTestService(t, store, 7)

	require.NoError(t, svc.RotateOldBackups(context.Background()))
	assert.Equal(t, []string{
		backupPrefix + "2020-01-02-030000.tar.gz",
		backupPrefix + "2020-01-01-030000.tar.gz",
	}, store.deleted)
}

func TestRotateDisabledRetention(t *testing.T) {
	store := &fakeStore{objects: []types.Object{
		backupObject("2020-01-01-030000", 1),
		backupObject("2020-01-02-030000", 1),
		backupObject("2020-01-03-030000", 1),
		backupObject("2020-01-04-030000", 1),
	}}
	svc := newTestService(t, store, 0)

	require.NoError(t, svc.RotateOldBackups(context.Background()))
	assert.Empty(t, store.deleted)
}

func backupObject(timestamp string, size int64) types.Object {
	return types.Object{
		Key:  aws.String(fmt.Sprintf("%s%s.tar.gz", backupPrefix, timestamp)),
		Size: aws.Int64(size),
	}
}

func tarEntryNames(t *testing.T, archivePath string) []string {
	t.Helper()

	file, err := os.Open(archivePath)
	require.NoError(t, err)
	defer file.Close()

	gz, err := gzip.NewReader(file)
	require.NoError(t, err)
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}
	return names
}
