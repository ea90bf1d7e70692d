package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
)

const archivePrefix = "profiles/"

// ErrResultNotArchived is returned by Get when no object exists for the job.
var ErrResultNotArchived = errors.New(errors.ErrCodeNotFound, "result not archived")

// ArchiveKey is the object name of a job's result.
func ArchiveKey(jobID string) string {
	return path.Join(archivePrefix, jobID+".json")
}

// Archive reads and writes job.Result documents.
type Archive struct {
	client *MinIOClient
	logger logging.Logger
}

func NewArchive(client *MinIOClient, log logging.Logger) *Archive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Archive{client: client, logger: log}
}

// Put writes res under ArchiveKey(res.JobID) and returns the key.
func (a *Archive) Put(ctx context.Context, res *job.Result) (string, error) {
	if res == nil || res.JobID == "" {
		return "", errors.InvalidParam("result with job id required")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal result")
	}

	key := ArchiveKey(res.JobID)
	opts := minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"job-id": res.JobID},
	}
	if res.Profile != nil {
		opts.UserMetadata["model"] = res.Profile.Meta.Model
	}
	info, err := a.client.client.PutObject(ctx, a.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "archive upload failed").WithDetailf("key=%s", key)
	}
	a.logger.Debug("result archived",
		logging.String("key", key),
		logging.Int64("bytes", info.Size))
	return key, nil
}

// Get loads the archived result of jobID.
func (a *Archive) Get(ctx context.Context, jobID string) (*job.Result, error) {
	key := ArchiveKey(jobID)
	rc, err := a.client.client.GetObject(ctx, a.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrResultNotArchived.WithDetailf("job_id=%s", jobID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageFailure, "archive download failed").WithDetailf("key=%s", key)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageFailure, "archive read failed").WithDetailf("key=%s", key)
	}
	var res job.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "archived result is corrupt").WithDetailf("key=%s", key)
	}
	return &res, nil
}

// Exists reports whether jobID has an archived result.
func (a *Archive) Exists(ctx context.Context, jobID string) (bool, error) {
	_, err := a.client.client.StatObject(ctx, a.client.Bucket(), ArchiveKey(jobID), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorageFailure, "archive stat failed")
}

// Delete removes the archived result; a missing object is not an error.
func (a *Archive) Delete(ctx context.Context, jobID string) error {
	err := a.client.client.RemoveObject(ctx, a.client.Bucket(), ArchiveKey(jobID), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return errors.Wrap(err, errors.ErrCodeStorageFailure, "archive delete failed")
	}
	return nil
}

// DownloadURL returns a presigned GET URL for the archived result.
func (a *Archive) DownloadURL(ctx context.Context, jobID string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	params := url.Values{}
	params.Set("response-content-disposition", "attachment; filename=\""+jobID+".json\"")
	u, err := a.client.client.PresignedGetObject(ctx, a.client.Bucket(), ArchiveKey(jobID), expiry, params)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "presign failed")
	}
	return u.String(), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
