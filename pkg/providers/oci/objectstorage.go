package oci

import (
	"context"
	"strings"
	"sync"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// bucketDeleter empties a bucket before deleting it: every object is removed,
// uncommitted multipart uploads are aborted, then the bucket itself goes.
// The object storage namespace is resolved once and cached for the session.
type bucketDeleter struct {
	client objectstorage.ObjectStorageClient
	logger zerolog.Logger

	mu        sync.Mutex
	namespace string
}

var _ engine.Deleter = (*bucketDeleter)(nil)

func (d *bucketDeleter) Delete(ctx context.Context, record *engine.ResourceRecord) error {
	namespace, err := d.resolveNamespace(ctx)
	if err != nil {
		return err
	}

	bucket := bucketName(record)

	if err := d.deleteObjects(ctx, namespace, bucket); err != nil {
		return err
	}
	if err := d.abortUploads(ctx, namespace, bucket); err != nil {
		return err
	}

	_, err = d.client.DeleteBucket(ctx, objectstorage.DeleteBucketRequest{
		NamespaceName: common.String(namespace),
		BucketName:    common.String(bucket),
	})
	return mapError(err, "delete bucket")
}

func (d *bucketDeleter) resolveNamespace(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.namespace != "" {
		return d.namespace, nil
	}

	resp, err := d.client.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
	if err != nil {
		return "", mapError(err, "get namespace")
	}
	if resp.Value == nil || *resp.Value == "" {
		return "", engine.NewPermanentError("object storage namespace is empty", nil).
			WithOperation("get namespace")
	}

	d.namespace = *resp.Value
	return d.namespace, nil
}

// deleteObjects drains the bucket. Listing restarts from the beginning after
// each page of deletes, so the loop terminates once the bucket is empty or a
// delete fails.
func (d *bucketDeleter) deleteObjects(ctx context.Context, namespace, bucket string) error {
	deleted := 0
	for {
		resp, err := d.client.ListObjects(ctx, objectstorage.ListObjectsRequest{
			NamespaceName: common.String(namespace),
			BucketName:    common.String(bucket),
			Fields:        common.String("name"),
			Limit:         common.Int(searchPageSize),
		})
		if err != nil {
			if merr := mapError(err, "list objects"); !engine.IsAlreadyGone(merr) {
				return merr
			}
			return nil
		}
		if len(resp.Objects) == 0 {
			break
		}

		for _, obj := range resp.Objects {
			if obj.Name == nil {
				continue
			}
			_, err := d.client.DeleteObject(ctx, objectstorage.DeleteObjectRequest{
				NamespaceName: common.String(namespace),
				BucketName:    common.String(bucket),
				ObjectName:    obj.Name,
			})
			if err != nil {
				if merr := mapError(err, "delete object"); !engine.IsAlreadyGone(merr) {
					return merr
				}
			}
			deleted++
		}
	}

	if deleted > 0 {
		d.logger.Debug().Str("bucket", bucket).Int("objects", deleted).Msg("emptied bucket")
	}
	return nil
}

// abortUploads aborts uncommitted multipart uploads; their parts otherwise
// keep the bucket non-empty without showing up in an object listing.
func (d *bucketDeleter) abortUploads(ctx context.Context, namespace, bucket string) error {
	var page *string
	for {
		resp, err := d.client.ListMultipartUploads(ctx, objectstorage.ListMultipartUploadsRequest{
			NamespaceName: common.String(namespace),
			BucketName:    common.String(bucket),
			Limit:         common.Int(searchPageSize),
			Page:          page,
		})
		if err != nil {
			if merr := mapError(err, "list multipart uploads"); !engine.IsAlreadyGone(merr) {
				return merr
			}
			return nil
		}

		for _, upload := range resp.Items {
			if upload.Object == nil || upload.UploadId == nil {
				continue
			}
			_, err := d.client.AbortMultipartUpload(ctx, objectstorage.AbortMultipartUploadRequest{
				NamespaceName: common.String(namespace),
				BucketName:    common.String(bucket),
				ObjectName:    upload.Object,
				UploadId:      upload.UploadId,
			})
			if err != nil {
				if merr := mapError(err, "abort multipart upload"); !engine.IsAlreadyGone(merr) {
					return merr
				}
			}
		}

		if resp.OpcNextPage == nil || *resp.OpcNextPage == "" {
			return nil
		}
		page = resp.OpcNextPage
	}
}

// bucketName returns the name the object storage API expects. The search
// service identifies buckets by name rather than OCID; if the index ever
// hands back an OCID, the display name is the better bet.
func bucketName(record *engine.ResourceRecord) string {
	if strings.HasPrefix(record.Identifier, "ocid1.") && record.DisplayName != "" {
		return record.DisplayName
	}
	return record.Identifier
}

func (c *catalog) objectStorageDescriptors() []*engine.TypeDescriptor {
	return []*engine.TypeDescriptor{
		{
			TypeName: TypeBucket,
			Deleter: &bucketDeleter{
				client: c.clients.objectStorage,
				logger: c.logger,
			},
		},
	}
}
