/*
Copyright © 2019 the GridChunk authors.
This file is part of GridChunk.

GridChunk is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GridChunk is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GridChunk.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// MaxRetries is the number of times a failed upload is retried.
var MaxRetries uint64 = 5

// Upload copies the local file at path to the blob storage location dst,
// which must be in the format 'provider://bucket/key'. Failed uploads are
// retried with exponential backoff.
func Upload(ctx context.Context, path, dst string, log logrus.FieldLogger) error {
	bucketName, key, err := splitBlob(dst)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer bucket.Close()

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	return backoff.RetryNotify(
		func() error { return writeBlob(ctx, bucket, key, path) },
		b,
		func(err error, d time.Duration) {
			if log != nil {
				log.WithFields(logrus.Fields{
					"dst":   dst,
					"retry": d,
				}).Warnf("upload failed: %v", err)
			}
		},
	)
}

// writeBlob copies the file at path to key in bucket.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer f.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: writing %s: %v", key, err)
	}
	if _, err = io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("cloud: writing %s: %v", key, err)
	}
	return w.Close()
}
