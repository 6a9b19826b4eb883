package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/storage"
)

// maxBackupSlots bounds the search for a free backup key.
const maxBackupSlots = 10000

// storeRetries is how many times a retryable object store error is retried.
const storeRetries = 3

// storeRetryInterval is the first backoff between store retries.
var storeRetryInterval = 50 * time.Millisecond

// keyedMutex serializes read-modify-write sequences on one object key.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// writeArchivalBackup stores archived in the first unused numbered slot for
// (kind, id), starting at 1. Existing slots are never overwritten. Probing
// and writing happen under a per-asset lock so concurrent restores of the
// same id in this process take consecutive slots.
func (o *Orchestrator) writeArchivalBackup(ctx context.Context, kind asset.Kind, id string, archived *asset.ExportData) (string, error) {
	body, err := archived.Encode()
	if err != nil {
		return "", fmt.Errorf("encode archived %s %s: %w", kind, id, err)
	}

	unlock := o.locks.lock(asset.ArchivedKey(kind, id))
	defer unlock()

	for n := 1; n <= maxBackupSlots; n++ {
		key := asset.PreviousArchiveKey(kind, id, n)
		taken, err := o.exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check backup slot %d: %w", n, err)
		}
		if taken {
			continue
		}
		if err := o.put(ctx, key, body); err != nil {
			return "", fmt.Errorf("write backup slot %d: %w", n, err)
		}
		return key, nil
	}
	return "", fmt.Errorf("no free backup slot for %s %s after %d attempts", kind, id, maxBackupSlots)
}

// backupExisting copies the live asset at targetID to a timestamped backup
// before it is overwritten. The active copy in the object store is used when
// present; otherwise the platform is described. A taken key moves the stamp
// forward one millisecond, so backups of the same target never replace each
// other.
func (o *Orchestrator) backupExisting(ctx context.Context, kind asset.Kind, targetID string, strategy Strategy) (string, error) {
	body, err := o.activeDocument(ctx, kind, targetID)
	if err != nil {
		return "", err
	}
	if body == nil {
		d, ok := strategy.(Describer)
		if !ok {
			return "", fmt.Errorf("no active copy of %s %s and the platform cannot describe it", kind, targetID)
		}
		raw, err := d.Describe(ctx, targetID)
		if err != nil {
			return "", fmt.Errorf("describe %s %s: %w", kind, targetID, err)
		}
		live := asset.NewExportData(kind, targetID)
		live.Set(asset.SnapshotDescribe, raw, o.now())
		if body, err = live.Encode(); err != nil {
			return "", fmt.Errorf("encode live %s %s: %w", kind, targetID, err)
		}
	}

	unlock := o.locks.lock(asset.ActiveKey(kind, targetID))
	defer unlock()

	at := o.now()
	for range maxBackupSlots {
		key := asset.BackupKey(kind, targetID, at)
		taken, err := o.exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check backup %s: %w", key, err)
		}
		if taken {
			at = at.Add(time.Millisecond)
			continue
		}
		if err := o.put(ctx, key, body); err != nil {
			return "", fmt.Errorf("write backup %s: %w", key, err)
		}
		return key, nil
	}
	return "", fmt.Errorf("no free backup key for %s %s after %d attempts", kind, targetID, maxBackupSlots)
}

// exists checks a key, retrying store errors marked retryable.
func (o *Orchestrator) exists(ctx context.Context, key string) (bool, error) {
	var taken bool
	err := o.retryStore(ctx, "exists", key, func() error {
		var err error
		taken, err = o.store.Exists(ctx, o.bucket, key)
		return err
	})
	return taken, err
}

// put writes a key, retrying store errors marked retryable.
func (o *Orchestrator) put(ctx context.Context, key string, body []byte) error {
	return o.retryStore(ctx, "put", key, func() error {
		return o.store.Put(ctx, o.bucket, key, body)
	})
}

func (o *Orchestrator) retryStore(ctx context.Context, op, key string, fn func() error) error {
	operation := func() error {
		err := fn()
		if err != nil && !storage.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = storeRetryInterval
	backoffWithMaxRetry := backoff.WithContext(backoff.WithMaxRetries(b, storeRetries), ctx)

	return backoff.RetryNotify(operation, backoffWithMaxRetry, func(err error, t time.Duration) {
		slog.Warn("retrying object store call", "op", op, "key", key, "in", t, "error", err)
	})
}

// activeDocument returns the stored active document for an asset, or nil
// when none exists.
func (o *Orchestrator) activeDocument(ctx context.Context, kind asset.Kind, id string) ([]byte, error) {
	raw, err := o.store.Get(ctx, o.bucket, asset.ActiveKey(kind, id))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active %s %s: %w", kind, id, err)
	}
	if !kind.IsCollection() {
		return raw, nil
	}
	entry := gjson.GetBytes(raw, id)
	if !entry.IsObject() {
		return nil, nil
	}
	return []byte(entry.Raw), nil
}
