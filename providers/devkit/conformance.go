package devkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

// ValidateItemConformance checks the fields every normalized item must carry.
func ValidateItemConformance(item core.IntegrationItem) error {
	checks := map[string]string{
		"id":         item.ID,
		"name":       item.Name,
		"icon":       item.Icon,
		"type":       item.Type,
		"created_by": item.CreatedBy,
		"url":        item.URL,
	}
	for field, value := range checks {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("devkit: item %q has empty %s", item.ID, field)
		}
	}
	if item.Metadata == nil {
		return fmt.Errorf("devkit: item %q has nil metadata", item.ID)
	}
	return nil
}

// ValidateKeyValueStoreConformance exercises put, get, overwrite, delete, and
// take (when supported) against store.
func ValidateKeyValueStoreConformance(ctx context.Context, store core.KeyValueStore, key string) error {
	if store == nil {
		return fmt.Errorf("devkit: key-value store is required")
	}
	if _, found, err := store.Get(ctx, key); err != nil {
		return err
	} else if found {
		return fmt.Errorf("devkit: expected %q to be absent before put", key)
	}
	if err := store.Put(ctx, key, []byte("v1"), time.Minute); err != nil {
		return err
	}
	if err := store.Put(ctx, key, []byte("v2"), time.Minute); err != nil {
		return err
	}
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found || string(value) != "v2" {
		return fmt.Errorf("devkit: expected overwritten value v2, got %q found=%v", value, found)
	}
	if err := store.Delete(ctx, key); err != nil {
		return err
	}
	if _, found, err := store.Get(ctx, key); err != nil {
		return err
	} else if found {
		return fmt.Errorf("devkit: expected %q to be absent after delete", key)
	}
	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("devkit: deleting a missing key must succeed: %w", err)
	}

	taker, ok := store.(core.KeyTaker)
	if !ok {
		return nil
	}
	if err := store.Put(ctx, key, []byte("once"), time.Minute); err != nil {
		return err
	}
	value, found, err = taker.Take(ctx, key)
	if err != nil {
		return err
	}
	if !found || string(value) != "once" {
		return fmt.Errorf("devkit: expected take to return once, got %q found=%v", value, found)
	}
	if _, found, err := taker.Take(ctx, key); err != nil {
		return err
	} else if found {
		return fmt.Errorf("devkit: second take of %q must miss", key)
	}
	return nil
}

// ValidateKeyLockerConformance checks exclusive acquisition and release.
func ValidateKeyLockerConformance(ctx context.Context, locker core.KeyLocker, key string) error {
	if locker == nil {
		return fmt.Errorf("devkit: key locker is required")
	}
	handle, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		return err
	}
	if _, err := locker.Acquire(ctx, key, time.Minute); err == nil {
		return fmt.Errorf("devkit: second acquire of %q must fail while held", key)
	}
	if err := handle.Unlock(ctx); err != nil {
		return err
	}
	again, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		return fmt.Errorf("devkit: reacquire after unlock failed: %w", err)
	}
	return again.Unlock(ctx)
}
