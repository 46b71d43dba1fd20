// Package kvstore holds the per-device key-value store that backs guest tasks,
// the current study plan and the session token. Values are opaque strings,
// usually JSON documents.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("kvstore: key not found")

// Well-known keys.
const (
	KeyStudyPlan          = "studyPlan"
	KeyCompletedSessions  = "completedSessions"
	KeyStudyPlanTimestamp = "studyPlanTimestamp"
	KeyAccessToken        = "access_token"
	KeyGuestSessionID     = "guest_session_id"

	TaskKeyPrefix   = "task_"
	CourseKeyPrefix = "course_"
)

func TaskKey(id string) string        { return TaskKeyPrefix + id }
func CourseKey(id string) string      { return CourseKeyPrefix + id }
func CourseTasksKey(id string) string { return CourseKeyPrefix + id + "_tasks" }

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// GetJSON decodes the JSON value stored under key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
