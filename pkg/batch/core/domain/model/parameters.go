package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// maskedParameterKeys are parameter names whose values are hidden by String.
var maskedParameterKeys = []string{"password", "secret", "api_key", "token"}

// JobParameters identify a JobInstance. Two launches with equal parameters
// address the same instance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters returns empty parameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put sets a parameter value.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get returns a parameter value or nil.
func (jp JobParameters) Get(key string) interface{} {
	if jp.Params == nil {
		return nil
	}
	return jp.Params[key]
}

// GetString returns a string parameter.
func (jp JobParameters) GetString(key string) (string, bool) {
	s, ok := jp.Get(key).(string)
	return s, ok
}

// GetInt64 returns an integer parameter. Numbers that went through JSON
// (float64, json.Number) and numeric strings are accepted.
func (jp JobParameters) GetInt64(key string) (int64, bool) {
	switch v := jp.Get(key).(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Copy returns a shallow copy whose map can be modified independently.
func (jp JobParameters) Copy() JobParameters {
	c := NewJobParameters()
	for k, v := range jp.Params {
		c.Params[k] = v
	}
	return c
}

// Hash returns a stable sha256 of the parameters, independent of key order.
func (jp JobParameters) Hash() (string, error) {
	canonical, err := jp.ToJSON()
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "failed to serialize job parameters for hashing", err)
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// ToJSON serializes the parameters with sorted keys.
// encoding/json already sorts map keys, so the output is canonical.
func (jp JobParameters) ToJSON() (string, error) {
	if len(jp.Params) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(jp.Params)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseJobParameters is the inverse of ToJSON.
func ParseJobParameters(s string) (JobParameters, error) {
	jp := NewJobParameters()
	if strings.TrimSpace(s) == "" {
		return jp, nil
	}
	if err := json.Unmarshal([]byte(s), &jp.Params); err != nil {
		return jp, fmt.Errorf("failed to unmarshal job parameters: %w", err)
	}
	return jp, nil
}

// String renders the parameters with sensitive values masked.
func (jp JobParameters) String() string {
	keys := make([]string, 0, len(jp.Params))
	for k := range jp.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		v := jp.Params[k]
		if isMasked(k) {
			v = "******"
		}
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	sb.WriteString("}")
	return sb.String()
}

func isMasked(key string) bool {
	lk := strings.ToLower(key)
	for _, m := range maskedParameterKeys {
		if strings.Contains(lk, m) {
			return true
		}
	}
	return false
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
