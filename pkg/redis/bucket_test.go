package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketKey(t *testing.T) {
	five := 5.0
	jitter := 5.00003
	tests := []struct {
		name   string
		fk     int64
		bucket *float64
		want   string
	}{
		{name: "bucket", fk: 12, bucket: &five, want: "timepoint:12:5.0000"},
		{name: "four decimals", fk: 12, bucket: &jitter, want: "timepoint:12:5.0000"},
		{name: "null bucket", fk: 7, bucket: nil, want: "timepoint:7:null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketKey(tt.fk, tt.bucket))
		})
	}
}

func TestNewLocker_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "lock:", NewLocker(nil, "").keyPrefix)
	assert.Equal(t, "lims:", NewLocker(nil, "lims:").keyPrefix)
}
