package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by durable backends that store the snapshot as one JSON
// payload per entity collection.
const (
	BucketUsers       = "users"
	BucketCredentials = "credentials"
	BucketParcels     = "parcels"
	BucketCycles      = "cycles"
	BucketAdvisories  = "advisories"
)

// Buckets lists every snapshot bucket in the order they are written.
var Buckets = []string{BucketUsers, BucketCredentials, BucketParcels, BucketCycles, BucketAdvisories}

func (s *Snapshot) target(bucket string) (any, bool) {
	switch bucket {
	case BucketUsers:
		return &s.Users, true
	case BucketCredentials:
		return &s.Credentials, true
	case BucketParcels:
		return &s.Parcels, true
	case BucketCycles:
		return &s.Cycles, true
	case BucketAdvisories:
		return &s.Advisories, true
	}
	return nil, false
}

// EncodeBuckets marshals each snapshot bucket to JSON.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		target, _ := s.target(bucket)
		data, err := json.Marshal(target)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket unmarshals one bucket payload into the snapshot. Unknown
// buckets are ignored so older databases keep loading.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	target, ok := s.target(bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
