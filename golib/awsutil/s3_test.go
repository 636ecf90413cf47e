package awsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURI(t *testing.T) {
	u, err := ValidateURI("s3://sara-data/grid_clamp/train/episode_1.npy")
	require.NoError(t, err)
	assert.Equal(t, "sara-data", u.Host)

	_, err = ValidateURI("/local/episode_1.npy")
	assert.Error(t, err)

	_, err = ValidateURI("s3:///no-bucket")
	assert.Error(t, err)
}

func TestSplitURI(t *testing.T) {
	bucket, key, err := SplitURI("s3://sara-data/grid_clamp/train/")
	require.NoError(t, err)
	assert.Equal(t, "sara-data", bucket)
	assert.Equal(t, "grid_clamp/train/", key)

	assert.True(t, IsS3URI("s3://b/k"))
	assert.False(t, IsS3URI("data_filtered_filtered/train"))
}

func TestS3ListObjects(t *testing.T) {
	if !awsTests {
		t.Skip(`Use "go test -aws" to run tests that rely on AWS connectivity`)
	}

	region, err := BucketRegion("sara-data")
	require.NoError(t, err)
	keys, err := S3ListObjects(region, "sara-data", "grid_clamp/train/")
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
}
