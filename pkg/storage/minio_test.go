package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerforge-go/internal/config"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "resumes/abc123/cv.pdf", ObjectName("abc123", "cv.pdf"))
	assert.Equal(t, "resumes/abc123/cv.pdf", ObjectName("abc123", "../../etc/cv.pdf"))
}

func TestPresignedURLIsLocal(t *testing.T) {
	client, err := NewMinIOClient(config.MinIOConfig{
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Region:          "us-east-1",
	})
	require.NoError(t, err)

	s := NewResumeStorage(client, "resumes")
	u, err := s.PresignedURL(context.Background(), "resumes/abc/cv.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, u, "http://localhost:9000/resumes/resumes/abc/cv.pdf")
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=3600")
}
