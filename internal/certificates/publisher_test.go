package certificates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/pkg/storage/storagetest"
)

func TestPublisher_Publish(t *testing.T) {
	client := new(storagetest.MockS3Client)
	publisher := NewPublisher(client, "certs", 0, zap.NewNop())
	result := &GenerationResult{Code: "cert_a1", FileName: "certificate-Ada.pdf", PDF: fakePDF}

	client.On("Upload", mock.Anything, "certs", "certificates/cert_a1/certificate-Ada.pdf", "application/pdf", mock.Anything).Return(nil)
	client.On("GetPresignedURL", mock.Anything, "certs", "certificates/cert_a1/certificate-Ada.pdf", 24*time.Hour).
		Return("https://signed", nil)

	url, err := publisher.Publish(context.Background(), result)
	require.NoError(t, err)

	assert.Equal(t, "https://signed", url)
	assert.Equal(t, url, result.URL)
	client.AssertExpectations(t)
}

func TestPublisher_UploadFailure(t *testing.T) {
	client := new(storagetest.MockS3Client)
	publisher := NewPublisher(client, "certs", time.Minute, zap.NewNop())
	uploadErr := errors.New("access denied")
	client.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uploadErr)

	_, err := publisher.Publish(context.Background(), &GenerationResult{Code: "cert_a1", FileName: "x.pdf", PDF: fakePDF})
	assert.ErrorIs(t, err, uploadErr)
	client.AssertNotCalled(t, "GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublisher_Rejects(t *testing.T) {
	publisher := NewPublisher(new(storagetest.MockS3Client), "certs", time.Minute, zap.NewNop())

	_, err := publisher.Publish(context.Background(), &GenerationResult{Code: "cert_a1"})
	assert.ErrorIs(t, err, ErrNothingToPublish)

	_, err = publisher.Publish(context.Background(), &GenerationResult{Code: "../x", PDF: fakePDF})
	assert.ErrorIs(t, err, assets.ErrInvalidCode)
}
