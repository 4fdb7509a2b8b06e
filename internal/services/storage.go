package services

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"

	"github.com/renthive/renthive-backend/internal/config"
)

const maxImageSize = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Storage keeps listing images in S3 when credentials are configured and on
// the local disk otherwise.
type Storage struct {
	s3Client  *s3.S3
	uploader  *s3manager.Uploader
	bucket    string
	region    string
	uploadDir string
	baseURL   string
}

// InitStorage initializes either S3 or local storage based on configuration
func InitStorage(cfg *config.Config) (*Storage, error) {
	st := &Storage{
		uploadDir: cfg.UploadDir,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
	}

	if cfg.AWS.Enabled() {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWS.Region),
			Credentials: credentials.NewStaticCredentials(
				cfg.AWS.AccessKeyID,
				cfg.AWS.SecretAccessKey,
				"",
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %v", err)
		}

		st.s3Client = s3.New(sess)
		st.uploader = s3manager.NewUploader(sess)
		st.bucket = cfg.AWS.Bucket
		st.region = cfg.AWS.Region
		log.Println("AWS S3 storage initialized")
		return st, nil
	}

	if err := os.MkdirAll(st.uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %v", err)
	}
	log.Println("AWS S3 not configured. Using local file storage (not recommended for production)")
	return st, nil
}

// IsUsingS3 returns true if S3 storage is being used
func (st *Storage) IsUsingS3() bool {
	return st.uploader != nil
}

// UploadDir is served under /uploads in local mode.
func (st *Storage) UploadDir() string {
	return st.uploadDir
}

// UploadImage stores an image under folder and returns its public URL.
func (st *Storage) UploadImage(file *multipart.FileHeader, folder string) (string, error) {
	if file.Size > maxImageSize {
		return "", fmt.Errorf("image %s exceeds %d MB", file.Filename, maxImageSize>>20)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	buffer := bytes.NewBuffer(nil)
	if _, err := io.Copy(buffer, io.LimitReader(src, maxImageSize+1)); err != nil {
		return "", fmt.Errorf("failed to read file: %v", err)
	}

	contentType := http.DetectContentType(buffer.Bytes())
	if !allowedImageTypes[contentType] {
		return "", fmt.Errorf("unsupported image type %s", contentType)
	}

	key := fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
	if st.IsUsingS3() {
		return st.uploadToS3(key, buffer.Bytes(), contentType)
	}
	return st.uploadLocally(key, buffer.Bytes())
}

func (st *Storage) uploadToS3(key string, body []byte, contentType string) (string, error) {
	_, err := st.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		// ACL removed - bucket uses bucket policy for public access instead
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", st.bucket, st.region, key), nil
}

func (st *Storage) uploadLocally(key string, body []byte) (string, error) {
	path := filepath.Join(st.uploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %v", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}
	return fmt.Sprintf("%s/uploads/%s", st.baseURL, key), nil
}

// DeleteImage removes an image previously returned by UploadImage.
func (st *Storage) DeleteImage(imageURL string) error {
	key, err := st.keyFromURL(imageURL)
	if err != nil {
		return err
	}
	if st.IsUsingS3() {
		_, err := st.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(st.bucket),
			Key:    aws.String(key),
		})
		return err
	}

	err = os.Remove(filepath.Join(st.uploadDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// keyFromURL turns a public image URL back into its storage key.
func (st *Storage) keyFromURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url: %v", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if !st.IsUsingS3() {
		key = strings.TrimPrefix(key, "uploads/")
	}
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid image url %q", imageURL)
	}
	return key, nil
}
