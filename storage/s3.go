package storage

import (
	"bytes"
	"fmt"
	"ilearnz_go/config"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gosimple/slug"
)

type StorageService struct {
	s3Client *s3.S3
	bucket   string
}

// NewStorageService creates a new storage service
func NewStorageService() (*StorageService, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AppConfig.AWSRegion),
		Credentials: credentials.NewStaticCredentials(
			config.AppConfig.AWSAccessKeyID,
			config.AppConfig.AWSSecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		bucket:   config.AppConfig.S3BucketName,
	}, nil
}

// Folder names a file is routed into based on its extension.
var categoryFolders = map[string][]string{
	"documents":     {"pdf", "doc", "docx", "txt", "rtf", "odt"},
	"presentations": {"ppt", "pptx", "odp"},
	"spreadsheets":  {"xls", "xlsx", "csv", "ods"},
	"images":        {"jpg", "jpeg", "png", "gif", "webp", "bmp", "svg"},
	"videos":        {"mp4", "avi", "mov", "mkv", "webm", "wmv"},
	"audio":         {"mp3", "wav", "ogg", "m4a", "flac"},
	"archives":      {"zip", "rar", "7z", "tar", "gz"},
}

// CategoryFolder classifies a filename into a storage sub-folder by its
// extension, case-insensitively. Unknown extensions go to "other".
func CategoryFolder(filename string) string {
	ext := FileExtension(filename)
	for folder, exts := range categoryFolders {
		for _, e := range exts {
			if ext == e {
				return folder
			}
		}
	}
	return "other"
}

// FileExtension extracts the lowercased extension without the dot.
func FileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 1 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// MaterialKey builds the object key for a reading material upload. The file
// is renamed to a slug of the title plus a timestamp to avoid collisions.
func MaterialKey(classID, subjectID uint, title, filename string, now time.Time) string {
	return fmt.Sprintf("materials/class_%d/subject_%d/%s/%s_%d.%s",
		classID, subjectID, CategoryFolder(filename), slug.Make(title), now.Unix(), FileExtension(filename))
}

// AssessmentKey builds the object key for an assessment attachment.
func AssessmentKey(classID, subjectID uint, filename string, now time.Time) string {
	return fmt.Sprintf("assessments/class_%d/subject_%d/%s_%d.%s",
		classID, subjectID, slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))), now.Unix(), FileExtension(filename))
}

// SubmissionKey builds the object key for a student submission.
func SubmissionKey(assessmentID, studentID uint, filename string, now time.Time) string {
	return fmt.Sprintf("submissions/assessment_%d/student_%d_%d.%s",
		assessmentID, studentID, now.Unix(), FileExtension(filename))
}

// ReportKey builds the object key for a generated report blob.
func ReportKey(reportID uint, now time.Time) string {
	return fmt.Sprintf("reports/report_%d_%d.pdf", reportID, now.Unix())
}

// UploadFile stores a multipart upload under the given object key and
// returns the number of bytes written.
func (s *StorageService) UploadFile(file *multipart.FileHeader, key string) (int64, error) {
	src, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %v", err)
	}

	return s.UploadBytes(fileBytes, key)
}

// UploadBytes stores raw bytes under the given object key.
func (s *StorageService) UploadBytes(data []byte, key string) (int64, error) {
	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(FileExtension(key))),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload to S3: %v", err)
	}
	return int64(len(data)), nil
}

// ReplaceFile stores the new file first, and deletes the old blob only
// after the new one landed. On upload failure nothing is touched.
func (s *StorageService) ReplaceFile(file *multipart.FileHeader, newKey, oldKey string) (int64, error) {
	size, err := s.UploadFile(file, newKey)
	if err != nil {
		return 0, err
	}
	if oldKey != "" && oldKey != newKey {
		if err := s.DeleteFile(oldKey); err != nil {
			// The new blob is already referenced; the orphan sweep picks up the old one.
			return size, nil
		}
	}
	return size, nil
}

// DeleteFile deletes a blob by object key.
func (s *StorageService) DeleteFile(key string) error {
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// DownloadFile fetches a blob's bytes by object key.
func (s *StorageService) DownloadFile(key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from S3: %v", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// PublicURL returns the public URL for an object key.
func (s *StorageService) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, config.AppConfig.AWSRegion, key)
}

// ContentType returns the MIME type for the file extension
func ContentType(extension string) string {
	switch strings.ToLower(extension) {
	case "pdf":
		return "application/pdf"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "ppt":
		return "application/vnd.ms-powerpoint"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "xls":
		return "application/vnd.ms-excel"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		return "text/csv"
	case "txt":
		return "text/plain"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "mp4":
		return "video/mp4"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
