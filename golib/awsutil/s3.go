package awsutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dlr-sara/gridclamp/golib/envutil"
)

// region used to discover bucket locations; objects are then read from the bucket's own region
var defaultRegion = envutil.GetenvDefault("AWS_REGION", "us-east-1")

// IsS3URI returns true if the path is an s3 uri.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ValidateURI checks whether the given uri points to S3.
func ValidateURI(uri string) (*url.URL, error) {
	s3url, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if s3url.Scheme != "s3" {
		return nil, fmt.Errorf("%s: url is not a s3 path", uri)
	}
	if s3url.Host == "" {
		return nil, fmt.Errorf("%s: missing bucket", uri)
	}
	return s3url, nil
}

// SplitURI returns the bucket and key of an s3 uri
func SplitURI(uri string) (bucket, key string, err error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return "", "", err
	}
	return s3url.Host, strings.TrimPrefix(s3url.Path, "/"), nil
}

// NewS3 creates an s3 client.
func NewS3(region string) (*s3.S3, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	return s3.New(sess, aws.NewConfig().WithRegion(region)), nil
}

// BucketRegion discovers the region a bucket is located in
func BucketRegion(bucket string) (string, error) {
	client, err := NewS3(defaultRegion)
	if err != nil {
		return "", err
	}

	out, err := client.GetBucketLocation(&s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", err
	}
	if out.LocationConstraint == nil || *out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return *out.LocationConstraint, nil
}

// bucketClient returns a client for the region the uri's bucket lives in
func bucketClient(uri *url.URL) (*s3.S3, error) {
	region, err := BucketRegion(uri.Host)
	if err != nil {
		return nil, fmt.Errorf("unable to determine region: %s", err)
	}
	return NewS3(region)
}

// NewS3Reader returns a io.ReadCloser that will read the contents
// of the file pointed to by the uri. URI will be of the form
// s3://bucket-name/path/to/file
func NewS3Reader(uri string) (io.ReadCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := bucketClient(s3url)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(strings.TrimPrefix(s3url.Path, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting %s: %v", uri, err)
	}
	return out.Body, nil
}

// NamedWriteCloser is a file-like object extending io.WriteCloser with a string Name() similar to os.File.Name()
type NamedWriteCloser interface {
	io.WriteCloser
	Name() string
}

type bufferedS3Writer struct {
	f     *os.File
	s3uri *url.URL
}

// Write writes to disk
func (w bufferedS3Writer) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close flushes to disk, copies the written data to s3, and closes the file
func (w bufferedS3Writer) Close() error {
	defer os.Remove(w.f.Name())
	defer w.f.Close()

	if err := w.f.Sync(); err != nil {
		return err
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return putObject(w.f, w.s3uri)
}

// Discard closes and removes the intermediate file without uploading it
func (w bufferedS3Writer) Discard() error {
	defer os.Remove(w.f.Name())
	return w.f.Close()
}

func (w bufferedS3Writer) Name() string {
	return w.s3uri.String()
}

// NewBufferedS3Writer returns an io.WriteCloser that will write
// to disk and upload to S3 on Close
func NewBufferedS3Writer(uri string) (NamedWriteCloser, error) {
	return NewBufferedS3WriterWithTmp("", uri)
}

// NewBufferedS3WriterWithTmp is NewBufferedS3Writer keeping the intermediate file in tmpDir
// (the system temp dir if empty).
func NewBufferedS3WriterWithTmp(tmpDir, uri string) (NamedWriteCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, os.ModePerm); err != nil {
			return nil, err
		}
	}

	f, err := ioutil.TempFile(tmpDir, "s3buffer")
	if err != nil {
		return nil, err
	}
	return bufferedS3Writer{f: f, s3uri: s3url}, nil
}

// S3PutObject writes the contents of the specified reader
// to the specified s3 URI.
func S3PutObject(r io.ReadSeeker, uri string) error {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return err
	}
	return putObject(r, s3url)
}

func putObject(r io.ReadSeeker, s3url *url.URL) error {
	client, err := bucketClient(s3url)
	if err != nil {
		return err
	}

	_, err = client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(strings.TrimPrefix(s3url.Path, "/")),
		Body:   r,
	})
	return err
}

// S3ListObjects lists the objects in an s3 bucket with a given prefix.
// NOTE: we ignore objects with size 0 since they typically correspond
// to directories and are thus not fetchable.
func S3ListObjects(region, bucket, prefix string) ([]string, error) {
	client, err := NewS3(region)
	if err != nil {
		return nil, err
	}

	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	err = client.ListObjectsPages(params, func(p *s3.ListObjectsOutput, lastPage bool) bool {
		for _, obj := range p.Contents {
			if aws.Int64Value(obj.Size) == 0 {
				continue
			}
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})

	if err != nil {
		return nil, fmt.Errorf("error list objects in `%s` (%s): %v", bucket, region, err)
	}
	return keys, nil
}

// Exists returns whether an object exists at the provided URI
func Exists(uri string) (bool, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return false, err
	}

	client, err := bucketClient(s3url)
	if err != nil {
		return false, err
	}

	_, err = client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(strings.TrimPrefix(s3url.Path, "/")),
	})
	return err == nil, nil
}
