package transload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_resolveObjectSpec(t *testing.T) {
	expires := time.Date(2030, time.January, 2, 15, 4, 5, 0, time.UTC)
	iconSource := SourceResponse{ContentLength: "1024", ContentType: "image/x-icon"}

	tests := []struct {
		name    string
		source  SourceResponse
		opts    UploadOptions
		want    ObjectSpec
		wantErr bool
	}{
		{
			name:   "defaults from source headers",
			source: iconSource,
			want:   ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 1024, ContentType: "image/x-icon"},
		},
		{
			name:   "headers missing",
			source: SourceResponse{},
			want:   ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: -1},
		},
		{
			name:   "unparsable content length is dropped",
			source: SourceResponse{ContentLength: "lots"},
			want:   ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: -1},
		},
		{
			name:   "caller values win over computed defaults",
			source: iconSource,
			opts: UploadOptions{
				"Bucket":        "other-bucket",
				"Key":           "other/key",
				"ContentType":   "application/octet-stream",
				"ContentLength": 2048,
			},
			want: ObjectSpec{Bucket: "other-bucket", Key: "other/key", ContentLength: 2048, ContentType: "application/octet-stream"},
		},
		{
			name:   "option names are case insensitive",
			source: iconSource,
			opts:   UploadOptions{"acl": "private", "contenttype": "text/plain"},
			want:   ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 1024, ContentType: "text/plain", ACL: "private"},
		},
		{
			name:   "content length from string",
			source: iconSource,
			opts:   UploadOptions{"ContentLength": "512"},
			want:   ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 512, ContentType: "image/x-icon"},
		},
		{
			name:    "fractional content length",
			source:  iconSource,
			opts:    UploadOptions{"ContentLength": 1.5},
			wantErr: true,
		},
		{
			name:    "negative content length",
			source:  iconSource,
			opts:    UploadOptions{"ContentLength": int64(-5)},
			wantErr: true,
		},
		{
			name:   "string options",
			source: iconSource,
			opts: UploadOptions{
				"CacheControl":            "max-age=60",
				"ContentDisposition":      "attachment",
				"ContentEncoding":         "identity",
				"ContentLanguage":         "en",
				"ServerSideEncryption":    "aws:kms",
				"SSEKMSKeyId":             "key-id",
				"StorageClass":            "STANDARD_IA",
				"Tagging":                 "team=ci",
				"WebsiteRedirectLocation": "/elsewhere",
			},
			want: ObjectSpec{
				Bucket:                  "bucket",
				Key:                     "key",
				ContentLength:           1024,
				ContentType:             "image/x-icon",
				CacheControl:            "max-age=60",
				ContentDisposition:      "attachment",
				ContentEncoding:         "identity",
				ContentLanguage:         "en",
				ServerSideEncryption:    "aws:kms",
				SSEKMSKeyID:             "key-id",
				StorageClass:            "STANDARD_IA",
				Tagging:                 "team=ci",
				WebsiteRedirectLocation: "/elsewhere",
			},
		},
		{
			name:   "metadata from interface map",
			source: iconSource,
			opts:   UploadOptions{"Metadata": map[string]interface{}{"build": 42, "origin": "ci"}},
			want: ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 1024, ContentType: "image/x-icon",
				Metadata: map[string]string{"build": "42", "origin": "ci"}},
		},
		{
			name:    "metadata with nested value",
			source:  iconSource,
			opts:    UploadOptions{"Metadata": map[string]interface{}{"nested": []string{"a"}}},
			wantErr: true,
		},
		{
			name:   "expires from RFC 3339",
			source: iconSource,
			opts:   UploadOptions{"Expires": "2030-01-02T15:04:05Z"},
			want: ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 1024, ContentType: "image/x-icon",
				Expires: &expires},
		},
		{
			name:   "expires from HTTP date",
			source: iconSource,
			opts:   UploadOptions{"Expires": "Wed, 02 Jan 2030 15:04:05 GMT"},
			want: ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 1024, ContentType: "image/x-icon",
				Expires: &expires},
		},
		{
			name:    "invalid ACL",
			source:  iconSource,
			opts:    UploadOptions{"ACL": "world-writable"},
			wantErr: true,
		},
		{
			name:   "unknown options are kept",
			source: iconSource,
			opts:   UploadOptions{"RequestPayer": "requester"},
			want: ObjectSpec{Bucket: "bucket", Key: "key", ContentLength: 1024, ContentType: "image/x-icon",
				Extra: map[string]interface{}{"RequestPayer": "requester"}},
		},
		{
			name:    "bucket overridden with empty value",
			source:  iconSource,
			opts:    UploadOptions{"Bucket": ""},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveObjectSpec("bucket", "key", tt.source, tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_ObjectSpec_ExtraKeys(t *testing.T) {
	spec := ObjectSpec{Extra: map[string]interface{}{"b": 1, "a": 2, "c": 3}}

	assert.Equal(t, []string{"a", "b", "c"}, spec.ExtraKeys())
	assert.Empty(t, ObjectSpec{}.ExtraKeys())
}

func Test_UploadOptions_Validate(t *testing.T) {
	assert.NoError(t, UploadOptions(nil).Validate())
	assert.NoError(t, UploadOptions{"ACL": "bucket-owner-full-control"}.Validate())
	assert.Error(t, UploadOptions{"Expires": 12}.Validate())
	assert.Error(t, UploadOptions{"Metadata": "k=v"}.Validate())
}

func Test_resolveObjectSpec_sameOptionWithDifferentCase(t *testing.T) {
	opts := UploadOptions{"acl": "private", "ACL": "public-read"}

	for i := 0; i < 50; i++ {
		_, err := resolveObjectSpec("bucket", "key", SourceResponse{}, opts)

		require.Error(t, err)
		assert.EqualError(t, err, "upload options ACL and acl name the same option")
	}
}

func Test_resolveObjectSpec_sameExtraWithDifferentCase(t *testing.T) {
	opts := UploadOptions{"x-amz-request-payer": "requester", "X-Amz-Request-Payer": "requester"}

	_, err := resolveObjectSpec("bucket", "key", SourceResponse{}, opts)

	assert.Error(t, err)
}

func Test_CanonicalOptionName(t *testing.T) {
	assert.Equal(t, OptionACL, CanonicalOptionName("acl"))
	assert.Equal(t, OptionSSEKMSKeyID, CanonicalOptionName("ssekmskeyid"))
	assert.Equal(t, "RequestPayer", CanonicalOptionName("RequestPayer"))
}

func Test_ObjectSpec_PassThroughHeaders(t *testing.T) {
	spec := ObjectSpec{Extra: map[string]interface{}{
		"X-Amz-Request-Payer": "requester",
		"RequestPayer":        "requester",
		"x-amz-expected-size": 12,
	}}

	headers, ignored := spec.PassThroughHeaders()

	assert.Equal(t, map[string]string{"x-amz-request-payer": "requester"}, headers)
	assert.Equal(t, []string{"RequestPayer", "x-amz-expected-size"}, ignored)
}
