package transload

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UploadOptions are caller supplied destination parameters keyed by their S3 names
// (ACL, CacheControl, Metadata, ...). They win over every computed default.
// Names are case-insensitive; two keys naming the same option are rejected.
// Unrecognised names starting with x-amz- and holding a string are sent as request headers,
// any other unrecognised name is logged and dropped by the destination.
type UploadOptions map[string]interface{}

// Recognised upload option names.
const (
	OptionBucket                  = "Bucket"
	OptionKey                     = "Key"
	OptionContentLength           = "ContentLength"
	OptionContentType             = "ContentType"
	OptionACL                     = "ACL"
	OptionCacheControl            = "CacheControl"
	OptionContentDisposition      = "ContentDisposition"
	OptionContentEncoding         = "ContentEncoding"
	OptionContentLanguage         = "ContentLanguage"
	OptionExpires                 = "Expires"
	OptionMetadata                = "Metadata"
	OptionServerSideEncryption    = "ServerSideEncryption"
	OptionSSEKMSKeyID             = "SSEKMSKeyId"
	OptionStorageClass            = "StorageClass"
	OptionTagging                 = "Tagging"
	OptionWebsiteRedirectLocation = "WebsiteRedirectLocation"
)

// CannedACLs lists the accepted values of the ACL option.
var CannedACLs = []string{
	"private",
	"public-read",
	"public-read-write",
	"authenticated-read",
	"aws-exec-read",
	"bucket-owner-read",
	"bucket-owner-full-control",
}

// ObjectSpec describes the object a Destination has to write.
// Zero values mean "not set".
type ObjectSpec struct {
	Bucket        string
	Key           string
	ContentLength int64 // -1 when unknown
	ContentType   string

	ACL                     string
	CacheControl            string
	ContentDisposition      string
	ContentEncoding         string
	ContentLanguage         string
	Expires                 *time.Time
	Metadata                map[string]string
	ServerSideEncryption    string
	SSEKMSKeyID             string
	StorageClass            string
	Tagging                 string
	WebsiteRedirectLocation string

	// Extra holds options no destination field exists for.
	Extra map[string]interface{}
}

// amzHeaderPrefix marks unrecognised options that are passed through as request headers.
const amzHeaderPrefix = "x-amz-"

// PassThroughHeaders splits Extra into x-amz-* request headers and the names that are ignored.
func (s ObjectSpec) PassThroughHeaders() (map[string]string, []string) {
	var headers map[string]string
	var ignored []string
	for _, key := range s.ExtraKeys() {
		value, ok := s.Extra[key].(string)
		if !ok || !strings.HasPrefix(strings.ToLower(key), amzHeaderPrefix) {
			ignored = append(ignored, key)
			continue
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers[strings.ToLower(key)] = value
	}
	return headers, ignored
}

// ExtraKeys returns the unrecognised option names in a stable order.
func (s ObjectSpec) ExtraKeys() []string {
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var knownOptions = map[string]string{}

func init() {
	for _, name := range []string{
		OptionBucket, OptionKey, OptionContentLength, OptionContentType, OptionACL, OptionCacheControl,
		OptionContentDisposition, OptionContentEncoding, OptionContentLanguage, OptionExpires,
		OptionMetadata, OptionServerSideEncryption, OptionSSEKMSKeyID, OptionStorageClass,
		OptionTagging, OptionWebsiteRedirectLocation,
	} {
		knownOptions[strings.ToLower(name)] = name
	}
}

// CanonicalOptionName returns the recognised spelling of name, or name itself when it is not
// a recognised option.
func CanonicalOptionName(name string) string {
	if canonical, ok := knownOptions[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// Validate checks the type of every recognised option without needing a source response.
func (o UploadOptions) Validate() error {
	_, err := resolveObjectSpec("-", "-", SourceResponse{}, o)
	return err
}

// resolveObjectSpec computes the defaults {Bucket, Key, ContentLength, ContentType} and merges
// the caller's options over them.
func resolveObjectSpec(bucket, key string, source SourceResponse, opts UploadOptions) (ObjectSpec, error) {
	spec := ObjectSpec{
		Bucket:        bucket,
		Key:           key,
		ContentLength: -1,
		ContentType:   source.ContentType,
	}
	if source.ContentLength != "" {
		if n, err := strconv.ParseInt(source.ContentLength, 10, 64); err == nil && n >= 0 {
			spec.ContentLength = n
		}
	}

	seen := make(map[string]string, len(opts))
	for rawName := range opts {
		folded := strings.ToLower(rawName)
		if other, ok := seen[folded]; ok {
			first, second := other, rawName
			if second < first {
				first, second = second, first
			}
			return ObjectSpec{}, fmt.Errorf("upload options %s and %s name the same option", first, second)
		}
		seen[folded] = rawName
	}

	for rawName, value := range opts {
		name, ok := knownOptions[strings.ToLower(rawName)]
		if !ok {
			if spec.Extra == nil {
				spec.Extra = map[string]interface{}{}
			}
			spec.Extra[rawName] = value
			continue
		}

		if err := applyOption(&spec, name, value); err != nil {
			return ObjectSpec{}, fmt.Errorf("upload option %s: %w", name, err)
		}
	}

	if spec.Bucket == "" {
		return ObjectSpec{}, fmt.Errorf("bucket must not be empty")
	}
	if spec.Key == "" {
		return ObjectSpec{}, fmt.Errorf("key must not be empty")
	}

	return spec, nil
}

func applyOption(spec *ObjectSpec, name string, value interface{}) error {
	switch name {
	case OptionContentLength:
		n, err := int64Value(value)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("must not be negative, got %d", n)
		}
		spec.ContentLength = n
		return nil
	case OptionExpires:
		t, err := timeValue(value)
		if err != nil {
			return err
		}
		spec.Expires = &t
		return nil
	case OptionMetadata:
		m, err := metadataValue(value)
		if err != nil {
			return err
		}
		spec.Metadata = m
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}

	switch name {
	case OptionBucket:
		spec.Bucket = s
	case OptionKey:
		spec.Key = s
	case OptionContentType:
		spec.ContentType = s
	case OptionACL:
		if !isCannedACL(s) {
			return fmt.Errorf("invalid value %q, expected one of %s", s, strings.Join(CannedACLs, ", "))
		}
		spec.ACL = s
	case OptionCacheControl:
		spec.CacheControl = s
	case OptionContentDisposition:
		spec.ContentDisposition = s
	case OptionContentEncoding:
		spec.ContentEncoding = s
	case OptionContentLanguage:
		spec.ContentLanguage = s
	case OptionServerSideEncryption:
		spec.ServerSideEncryption = s
	case OptionSSEKMSKeyID:
		spec.SSEKMSKeyID = s
	case OptionStorageClass:
		spec.StorageClass = s
	case OptionTagging:
		spec.Tagging = s
	case OptionWebsiteRedirectLocation:
		spec.WebsiteRedirectLocation = s
	}
	return nil
}

func isCannedACL(acl string) bool {
	for _, a := range CannedACLs {
		if a == acl {
			return true
		}
	}
	return false
}

func int64Value(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("expected a whole number, got %v", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

func timeValue(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return *v, nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		t, err := http.ParseTime(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q: expected RFC 3339 or HTTP date", v)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("expected a time, got %T", value)
	}
}

func metadataValue(value interface{}) (map[string]string, error) {
	switch v := value.(type) {
	case map[string]string:
		m := make(map[string]string, len(v))
		for k, val := range v {
			m[k] = val
		}
		return m, nil
	case map[string]interface{}:
		m := make(map[string]string, len(v))
		for k, val := range v {
			switch s := val.(type) {
			case string:
				m[k] = s
			case fmt.Stringer:
				m[k] = s.String()
			case int, int64, float64, bool:
				m[k] = fmt.Sprint(s)
			default:
				return nil, fmt.Errorf("metadata %s: unsupported value type %T", k, val)
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("expected a string map, got %T", value)
	}
}
